// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/inventory"
	nlerr "github.com/noclook/noclook/pkg/errors"
	"github.com/noclook/noclook/pkg/health"
)

func newDoctorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the configuration, both stores and the free space of the data directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			report := a.diagnose(ctx)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				for _, c := range report.Checks {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-18s %-5s %s\n", c.Name+":", c.Status, c.Detail); err != nil {
						return err
					}
				}
			}

			if !report.Healthy() {
				return nlerr.New(nlerr.CodeCLISetupFailure, "diagnostics failed")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print the report as JSON")
	return cmd
}

func (a *app) diagnose(ctx context.Context) *health.Report {
	r := health.NewReport(time.Now())

	r.Run("binary", func() (string, error) {
		return fmt.Sprintf("noclook %s (%s/%s, %s)", version, runtime.GOOS, runtime.GOARCH, runtime.Version()), nil
	})
	if a.cfgPath == "" {
		r.Warn("config", "using defaults (no config file found)")
	} else {
		r.Run("config", func() (string, error) { return "loaded from " + a.cfgPath, nil })
	}

	inv, err := inventory.Open(ctx, a.cfg, inventory.WithLogger(a.logger))
	if err != nil {
		r.Run("stores", func() (string, error) { return "", err })
	} else {
		defer func() { _ = inv.Close() }()
		r.Run("relational store", func() (string, error) {
			types, err := inv.Rel.NodeTypes().List(ctx, true)
			if err != nil {
				return "", err
			}
			contexts, err := inv.Rel.Contexts().List(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s, %d node types, %d contexts", a.cfg.Storage.Backend, len(types), len(contexts)), nil
		})
		r.Run("graph store", func() (string, error) {
			err := graph.View(ctx, inv.Graph, func(tx graph.Tx) error {
				_, err := tx.Match(ctx, graph.Pattern{Limit: 1})
				return err
			})
			if err != nil {
				return "", err
			}
			return a.cfg.Graph.Backend + ", reachable", nil
		})
	}

	r.Run("disk space", func() (string, error) {
		path := a.cfg.Storage.DataDir
		if _, err := os.Stat(path); err != nil {
			path, _ = os.UserHomeDir()
		}
		return diskFree(path)
	})
	return r
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
