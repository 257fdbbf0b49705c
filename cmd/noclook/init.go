// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/config"
	"github.com/noclook/noclook/internal/inventory"
)

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the stores",
		Long: "Write the default configuration file unless one exists, then open both stores, " +
			"creating their schemas and seeding node types and contexts.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("path")
			if path == "" {
				path, _ = cmd.Flags().GetString("config")
			}
			if written := config.BootstrapConfig(path); written != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", written)
				cfg, err := config.Load(written)
				if err != nil {
					return err
				}
				if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
					cfg.Storage.DataDir = dir
				}
				a.cfg, a.cfgPath = cfg, written
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				types, err := inv.Rel.NodeTypes().List(ctx, true)
				if err != nil {
					return err
				}
				contexts, err := inv.Rel.Contexts().List(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Inventory ready in %s (%d node types, %d contexts)\n",
					a.cfg.Storage.DataDir, len(types), len(contexts))
				return err
			})
		},
	}

	cmd.Flags().String("path", "", "where to write the config (default --config, then ~/.config/noclook/noclook.yaml)")
	return cmd
}
