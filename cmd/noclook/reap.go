// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/freshness"
	"github.com/noclook/noclook/internal/inventory"
)

func newReapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Delete stale auto-managed nodes and relationships",
		Long: "Delete graph objects an automated feed has stopped observing. Each object is " +
			"deleted on its own; failures are logged and counted without stopping the run.",
	}
	cmd.PersistentFlags().Duration("max-age", 0, "how long an object may go unseen (default reap.max_age from config)")

	nodes := &cobra.Command{
		Use:   "nodes",
		Short: "Delete expired nodes with their handles and relationships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, _ := cmd.Flags().GetString("type")
			force, _ := cmd.Flags().GetBool("force")
			opts := freshness.NodeReapOptions{MaxAge: a.maxAge(cmd), Type: typ, Force: force}
			return a.reap(cmd, func(ctx context.Context, t *freshness.Tracker) (freshness.ReapResult, error) {
				return t.ReapNodes(ctx, opts)
			})
		},
	}
	nodes.Flags().StringP("type", "t", "", "only nodes of this type")
	nodes.Flags().Bool("force", false, "delete every node of --type regardless of freshness")

	edges := &cobra.Command{
		Use:   "edges",
		Short: "Delete expired relationships, keeping their endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			relType, _ := cmd.Flags().GetString("rel-type")
			opts := freshness.EdgeReapOptions{MaxAge: a.maxAge(cmd), RelType: relType}
			return a.reap(cmd, func(ctx context.Context, t *freshness.Tracker) (freshness.ReapResult, error) {
				return t.ReapEdges(ctx, opts)
			})
		},
	}
	edges.Flags().String("rel-type", "", "only relationships of this type")

	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "Delete nodes of a type that lost their incoming relationship",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, _ := cmd.Flags().GetString("type")
			relType, _ := cmd.Flags().GetString("rel-type")
			opts := freshness.OrphanOptions{Type: typ, RelType: relType}
			return a.reap(cmd, func(ctx context.Context, t *freshness.Tracker) (freshness.ReapResult, error) {
				return t.ReapOrphans(ctx, opts)
			})
		},
	}
	orphans.Flags().StringP("type", "t", "", "node type to check")
	orphans.Flags().String("rel-type", "Has", "relationship that must arrive at each node")
	_ = orphans.MarkFlagRequired("type")

	cmd.AddCommand(nodes, edges, orphans)
	return cmd
}

func (a *app) maxAge(cmd *cobra.Command) time.Duration {
	if d, _ := cmd.Flags().GetDuration("max-age"); d > 0 {
		return d
	}
	return a.cfg.Reap.MaxAge
}

func (a *app) reap(cmd *cobra.Command, run func(context.Context, *freshness.Tracker) (freshness.ReapResult, error)) error {
	return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
		res, err := run(ctx, inv.Freshness)
		if err != nil {
			return err
		}

		if path := a.cfg.Metrics.Textfile; path != "" {
			if err := inv.Metrics.WriteTextfile(path); err != nil {
				a.logger.WarnContext(ctx, "writing metrics textfile failed", "path", path, "error", err)
			}
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, deleted %d, failed %d\n", res.Scanned, res.Deleted, res.Failed)
		return err
	})
}
