// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/inventory"
	"github.com/noclook/noclook/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inventory HTTP API",
		Long: "Serve the JSON API until interrupted. Requests must carry the acting user in the " +
			"configured header, normally set by an authenticating reverse proxy.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				a.cfg.Server.Listen = listen
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				srv, err := server.New(server.Config{
					ListenAddr:  a.cfg.Server.Listen,
					CORSOrigins: a.cfg.Server.CORSOrigins,
					UserHeader:  a.cfg.Server.UserHeader,
					Logger:      a.logger,
				}, inv.Service())
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return srv.Start(ctx)
			})
		},
	}
	cmd.Flags().String("listen", "", "listen address (default server.listen from config)")
	return cmd
}
