// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/inventory"
	"github.com/noclook/noclook/internal/relation"
)

func newConnectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect FROM_ID TYPE TO_ID",
		Short: "Create a typed relationship between two handles",
		Long: "Create a relationship such as Depends_on or Has between the nodes of two handles. " +
			"The relationship rules decide which node types may be linked and how often.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user(cmd)
			if err != nil {
				return err
			}
			fromID, err := parseID(args[0])
			if err != nil {
				return err
			}
			toID, err := parseID(args[2])
			if err != nil {
				return err
			}
			auto, _ := cmd.Flags().GetBool("auto-manage")
			rawProps, _ := cmd.Flags().GetStringArray("prop")
			props, err := parseProperties(rawProps)
			if err != nil {
				return err
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				svc := inv.Service()
				from, err := svc.GetHandle(ctx, user, fromID)
				if err != nil {
					return err
				}
				to, err := svc.GetHandle(ctx, user, toID)
				if err != nil {
					return err
				}
				edge, err := svc.Connect(ctx, user, relation.ConnectRequest{
					From:       graph.NodeID(from.NodeID),
					To:         graph.NodeID(to.NodeID),
					Type:       args[1],
					Properties: props,
					AutoManage: auto,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Connected %q -[%s]-> %q (edge %s)\n", from.Name, edge.Type, to.Name, edge.ID)
				return err
			})
		},
	}
	cmd.Flags().Bool("auto-manage", false, "stamp the relationship as maintained by an automated feed")
	cmd.Flags().StringArrayP("prop", "p", nil, "relationship property as key=value (repeatable)")
	return cmd
}

func newDisconnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect EDGE_ID",
		Short: "Delete a relationship; its endpoints are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user(cmd)
			if err != nil {
				return err
			}
			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				if err := inv.Service().Disconnect(ctx, user, graph.EdgeID(args[0])); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted edge %s\n", args[0])
				return err
			})
		},
	}
}
