// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/inventory"
	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

func newHandleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handle",
		Short: "Create, inspect and delete inventory handles",
	}
	cmd.AddCommand(
		newHandleCreateCmd(a),
		newHandleGetCmd(a),
		newHandleListCmd(a),
		newHandleSetCmd(a),
		newHandleDeleteCmd(a),
		newHandlePortCmd(a),
	)
	return cmd
}

func newHandleCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a handle and its graph node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user(cmd)
			if err != nil {
				return err
			}
			typ, _ := cmd.Flags().GetString("type")
			meta, _ := cmd.Flags().GetString("meta")
			contextName, _ := cmd.Flags().GetString("context")
			rawProps, _ := cmd.Flags().GetStringArray("prop")
			props, err := parseProperties(rawProps)
			if err != nil {
				return err
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				h, err := inv.Service().CreateHandle(ctx, user, contextName, handle.CreateRequest{
					Name:       args[0],
					Type:       typ,
					MetaType:   store.MetaType(meta),
					Properties: props,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created handle %d (%s %q) node %s\n", h.ID, h.Type, h.Name, h.NodeID)
				return err
			})
		},
	}
	cmd.Flags().StringP("type", "t", "", "registered node type")
	cmd.Flags().StringP("meta", "m", "", "meta type: Logical, Physical, Organisation or Location")
	cmd.Flags().String("context", "", "context the handle joins")
	cmd.Flags().StringArrayP("prop", "p", nil, "node property as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("meta")
	_ = cmd.MarkFlagRequired("context")
	return cmd
}

// handleView is the JSON shape printed by handle get.
type handleView struct {
	ID         int64            `json:"handle_id"`
	NodeID     string           `json:"node_id"`
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	MetaType   string           `json:"meta_type"`
	Creator    string           `json:"creator"`
	Modifier   string           `json:"modifier"`
	CreatedAt  time.Time        `json:"created_at"`
	ModifiedAt time.Time        `json:"modified_at"`
	Contexts   []string         `json:"contexts"`
	Properties graph.Properties `json:"properties"`
}

func newHandleGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Print a handle with its node properties as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				svc := inv.Service()
				h, err := svc.GetHandle(ctx, user, id)
				if err != nil {
					return err
				}
				node, err := svc.GetNode(ctx, user, id)
				if err != nil {
					return err
				}
				contexts, err := svc.ContextsOf(ctx, user, id)
				if err != nil {
					return err
				}

				view := handleView{
					ID: h.ID, NodeID: h.NodeID, Name: h.Name, Type: h.Type, MetaType: string(h.MetaType),
					Creator: h.Creator, Modifier: h.Modifier, CreatedAt: h.CreatedAt, ModifiedAt: h.ModifiedAt,
					Contexts:   contexts,
					Properties: node.Properties,
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			})
		},
	}
}

func newHandleListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the handles the acting user may read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.user(cmd)
			if err != nil {
				return err
			}
			typ, _ := cmd.Flags().GetString("type")
			prefix, _ := cmd.Flags().GetString("prefix")
			limit, _ := cmd.Flags().GetInt("limit")

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				handles, err := inv.Service().ListHandles(ctx, user, store.HandleQuery{Type: typ, NamePrefix: prefix, Limit: limit})
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tTYPE\tNAME\tMODIFIED")
				for _, h := range handles {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", h.ID, h.Type, h.Name, h.ModifiedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringP("type", "t", "", "only handles of this node type")
	cmd.Flags().String("prefix", "", "only names starting with this prefix")
	cmd.Flags().Int("limit", 100, "maximum number of handles")
	return cmd
}

func newHandleSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set ID KEY=VALUE...",
		Short: "Merge properties into a handle's node",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			props, err := parseProperties(args[1:])
			if err != nil {
				return err
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				if _, err := inv.Service().UpdateProperties(ctx, user, id, props); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Updated handle %d (%d properties)\n", id, len(props))
				return err
			})
		},
	}
}

func newHandleDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a handle, its node and the node's relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				if err := inv.Service().DeleteHandle(ctx, user, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted handle %d\n", id)
				return err
			})
		},
	}
}

func newHandlePortCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "port PARENT_ID NAME",
		Short: "Find or create a named port under a handle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.user(cmd)
			if err != nil {
				return err
			}
			parent, err := parseID(args[0])
			if err != nil {
				return err
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				port, err := inv.Service().FindOrCreatePort(ctx, user, parent, args[1])
				if err != nil {
					return err
				}
				id, _ := port.Properties.Int64(graph.KeyHandleID)
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Port %q is handle %d node %s\n", args[1], id, port.ID)
				return err
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, nlerr.Errorf(nlerr.CodeCLIInputInvalid, "invalid handle id %q", s)
	}
	return id, nil
}

// parseProperties turns key=value pairs into a property bag. Values that
// parse as integers or booleans keep that type.
func parseProperties(pairs []string) (graph.Properties, error) {
	props := make(graph.Properties, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, nlerr.Errorf(nlerr.CodeCLIInputInvalid, "property %q is not key=value", p)
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			props[key] = n
			continue
		}
		switch value {
		case "true":
			props[key] = true
		case "false":
			props[key] = false
		default:
			props[key] = value
		}
	}
	return props, nil
}
