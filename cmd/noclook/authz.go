// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/inventory"
	"github.com/noclook/noclook/internal/store"
)

func newContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage authorization contexts",
	}

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a context; existing contexts are left as they are",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				c, err := inv.Authz.CreateContext(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Context %q (id %d)\n", c.Name, c.ID)
				return err
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				contexts, err := inv.Rel.Contexts().List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tNAME")
				for _, c := range contexts {
					_, _ = fmt.Fprintf(w, "%d\t%s\n", c.ID, c.Name)
				}
				return w.Flush()
			})
		},
	}

	assign := &cobra.Command{
		Use:   "assign HANDLE_ID CONTEXT",
		Short: "Add a handle to a context",
		Args:  cobra.ExactArgs(2),
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
				if err := inv.Service().AssignContext(ctx, user, id, args[1]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Handle %d is in context %q\n", id, args[1])
				return err
			})
		},
	}

	cmd.AddCommand(create, list, assign)
	return cmd
}

func newGrantCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant GROUP CONTEXT ACTION",
		Short: "Let a group perform an action (read, write, list, admin) in a context",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			revoke, _ := cmd.Flags().GetBool("revoke")
			group, contextName, action := args[0], args[1], store.AuthzAction(args[2])

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				if revoke {
					if err := inv.Authz.Revoke(ctx, group, contextName, action); err != nil {
						return err
					}
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s on %q from %q\n", action, contextName, group)
					return err
				}
				if err := inv.Authz.Grant(ctx, group, contextName, action); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Granted %s on %q to %q\n", action, contextName, group)
				return err
			})
		},
	}
	cmd.Flags().Bool("revoke", false, "remove the grant instead")
	return cmd
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and group membership",
	}

	add := &cobra.Command{
		Use:   "add ID",
		Short: "Register a user and add it to groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			groups, _ := cmd.Flags().GetStringSlice("group")
			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				if err := inv.Service().AddUser(ctx, args[0], name, groups...); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "User %q in groups %v\n", args[0], groups)
				return err
			})
		},
	}
	add.Flags().String("name", "", "display name")
	add.Flags().StringSliceP("group", "g", nil, "group to join (repeatable)")

	cmd.AddCommand(add)
	return cmd
}

func newAuthorizeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize USER ACTION CONTEXT",
		Short: "Evaluate an authorization decision",
		Long:  "Print allowed or denied for USER performing ACTION in CONTEXT, optionally on one handle.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var handleID *int64
			if raw, _ := cmd.Flags().GetString("handle"); raw != "" {
				id, err := parseID(raw)
				if err != nil {
					return err
				}
				handleID = &id
			}

			return a.withInventory(cmd, func(ctx context.Context, inv *inventory.Inventory) error {
				ok, err := inv.Service().Authorize(ctx, args[0], store.AuthzAction(args[1]), args[2], handleID)
				if err != nil {
					return err
				}
				verdict := "denied"
				if ok {
					verdict = "allowed"
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), verdict)
				return err
			})
		},
	}
	cmd.Flags().String("handle", "", "handle id the action targets")
	return cmd
}
