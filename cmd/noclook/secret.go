// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/secrets"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// secretStoreFactory is a variable so tests can use an in-memory store.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore(secrets.DefaultService)
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage backend credentials in the OS keyring",
		Long: "Store credentials such as the Neo4j password in the operating system keyring. " +
			"Reference them from the config as keyring:NAME.",
	}

	set := &cobra.Command{
		Use:   "set NAME",
		Short: "Store a secret read from the first line of stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			value := strings.TrimRight(line, "\r\n")
			if value == "" {
				if err != nil {
					return nlerr.Wrap(err, nlerr.CodeCLIInputInvalid, "reading secret from stdin")
				}
				return nlerr.New(nlerr.CodeCLIInputInvalid, "empty secret")
			}
			if err := secretStoreFactory().Set(args[0], value); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %s; reference it as keyring:%s\n", args[0], args[0])
			return err
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := secretStoreFactory().List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				_, _ = fmt.Fprintln(out, "No secrets stored.")
				return nil
			}
			for _, n := range names {
				_, _ = fmt.Fprintln(out, n)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secretStoreFactory().Delete(args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret %s\n", args[0])
			return err
		},
	}

	cmd.AddCommand(set, list, del)
	return cmd
}
