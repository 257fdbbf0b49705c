// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noclook/noclook/internal/config"
	"github.com/noclook/noclook/internal/inventory"
	"github.com/noclook/noclook/internal/secrets"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// annotationConfigOptional marks commands that run before a config file exists.
const annotationConfigOptional = "noclook/config-optional"

// app carries state resolved by the root command for its subcommands.
type app struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
}

// NewRootCmd creates the root noclook command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "noclook",
		Short:         "NOCLook network inventory",
		Long:          "NOCLook keeps a network inventory in a relational store and a property graph, and reaps stale data left by automated feeds.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringP("user", "u", "", "acting user (default $NOCLOOK_USER, then $USER)")

	root.AddCommand(
		newInitCmd(a),
		newHandleCmd(a),
		newConnectCmd(a),
		newDisconnectCmd(a),
		newContextCmd(a),
		newGrantCmd(a),
		newUserCmd(a),
		newAuthorizeCmd(a),
		newReapCmd(a),
		newSecretCmd(),
		newDoctorCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)

	return root
}

// load resolves configuration with precedence flag > env > file > defaults
// and installs the process logger.
func (a *app) load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path != "" && cmd.Annotations[annotationConfigOptional] == "true" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	if path == "" {
		if def, err := config.DefaultConfigPath(); err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if err := secrets.ResolveFields(secretStoreFactory(), cfg.SecretFields()); err != nil {
		return err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}

	a.cfg, a.cfgPath = cfg, path
	a.logger = newLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	config.WarnInsecurePermissions(path)
	return nil
}

// withInventory opens the inventory for the duration of fn.
func (a *app) withInventory(cmd *cobra.Command, fn func(ctx context.Context, inv *inventory.Inventory) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	inv, err := inventory.Open(ctx, a.cfg, inventory.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := inv.Close(); err != nil {
			a.logger.WarnContext(ctx, "closing inventory failed", "error", err)
		}
	}()
	return fn(ctx, inv)
}

// user returns the acting user.
func (a *app) user(cmd *cobra.Command) (string, error) {
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		return u, nil
	}
	for _, env := range []string{"NOCLOOK_USER", "USER"} {
		if u := os.Getenv(env); u != "" {
			return u, nil
		}
	}
	return "", nlerr.New(nlerr.CodeCLIInputInvalid, "no acting user: pass --user or set NOCLOOK_USER")
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
