// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

//go:embed noclook.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/noclook/noclook.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nlerr.Errorf(nlerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "noclook", "noclook.yaml"), nil
}

// BootstrapConfig writes the default commented config to path unless a
// file already exists there. It returns the path written, or "" when
// nothing was written. Failures are logged and skipped.
func BootstrapConfig(path string) string {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			slog.Debug("skipping config bootstrap", "error", err)
			return ""
		}
	}

	if _, err := os.Stat(path); err == nil {
		return ""
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
