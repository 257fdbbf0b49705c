// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package store

import (
	"sync"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend string // "sqlite" is the only supported backend for now.
	DataDir string
}

// Factory opens the relational store in dataDir.
type Factory func(dataDir string) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open opens the configured relational store.
func Open(cfg *StorageConfig) (Store, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	f, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nlerr.Errorf(nlerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return f(cfg.DataDir)
}
