// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package graph

import (
	"sort"
	"sync"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Config selects and parameterises a graph backend.
type Config struct {
	Backend string // "sqlite" (default) or "neo4j"
	DataDir string // sqlite: directory holding graph.db

	Neo4j Neo4jConfig
}

// Neo4jConfig holds the Bolt connection settings for the neo4j backend.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Factory opens a graph store from configuration.
type Factory func(cfg Config) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a named graph backend. Backend packages call
// this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends lists the registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the configured backend.
func Open(cfg Config) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	f, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nlerr.Errorf(nlerr.CodeStoreBackendUnsupported, "unsupported graph backend: %q", backend)
	}

	return f(cfg)
}
