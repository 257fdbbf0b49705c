// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package neo4j implements graph.Store on a Neo4j server over Bolt.
package neo4j

import (
	"context"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Compile-time interface checks.
var (
	_ graph.Store = (*Store)(nil)
	_ graph.Tx    = (*tx)(nil)
)

func init() {
	graph.RegisterBackend("neo4j", func(cfg graph.Config) (graph.Store, error) {
		return Open(context.Background(), cfg.Neo4j)
	})
}

// Store is a Neo4j-backed graph store.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// Open connects to Neo4j and verifies connectivity.
func Open(ctx context.Context, cfg graph.Neo4jConfig) (*Store, error) {
	if cfg.URI == "" {
		return nil, nlerr.New(nlerr.CodeConfigValidateInvalidValue, "neo4j uri must not be empty")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "connecting to neo4j at %s: %w", cfg.URI, err)
	}

	return &Store{driver: driver, database: cfg.Database, logger: slog.Default()}, nil
}

// Begin opens a session and an explicit transaction on it. The session is
// closed when the transaction ends.
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	t, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "beginning neo4j transaction: %w", err)
	}
	return &tx{session: session, tx: t, logger: s.logger}, nil
}

// Close closes the driver.
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}
