// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package sqlite implements graph.Store as a property graph kept in its own
// SQLite database: one table of nodes and one of edges, each carrying a JSON
// property bag.
package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Compile-time interface checks.
var (
	_ graph.Store = (*Store)(nil)
	_ graph.Tx    = (*tx)(nil)
)

func init() {
	graph.RegisterBackend("sqlite", func(cfg graph.Config) (graph.Store, error) {
		return Open(filepath.Join(cfg.DataDir, "graph.db"))
	})
}

// Store is a SQLite-backed graph store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the graph database at dbPath.
//
// Transactions take the write lock when they begin (_txlock=immediate) so a
// read-check-write sequence inside one graph transaction cannot interleave
// with another writer.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "opening graph db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "pinging graph db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "migrating graph tables: %w", err)
	}

	return &Store{db: db, logger: slog.Default()}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS nodes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	node_type  TEXT NOT NULL DEFAULT '',
	properties TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_nodes_type   ON nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_nodes_handle ON nodes(json_extract(properties, '$.handle_id'));

CREATE TABLE IF NOT EXISTS edges (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	type       TEXT NOT NULL,
	from_id    INTEGER NOT NULL REFERENCES nodes(id),
	to_id      INTEGER NOT NULL REFERENCES nodes(id),
	properties TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id, type);
CREATE INDEX IF NOT EXISTS idx_edges_to   ON edges(to_id, type);
`
	_, err := db.Exec(ddl)
	return err
}

// Begin opens a graph transaction.
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "beginning graph transaction: %w", err)
	}
	return &tx{tx: sqlTx, logger: s.logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
