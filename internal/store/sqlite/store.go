// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package sqlite implements the relational store on SQLite.
package sqlite

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Compile-time interface checks.
var (
	_ store.Store         = (*Store)(nil)
	_ store.HandleStore   = (*handleStore)(nil)
	_ store.NodeTypeStore = (*nodeTypeStore)(nil)
	_ store.ContextStore  = (*contextStore)(nil)
	_ store.GroupStore    = (*groupStore)(nil)
	_ store.UserStore     = (*userStore)(nil)
	_ store.AuditStore    = (*auditStore)(nil)
)

// Store implements store.Store backed by a single SQLite database.
type Store struct {
	db        *sql.DB
	handles   *handleStore
	nodeTypes *nodeTypeStore
	contexts  *contextStore
	groups    *groupStore
	users     *userStore
	audit     *auditStore
}

// Open opens (or creates) a SQLite database at dbPath and initialises the
// inventory tables.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeStoreDatabaseFailure, "opening inventory db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nlerr.Errorf(nlerr.CodeStoreDatabaseFailure, "pinging inventory db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, nlerr.Errorf(nlerr.CodeStoreDatabaseFailure, "migrating inventory db: %w", err)
	}

	return &Store{
		db:        db,
		handles:   &handleStore{db: db},
		nodeTypes: &nodeTypeStore{db: db},
		contexts:  &contextStore{db: db},
		groups:    &groupStore{db: db},
		users:     &userStore{db: db},
		audit:     &auditStore{db: db},
	}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS handles (
	handle_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id     TEXT UNIQUE,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	meta_type   TEXT NOT NULL,
	creator     TEXT NOT NULL DEFAULT '',
	modifier    TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	modified_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_handles_type_name ON handles(type, name);

CREATE TABLE IF NOT EXISTS unique_handles (
	type      TEXT NOT NULL,
	name      TEXT NOT NULL,
	handle_id INTEGER NOT NULL UNIQUE,
	PRIMARY KEY (type, name),
	FOREIGN KEY (handle_id) REFERENCES handles(handle_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS node_types (
	type   TEXT PRIMARY KEY,
	slug   TEXT NOT NULL UNIQUE,
	hidden INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contexts (
	context_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS handle_contexts (
	handle_id  INTEGER NOT NULL,
	context_id INTEGER NOT NULL,
	PRIMARY KEY (handle_id, context_id),
	FOREIGN KEY (handle_id) REFERENCES handles(handle_id) ON DELETE CASCADE,
	FOREIGN KEY (context_id) REFERENCES contexts(context_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_handle_contexts_context ON handle_contexts(context_id);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_groups (
	group_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id INTEGER NOT NULL,
	user_id  TEXT NOT NULL,
	PRIMARY KEY (group_id, user_id),
	FOREIGN KEY (group_id) REFERENCES user_groups(group_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);

CREATE TABLE IF NOT EXISTS authz_actions (
	action TEXT PRIMARY KEY
);

INSERT OR IGNORE INTO authz_actions (action) VALUES ('read'), ('write'), ('list'), ('admin');

CREATE TABLE IF NOT EXISTS group_context_grants (
	group_id   INTEGER NOT NULL,
	context_id INTEGER NOT NULL,
	action     TEXT NOT NULL,
	PRIMARY KEY (group_id, context_id, action),
	FOREIGN KEY (group_id) REFERENCES user_groups(group_id) ON DELETE CASCADE,
	FOREIGN KEY (context_id) REFERENCES contexts(context_id) ON DELETE CASCADE,
	FOREIGN KEY (action) REFERENCES authz_actions(action)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id        TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	action    TEXT NOT NULL DEFAULT '',
	actor     TEXT NOT NULL DEFAULT '',
	handle_id INTEGER NOT NULL DEFAULT 0,
	details   TEXT NOT NULL DEFAULT '{}',
	result    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_handle    ON audit_log(handle_id);
`
	_, err := db.Exec(ddl)
	return err
}

// Handles returns the HandleStore sub-store.
func (s *Store) Handles() store.HandleStore { return s.handles }

// NodeTypes returns the NodeTypeStore sub-store.
func (s *Store) NodeTypes() store.NodeTypeStore { return s.nodeTypes }

// Contexts returns the ContextStore sub-store.
func (s *Store) Contexts() store.ContextStore { return s.contexts }

// Groups returns the GroupStore sub-store.
func (s *Store) Groups() store.GroupStore { return s.groups }

// Users returns the UserStore sub-store.
func (s *Store) Users() store.UserStore { return s.users }

// AuditLog returns the AuditStore sub-store.
func (s *Store) AuditLog() store.AuditStore { return s.audit }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// isConstraint reports a UNIQUE, PRIMARY KEY or FOREIGN KEY violation.
func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

func dbFailure(err error, format string, args ...any) error {
	return nlerr.Errorf(nlerr.CodeStoreDatabaseFailure, format+": %w", append(args, err)...)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
