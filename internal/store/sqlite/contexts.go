// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

type contextStore struct {
	db *sql.DB
}

// Create adds a context, returning the existing one when name is taken.
func (s *contextStore) Create(ctx context.Context, name string) (*store.Context, error) {
	if name == "" {
		return nil, nlerr.Wrap(store.ErrInvalidInput, nlerr.CodeAuthzInvalidInput, "context requires a name")
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO contexts (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return nil, dbFailure(err, "creating context %q", name)
	}
	return s.Get(ctx, name)
}

func (s *contextStore) Get(ctx context.Context, name string) (*store.Context, error) {
	var c store.Context
	err := s.db.QueryRowContext(ctx, `SELECT context_id, name FROM contexts WHERE name = ?`, name).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nlerr.Wrap(store.ErrNotFound, nlerr.CodeAuthzContextUnknown, "unknown context", nlerr.FieldContext(name))
	}
	if err != nil {
		return nil, dbFailure(err, "getting context %q", name)
	}
	return &c, nil
}

func (s *contextStore) List(ctx context.Context) ([]*store.Context, error) {
	return s.query(ctx, `SELECT context_id, name FROM contexts ORDER BY name`)
}

func (s *contextStore) ContextsOf(ctx context.Context, handleID int64) ([]*store.Context, error) {
	return s.query(ctx, `SELECT c.context_id, c.name FROM handle_contexts hc
JOIN contexts c ON c.context_id = hc.context_id
WHERE hc.handle_id = ? ORDER BY c.name`, handleID)
}

func (s *contextStore) query(ctx context.Context, q string, args ...any) ([]*store.Context, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbFailure(err, "listing contexts")
	}
	defer rows.Close() //nolint:errcheck

	var out []*store.Context
	for rows.Next() {
		var c store.Context
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, dbFailure(err, "scanning context row")
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure(err, "iterating context rows")
	}
	return out, nil
}

func (s *contextStore) Assign(ctx context.Context, handleID, contextID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO handle_contexts (handle_id, context_id) VALUES (?, ?)
ON CONFLICT(handle_id, context_id) DO NOTHING`, handleID, contextID)
	if isConstraint(err) {
		// Only the foreign keys can fail here.
		return false, nlerr.Wrap(store.ErrNotFound, nlerr.CodeHandleNotFound, "handle or context missing",
			nlerr.FieldHandleID(handleID), nlerr.Field("context_id", contextID))
	}
	if err != nil {
		return false, dbFailure(err, "assigning handle %d to context %d", handleID, contextID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbFailure(err, "checking rows affected")
	}
	return n == 1, nil
}

func (s *contextStore) Unassign(ctx context.Context, handleID, contextID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM handle_contexts WHERE handle_id = ? AND context_id = ?`, handleID, contextID)
	if err != nil {
		return false, dbFailure(err, "unassigning handle %d from context %d", handleID, contextID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbFailure(err, "checking rows affected")
	}
	return n == 1, nil
}

func (s *contextStore) IsMember(ctx context.Context, handleID, contextID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM handle_contexts WHERE handle_id = ? AND context_id = ?`,
		handleID, contextID).Scan(&n)
	if err != nil {
		return false, dbFailure(err, "checking membership of handle %d", handleID)
	}
	return n > 0, nil
}

func (s *contextStore) Members(ctx context.Context, contextIDs []int64) ([]int64, error) {
	if len(contextIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(contextIDs))
	for i, id := range contextIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT handle_id FROM handle_contexts
WHERE context_id IN (`+placeholders(len(contextIDs))+`) ORDER BY handle_id`, args...)
	if err != nil {
		return nil, dbFailure(err, "listing context members")
	}
	defer rows.Close() //nolint:errcheck

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, dbFailure(err, "scanning member row")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure(err, "iterating member rows")
	}
	return ids, nil
}
