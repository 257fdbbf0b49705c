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

type nodeTypeStore struct {
	db *sql.DB
}

// Register adds nt to the vocabulary. Registering an existing type again
// only updates its hidden flag.
func (s *nodeTypeStore) Register(ctx context.Context, nt *store.NodeType) error {
	if nt.Type == "" {
		return nlerr.Wrap(store.ErrInvalidInput, nlerr.CodeHandleInvalid, "node type requires a name")
	}
	if nt.Slug == "" {
		nt.Slug = store.Slug(nt.Type)
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO node_types (type, slug, hidden) VALUES (?, ?, ?)
ON CONFLICT(type) DO UPDATE SET hidden = excluded.hidden`, nt.Type, nt.Slug, nt.Hidden)
	if isConstraint(err) {
		return nlerr.Wrap(store.ErrConflict, nlerr.CodeNodeTypeConflict, "slug already used by another node type",
			nlerr.Field("type", nt.Type), nlerr.Field("slug", nt.Slug))
	}
	if err != nil {
		return dbFailure(err, "registering node type %q", nt.Type)
	}
	return nil
}

func (s *nodeTypeStore) Get(ctx context.Context, typ string) (*store.NodeType, error) {
	return s.get(ctx, `SELECT type, slug, hidden FROM node_types WHERE type = ?`, typ)
}

func (s *nodeTypeStore) GetBySlug(ctx context.Context, slug string) (*store.NodeType, error) {
	return s.get(ctx, `SELECT type, slug, hidden FROM node_types WHERE slug = ?`, slug)
}

func (s *nodeTypeStore) get(ctx context.Context, q, key string) (*store.NodeType, error) {
	var nt store.NodeType
	err := s.db.QueryRowContext(ctx, q, key).Scan(&nt.Type, &nt.Slug, &nt.Hidden)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nlerr.Wrap(store.ErrNotFound, nlerr.CodeNodeTypeNotFound, "node type not registered", nlerr.Field("type", key))
	}
	if err != nil {
		return nil, dbFailure(err, "getting node type %q", key)
	}
	return &nt, nil
}

func (s *nodeTypeStore) List(ctx context.Context, includeHidden bool) ([]*store.NodeType, error) {
	q := `SELECT type, slug, hidden FROM node_types`
	if !includeHidden {
		q += ` WHERE hidden = 0`
	}
	q += ` ORDER BY type`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, dbFailure(err, "listing node types")
	}
	defer rows.Close() //nolint:errcheck

	var types []*store.NodeType
	for rows.Next() {
		var nt store.NodeType
		if err := rows.Scan(&nt.Type, &nt.Slug, &nt.Hidden); err != nil {
			return nil, dbFailure(err, "scanning node type row")
		}
		types = append(types, &nt)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure(err, "iterating node type rows")
	}
	return types, nil
}
