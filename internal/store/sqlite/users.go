// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

type userStore struct {
	db *sql.DB
}

func (s *userStore) Create(ctx context.Context, user *store.User) error {
	if user.ID == "" {
		return nlerr.Wrap(store.ErrInvalidInput, nlerr.CodeAuthzInvalidInput, "user requires an id")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		user.ID, user.Name, formatTime(user.CreatedAt))
	if isConstraint(err) {
		return nlerr.Wrap(store.ErrConflict, nlerr.CodeUserConflict, "user already exists", nlerr.FieldUserID(user.ID))
	}
	if err != nil {
		return dbFailure(err, "inserting user %s", user.ID)
	}
	return nil
}

func (s *userStore) Get(ctx context.Context, id string) (*store.User, error) {
	var u store.User
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nlerr.Wrap(store.ErrNotFound, nlerr.CodeUserNotFound, "user not found", nlerr.FieldUserID(id))
	}
	if err != nil {
		return nil, dbFailure(err, "getting user %s", id)
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (s *userStore) List(ctx context.Context, opts store.ListOpts) ([]*store.User, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return nil, dbFailure(err, "listing users")
	}
	defer rows.Close() //nolint:errcheck

	var users []*store.User
	for rows.Next() {
		var u store.User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &createdAt); err != nil {
			return nil, dbFailure(err, "scanning user row")
		}
		u.CreatedAt = parseTime(createdAt)
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure(err, "iterating user rows")
	}
	return users, nil
}
