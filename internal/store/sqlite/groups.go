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

type groupStore struct {
	db *sql.DB
}

// Create adds a group, returning the existing one when name is taken.
func (s *groupStore) Create(ctx context.Context, name string) (*store.Group, error) {
	if name == "" {
		return nil, nlerr.Wrap(store.ErrInvalidInput, nlerr.CodeAuthzInvalidInput, "group requires a name")
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO user_groups (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return nil, dbFailure(err, "creating group %q", name)
	}
	return s.Get(ctx, name)
}

func (s *groupStore) Get(ctx context.Context, name string) (*store.Group, error) {
	var g store.Group
	err := s.db.QueryRowContext(ctx, `SELECT group_id, name FROM user_groups WHERE name = ?`, name).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nlerr.Wrap(store.ErrNotFound, nlerr.CodeGroupNotFound, "group not found", nlerr.Field("group", name))
	}
	if err != nil {
		return nil, dbFailure(err, "getting group %q", name)
	}
	return &g, nil
}

func (s *groupStore) AddMember(ctx context.Context, group, userID string) error {
	g, err := s.Get(ctx, group)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
ON CONFLICT(group_id, user_id) DO NOTHING`, g.ID, userID)
	if err != nil {
		return dbFailure(err, "adding %s to group %q", userID, group)
	}
	return nil
}

func (s *groupStore) RemoveMember(ctx context.Context, group, userID string) error {
	g, err := s.Get(ctx, group)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, g.ID, userID); err != nil {
		return dbFailure(err, "removing %s from group %q", userID, group)
	}
	return nil
}

func (s *groupStore) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT g.name FROM group_members m
JOIN user_groups g ON g.group_id = m.group_id
WHERE m.user_id = ? ORDER BY g.name`, userID)
	if err != nil {
		return nil, dbFailure(err, "listing groups of %s", userID)
	}
	return scanStrings(rows)
}

func (s *groupStore) resolveGrant(ctx context.Context, g store.Grant) (groupID, contextID int64, err error) {
	if !g.Action.Valid() {
		return 0, 0, nlerr.Wrap(store.ErrInvalidInput, nlerr.CodeAuthzInvalidInput, "unknown action", nlerr.Field("action", string(g.Action)))
	}
	grp, err := s.Get(ctx, g.Group)
	if err != nil {
		return 0, 0, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT context_id FROM contexts WHERE name = ?`, g.Context).Scan(&contextID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nlerr.Wrap(store.ErrNotFound, nlerr.CodeAuthzContextUnknown, "unknown context", nlerr.FieldContext(g.Context))
	}
	if err != nil {
		return 0, 0, dbFailure(err, "getting context %q", g.Context)
	}
	return grp.ID, contextID, nil
}

func (s *groupStore) Grant(ctx context.Context, g store.Grant) error {
	groupID, contextID, err := s.resolveGrant(ctx, g)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO group_context_grants (group_id, context_id, action) VALUES (?, ?, ?)
ON CONFLICT(group_id, context_id, action) DO NOTHING`, groupID, contextID, string(g.Action))
	if err != nil {
		return dbFailure(err, "granting %s on %q to %q", g.Action, g.Context, g.Group)
	}
	return nil
}

func (s *groupStore) Revoke(ctx context.Context, g store.Grant) error {
	groupID, contextID, err := s.resolveGrant(ctx, g)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM group_context_grants WHERE group_id = ? AND context_id = ? AND action = ?`,
		groupID, contextID, string(g.Action))
	if err != nil {
		return dbFailure(err, "revoking %s on %q from %q", g.Action, g.Context, g.Group)
	}
	return nil
}

func (s *groupStore) Actions(ctx context.Context, groups []string, contextID int64) ([]store.AuthzAction, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(groups)+1)
	for _, g := range groups {
		args = append(args, g)
	}
	args = append(args, contextID)

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT gr.action FROM group_context_grants gr
JOIN user_groups g ON g.group_id = gr.group_id
WHERE g.name IN (`+placeholders(len(groups))+`) AND gr.context_id = ? ORDER BY gr.action`, args...)
	if err != nil {
		return nil, dbFailure(err, "listing actions on context %d", contextID)
	}
	names, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	actions := make([]store.AuthzAction, len(names))
	for i, n := range names {
		actions[i] = store.AuthzAction(n)
	}
	return actions, nil
}

func (s *groupStore) ContextsWithAction(ctx context.Context, groups []string, action store.AuthzAction) ([]int64, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(groups)+1)
	for _, g := range groups {
		args = append(args, g)
	}
	args = append(args, string(action))

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT gr.context_id FROM group_context_grants gr
JOIN user_groups g ON g.group_id = gr.group_id
WHERE g.name IN (`+placeholders(len(groups))+`) AND gr.action = ? ORDER BY gr.context_id`, args...)
	if err != nil {
		return nil, dbFailure(err, "listing contexts granting %s", action)
	}
	defer rows.Close() //nolint:errcheck

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, dbFailure(err, "scanning context id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure(err, "iterating context ids")
	}
	return ids, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, dbFailure(err, "scanning row")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure(err, "iterating rows")
	}
	return out, nil
}
