// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

type handleStore struct {
	db *sql.DB
}

const handleColumns = `handle_id, node_id, name, type, meta_type, creator, modifier, created_at, modified_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHandle(row rowScanner) (*store.Handle, error) {
	var (
		h                     store.Handle
		nodeID                sql.NullString
		createdAt, modifiedAt string
	)
	if err := row.Scan(&h.ID, &nodeID, &h.Name, &h.Type, &h.MetaType, &h.Creator, &h.Modifier, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}
	h.NodeID = nodeID.String
	h.CreatedAt = parseTime(createdAt)
	h.ModifiedAt = parseTime(modifiedAt)
	return &h, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func handleNotFound(id int64) error {
	return nlerr.Wrap(store.ErrNotFound, nlerr.CodeHandleNotFound, "handle not found", nlerr.FieldHandleID(id))
}

func (s *handleStore) Create(ctx context.Context, h *store.Handle, unique bool) error {
	if h.Name == "" || h.Type == "" {
		return nlerr.Wrap(store.ErrInvalidInput, nlerr.CodeHandleInvalid, "handle requires name and type")
	}
	now := time.Now()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	if h.ModifiedAt.IsZero() {
		h.ModifiedAt = h.CreatedAt
	}
	if h.Modifier == "" {
		h.Modifier = h.Creator
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbFailure(err, "beginning tx for handle %q", h.Name)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `INSERT INTO handles (node_id, name, type, meta_type, creator, modifier, created_at, modified_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(h.NodeID), h.Name, h.Type, string(h.MetaType), h.Creator, h.Modifier,
		formatTime(h.CreatedAt), formatTime(h.ModifiedAt),
	)
	if isConstraint(err) {
		return nlerr.Wrap(store.ErrConflict, nlerr.CodeHandleDuplicate, "node already bound to a handle", nlerr.FieldNodeID(h.NodeID))
	}
	if err != nil {
		return dbFailure(err, "inserting handle %q", h.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return dbFailure(err, "reading handle id")
	}

	if unique {
		var taken int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM handles WHERE type = ? AND name = ? AND handle_id <> ?`,
			h.Type, h.Name, id).Scan(&taken)
		if err != nil {
			return dbFailure(err, "looking up handle %q", h.Name)
		}
		if taken > 0 {
			return nlerr.Wrap(store.ErrConflict, nlerr.CodeHandleDuplicate, "a handle with this name and type exists",
				nlerr.Field("type", h.Type), nlerr.Field("name", h.Name))
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO unique_handles (type, name, handle_id) VALUES (?, ?, ?)`, h.Type, h.Name, id)
		if isConstraint(err) {
			return nlerr.Wrap(store.ErrConflict, nlerr.CodeHandleDuplicate, "unique name already claimed",
				nlerr.Field("type", h.Type), nlerr.Field("name", h.Name))
		}
		if err != nil {
			return dbFailure(err, "claiming unique name %q", h.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbFailure(err, "committing handle %q", h.Name)
	}
	h.ID = id
	return nil
}

func (s *handleStore) BindNode(ctx context.Context, id int64, nodeID string) error {
	if nodeID == "" {
		return nlerr.Wrap(store.ErrInvalidInput, nlerr.CodeHandleInvalid, "empty node id", nlerr.FieldHandleID(id))
	}

	res, err := s.db.ExecContext(ctx, `UPDATE handles SET node_id = ? WHERE handle_id = ? AND node_id IS NULL`, nodeID, id)
	if isConstraint(err) {
		return nlerr.Wrap(store.ErrConflict, nlerr.CodeHandleDuplicate, "node already bound to a handle",
			nlerr.FieldHandleID(id), nlerr.FieldNodeID(nodeID))
	}
	if err != nil {
		return dbFailure(err, "binding node %s to handle %d", nodeID, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbFailure(err, "checking rows affected for handle %d", id)
	}
	if n == 1 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.NodeID == nodeID {
		return nil
	}
	return nlerr.Wrap(store.ErrConflict, nlerr.CodeHandleDuplicate, "handle already bound to another node",
		nlerr.FieldHandleID(id), nlerr.FieldNodeID(current.NodeID))
}

func (s *handleStore) Get(ctx context.Context, id int64) (*store.Handle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+handleColumns+` FROM handles WHERE handle_id = ?`, id)
	h, err := scanHandle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, handleNotFound(id)
	}
	if err != nil {
		return nil, dbFailure(err, "getting handle %d", id)
	}
	return h, nil
}

func (s *handleStore) GetByNodeID(ctx context.Context, nodeID string) (*store.Handle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+handleColumns+` FROM handles WHERE node_id = ?`, nodeID)
	h, err := scanHandle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nlerr.Wrap(store.ErrNotFound, nlerr.CodeHandleNotFound, "no handle for node", nlerr.FieldNodeID(nodeID))
	}
	if err != nil {
		return nil, dbFailure(err, "getting handle for node %s", nodeID)
	}
	return h, nil
}

func (s *handleStore) GetUnique(ctx context.Context, name, typ string) (*store.Handle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+handleColumns+` FROM handles
WHERE type = ? AND name = ?
ORDER BY EXISTS (SELECT 1 FROM unique_handles u WHERE u.handle_id = handles.handle_id) DESC, handle_id
LIMIT 1`, typ, name)
	h, err := scanHandle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nlerr.Wrap(store.ErrNotFound, nlerr.CodeHandleNotFound, "no handle with this name and type",
			nlerr.Field("type", typ), nlerr.Field("name", name))
	}
	if err != nil {
		return nil, dbFailure(err, "getting handle %s/%s", typ, name)
	}
	return h, nil
}

func (s *handleStore) List(ctx context.Context, q store.HandleQuery) ([]*store.Handle, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT ` + handleColumns + ` FROM handles`)

	var conditions []string
	var args []any

	if q.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, q.Type)
	}
	if q.NamePrefix != "" {
		conditions = append(conditions, "substr(name, 1, ?) = ?")
		args = append(args, len([]rune(q.NamePrefix)), q.NamePrefix)
	}
	if q.IDs != nil {
		if len(q.IDs) == 0 {
			return nil, nil
		}
		conditions = append(conditions, "handle_id IN ("+placeholders(len(q.IDs))+")")
		for _, id := range q.IDs {
			args = append(args, id)
		}
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}
	qb.WriteString(" ORDER BY handle_id")

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	qb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, dbFailure(err, "listing handles")
	}
	defer rows.Close() //nolint:errcheck

	var handles []*store.Handle
	for rows.Next() {
		h, err := scanHandle(rows)
		if err != nil {
			return nil, dbFailure(err, "scanning handle row")
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure(err, "iterating handle rows")
	}
	return handles, nil
}

func (s *handleStore) Touch(ctx context.Context, id int64, t store.Touch) error {
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbFailure(err, "beginning tx for handle %d", id)
	}
	defer tx.Rollback() //nolint:errcheck

	var name sql.NullString
	if t.Name != nil {
		name = sql.NullString{String: *t.Name, Valid: true}
		_, err := tx.ExecContext(ctx, `UPDATE unique_handles SET name = ? WHERE handle_id = ?`, *t.Name, id)
		if isConstraint(err) {
			return nlerr.Wrap(store.ErrConflict, nlerr.CodeHandleDuplicate, "unique name already claimed",
				nlerr.FieldHandleID(id), nlerr.Field("name", *t.Name))
		}
		if err != nil {
			return dbFailure(err, "renaming unique claim of handle %d", id)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE handles SET modifier = ?, modified_at = ?, name = COALESCE(?, name) WHERE handle_id = ?`,
		t.Modifier, formatTime(at), name, id)
	if err != nil {
		return dbFailure(err, "touching handle %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbFailure(err, "checking rows affected for handle %d", id)
	}
	if n == 0 {
		return handleNotFound(id)
	}

	if err := tx.Commit(); err != nil {
		return dbFailure(err, "committing touch of handle %d", id)
	}
	return nil
}

func (s *handleStore) Delete(ctx context.Context, id int64) (*store.HandleSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbFailure(err, "beginning tx for handle %d", id)
	}
	defer tx.Rollback() //nolint:errcheck

	h, err := scanHandle(tx.QueryRowContext(ctx, `SELECT `+handleColumns+` FROM handles WHERE handle_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, handleNotFound(id)
	}
	if err != nil {
		return nil, dbFailure(err, "getting handle %d", id)
	}
	snap := &store.HandleSnapshot{Handle: *h}

	rows, err := tx.QueryContext(ctx, `SELECT context_id FROM handle_contexts WHERE handle_id = ? ORDER BY context_id`, id)
	if err != nil {
		return nil, dbFailure(err, "listing contexts of handle %d", id)
	}
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			_ = rows.Close()
			return nil, dbFailure(err, "scanning context row")
		}
		snap.ContextIDs = append(snap.ContextIDs, cid)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, dbFailure(err, "iterating context rows")
	}

	var claimed int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM unique_handles WHERE handle_id = ?`, id).Scan(&claimed); err != nil {
		return nil, dbFailure(err, "checking unique claim of handle %d", id)
	}
	snap.Unique = claimed > 0

	// Memberships and the unique claim go with the row through ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM handles WHERE handle_id = ?`, id); err != nil {
		return nil, dbFailure(err, "deleting handle %d", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, dbFailure(err, "committing delete of handle %d", id)
	}
	return snap, nil
}

func (s *handleStore) Restore(ctx context.Context, snap *store.HandleSnapshot) error {
	h := snap.Handle

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbFailure(err, "beginning tx for handle %d", h.ID)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `INSERT INTO handles (`+handleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, nullable(h.NodeID), h.Name, h.Type, string(h.MetaType), h.Creator, h.Modifier,
		formatTime(h.CreatedAt), formatTime(h.ModifiedAt),
	)
	if isConstraint(err) {
		return nlerr.Wrap(store.ErrConflict, nlerr.CodeHandleDuplicate, "handle row already present", nlerr.FieldHandleID(h.ID))
	}
	if err != nil {
		return dbFailure(err, "restoring handle %d", h.ID)
	}

	for _, cid := range snap.ContextIDs {
		// Contexts deleted in the meantime are skipped.
		if _, err := tx.ExecContext(ctx, `INSERT INTO handle_contexts (handle_id, context_id)
SELECT ?, context_id FROM contexts WHERE context_id = ?`, h.ID, cid); err != nil {
			return dbFailure(err, "restoring context %d of handle %d", cid, h.ID)
		}
	}

	if snap.Unique {
		_, err := tx.ExecContext(ctx, `INSERT INTO unique_handles (type, name, handle_id) VALUES (?, ?, ?)`, h.Type, h.Name, h.ID)
		if isConstraint(err) {
			return nlerr.Wrap(store.ErrConflict, nlerr.CodeHandleDuplicate, "unique name claimed while handle was deleted",
				nlerr.FieldHandleID(h.ID), nlerr.Field("name", h.Name))
		}
		if err != nil {
			return dbFailure(err, "restoring unique claim of handle %d", h.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbFailure(err, "committing restore of handle %d", h.ID)
	}
	return nil
}
