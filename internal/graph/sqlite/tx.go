// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

type tx struct {
	tx     *sql.Tx
	logger *slog.Logger
}

func (t *tx) CreateNode(ctx context.Context, props graph.Properties) (graph.NodeID, error) {
	raw, err := encodeProps(props)
	if err != nil {
		return "", err
	}

	res, err := t.tx.ExecContext(ctx, `INSERT INTO nodes (node_type, properties) VALUES (?, ?)`,
		props.String(graph.KeyNodeType), raw)
	if err != nil {
		return "", nlerr.Errorf(nlerr.CodeGraphStoreFailure, "inserting node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", nlerr.Errorf(nlerr.CodeGraphStoreFailure, "reading node id: %w", err)
	}
	return formatID[graph.NodeID](id), nil
}

func (t *tx) GetNode(ctx context.Context, id graph.NodeID) (*graph.Node, error) {
	rowID, ok := parseID(string(id))
	if !ok {
		return nil, nodeNotFound(id)
	}

	var raw string
	err := t.tx.QueryRowContext(ctx, `SELECT properties FROM nodes WHERE id = ?`, rowID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nodeNotFound(id)
	}
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "getting node %s: %w", id, err)
	}

	props, err := decodeProps(raw)
	if err != nil {
		return nil, err
	}
	return &graph.Node{ID: id, Properties: props}, nil
}

func (t *tx) SetNodeProperties(ctx context.Context, id graph.NodeID, props graph.Properties, replace bool) error {
	next := props
	if !replace {
		cur, err := t.GetNode(ctx, id)
		if err != nil {
			return err
		}
		next = cur.Properties.Merge(props)
	}

	raw, err := encodeProps(next)
	if err != nil {
		return err
	}

	rowID, _ := parseID(string(id))
	res, err := t.tx.ExecContext(ctx, `UPDATE nodes SET properties = ?, node_type = ? WHERE id = ?`,
		raw, next.String(graph.KeyNodeType), rowID)
	if err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "updating node %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nodeNotFound(id)
	}
	return nil
}

func (t *tx) DeleteNode(ctx context.Context, id graph.NodeID) error {
	rowID, ok := parseID(string(id))
	if !ok {
		return nodeNotFound(id)
	}

	var edges int
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edges WHERE from_id = ? OR to_id = ?`, rowID, rowID,
	).Scan(&edges); err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "counting edges of node %s: %w", id, err)
	}
	if edges > 0 {
		return nlerr.New(nlerr.CodeGraphNodeDeleteBlocked,
			"node "+string(id)+" still has "+strconv.Itoa(edges)+" relationships",
			nlerr.FieldNodeID(string(id)))
	}

	res, err := t.tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, rowID)
	if err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "deleting node %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nodeNotFound(id)
	}
	return nil
}

func (t *tx) CreateEdge(ctx context.Context, from, to graph.NodeID, relType string, props graph.Properties) (graph.EdgeID, error) {
	fromID, okFrom := parseID(string(from))
	toID, okTo := parseID(string(to))
	if !okFrom {
		return "", nodeNotFound(from)
	}
	if !okTo {
		return "", nodeNotFound(to)
	}
	// Surface a missing endpoint as not found rather than a foreign key failure.
	for _, id := range []graph.NodeID{from, to} {
		if _, err := t.GetNode(ctx, id); err != nil {
			return "", err
		}
	}

	raw, err := encodeProps(props)
	if err != nil {
		return "", err
	}

	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO edges (type, from_id, to_id, properties) VALUES (?, ?, ?, ?)`,
		relType, fromID, toID, raw)
	if err != nil {
		return "", nlerr.Errorf(nlerr.CodeGraphStoreFailure, "inserting %s edge: %w", relType, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", nlerr.Errorf(nlerr.CodeGraphStoreFailure, "reading edge id: %w", err)
	}
	return formatID[graph.EdgeID](id), nil
}

func (t *tx) GetEdge(ctx context.Context, id graph.EdgeID) (*graph.Edge, error) {
	rowID, ok := parseID(string(id))
	if !ok {
		return nil, edgeNotFound(id)
	}

	var (
		relType  string
		from, to int64
		raw      string
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT type, from_id, to_id, properties FROM edges WHERE id = ?`, rowID,
	).Scan(&relType, &from, &to, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, edgeNotFound(id)
	}
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "getting edge %s: %w", id, err)
	}

	props, err := decodeProps(raw)
	if err != nil {
		return nil, err
	}
	return &graph.Edge{
		ID:         id,
		Type:       relType,
		From:       formatID[graph.NodeID](from),
		To:         formatID[graph.NodeID](to),
		Properties: props,
	}, nil
}

func (t *tx) SetEdgeProperties(ctx context.Context, id graph.EdgeID, props graph.Properties, replace bool) error {
	next := props
	if !replace {
		cur, err := t.GetEdge(ctx, id)
		if err != nil {
			return err
		}
		next = cur.Properties.Merge(props)
	}

	raw, err := encodeProps(next)
	if err != nil {
		return err
	}

	rowID, _ := parseID(string(id))
	res, err := t.tx.ExecContext(ctx, `UPDATE edges SET properties = ? WHERE id = ?`, raw, rowID)
	if err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "updating edge %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return edgeNotFound(id)
	}
	return nil
}

func (t *tx) DeleteEdge(ctx context.Context, id graph.EdgeID) error {
	rowID, ok := parseID(string(id))
	if !ok {
		return edgeNotFound(id)
	}

	res, err := t.tx.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, rowID)
	if err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "deleting edge %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return edgeNotFound(id)
	}
	return nil
}

// LockNode only checks the node exists: the transaction already holds the
// database write lock from its first statement.
func (t *tx) LockNode(ctx context.Context, id graph.NodeID) error {
	rowID, ok := parseID(string(id))
	if !ok {
		return nodeNotFound(id)
	}
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, rowID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nodeNotFound(id)
	}
	if err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "locking node %s: %w", id, err)
	}
	return nil
}

func (t *tx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "committing graph transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "rolling back graph transaction: %w", err)
	}
	return nil
}

func encodeProps(props graph.Properties) (string, error) {
	if props == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", nlerr.Errorf(nlerr.CodeGraphStoreFailure, "encoding properties: %w", err)
	}
	return string(raw), nil
}

func decodeProps(raw string) (graph.Properties, error) {
	props := graph.Properties{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "decoding properties: %w", err)
	}
	return props, nil
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func formatID[T ~string](id int64) T {
	return T(strconv.FormatInt(id, 10))
}

func nodeNotFound(id graph.NodeID) error {
	return nlerr.New(nlerr.CodeGraphNodeNotFound, "node "+string(id)+" not found", nlerr.FieldNodeID(string(id)))
}

func edgeNotFound(id graph.EdgeID) error {
	return nlerr.New(nlerr.CodeGraphEdgeNotFound, "edge "+string(id)+" not found", nlerr.FieldEdgeID(string(id)))
}
