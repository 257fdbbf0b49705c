// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package neo4j

import (
	"context"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

type tx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
	logger  *slog.Logger
	done    bool
}

func (t *tx) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "running cypher: %w", err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "collecting cypher result: %w", err)
	}
	return records, nil
}

func (t *tx) CreateNode(ctx context.Context, props graph.Properties) (graph.NodeID, error) {
	records, err := t.run(ctx,
		"CREATE (n"+labelsFor(props)+") SET n = $props RETURN elementId(n) AS id",
		map[string]any{"props": map[string]any(props.Clone())})
	if err != nil {
		return "", err
	}
	if len(records) != 1 {
		return "", nlerr.New(nlerr.CodeGraphStoreFailure, "create node returned no id")
	}
	id, _ := records[0].Get("id")
	s, _ := id.(string)
	return graph.NodeID(s), nil
}

func (t *tx) GetNode(ctx context.Context, id graph.NodeID) (*graph.Node, error) {
	records, err := t.run(ctx, "MATCH (n) WHERE elementId(n) = $id RETURN n", map[string]any{"id": string(id)})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nodeNotFound(id)
	}
	raw, _ := records[0].Get("n")
	n, ok := raw.(neo4j.Node)
	if !ok {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "unexpected node value %T", raw)
	}
	return toNode(n), nil
}

func (t *tx) SetNodeProperties(ctx context.Context, id graph.NodeID, props graph.Properties, replace bool) error {
	op := "+="
	if replace {
		op = "="
	}
	records, err := t.run(ctx,
		"MATCH (n) WHERE elementId(n) = $id SET n "+op+" $props RETURN elementId(n) AS id",
		map[string]any{"id": string(id), "props": map[string]any(props.Clone())})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nodeNotFound(id)
	}
	return nil
}

func (t *tx) DeleteNode(ctx context.Context, id graph.NodeID) error {
	records, err := t.run(ctx,
		"MATCH (n) WHERE elementId(n) = $id OPTIONAL MATCH (n)-[r]-() RETURN count(r) AS rels",
		map[string]any{"id": string(id)})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nodeNotFound(id)
	}
	if rels, _ := records[0].Get("rels"); rels != nil && rels.(int64) > 0 {
		return nlerr.New(nlerr.CodeGraphNodeDeleteBlocked, "node "+string(id)+" still has relationships",
			nlerr.FieldNodeID(string(id)))
	}

	_, err = t.run(ctx, "MATCH (n) WHERE elementId(n) = $id DELETE n", map[string]any{"id": string(id)})
	return err
}

func (t *tx) CreateEdge(ctx context.Context, from, to graph.NodeID, relType string, props graph.Properties) (graph.EdgeID, error) {
	if !identifier(relType) {
		return "", nlerr.Errorf(nlerr.CodeGraphPatternInvalid, "relationship type %q is not a valid identifier", relType)
	}
	for _, id := range []graph.NodeID{from, to} {
		if _, err := t.GetNode(ctx, id); err != nil {
			return "", err
		}
	}

	records, err := t.run(ctx,
		"MATCH (a) WHERE elementId(a) = $from MATCH (b) WHERE elementId(b) = $to "+
			"CREATE (a)-[r:"+relType+"]->(b) SET r = $props RETURN elementId(r) AS id",
		map[string]any{"from": string(from), "to": string(to), "props": map[string]any(props.Clone())})
	if err != nil {
		return "", err
	}
	if len(records) != 1 {
		return "", nlerr.New(nlerr.CodeGraphStoreFailure, "create relationship returned no id")
	}
	id, _ := records[0].Get("id")
	s, _ := id.(string)
	return graph.EdgeID(s), nil
}

func (t *tx) GetEdge(ctx context.Context, id graph.EdgeID) (*graph.Edge, error) {
	records, err := t.run(ctx, "MATCH ()-[r]->() WHERE elementId(r) = $id RETURN r", map[string]any{"id": string(id)})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, edgeNotFound(id)
	}
	raw, _ := records[0].Get("r")
	r, ok := raw.(neo4j.Relationship)
	if !ok {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "unexpected relationship value %T", raw)
	}
	return toEdge(r), nil
}

func (t *tx) SetEdgeProperties(ctx context.Context, id graph.EdgeID, props graph.Properties, replace bool) error {
	op := "+="
	if replace {
		op = "="
	}
	records, err := t.run(ctx,
		"MATCH ()-[r]->() WHERE elementId(r) = $id SET r "+op+" $props RETURN elementId(r) AS id",
		map[string]any{"id": string(id), "props": map[string]any(props.Clone())})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return edgeNotFound(id)
	}
	return nil
}

func (t *tx) DeleteEdge(ctx context.Context, id graph.EdgeID) error {
	records, err := t.run(ctx,
		"MATCH ()-[r]->() WHERE elementId(r) = $id DELETE r RETURN count(*) AS deleted",
		map[string]any{"id": string(id)})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return edgeNotFound(id)
	}
	if n, _ := records[0].Get("deleted"); n == nil || n.(int64) == 0 {
		return edgeNotFound(id)
	}
	return nil
}

func (t *tx) Match(ctx context.Context, p graph.Pattern) ([]graph.Row, error) {
	cypher, params, err := buildMatch(p)
	if err != nil {
		return nil, err
	}
	records, err := t.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	rows := make([]graph.Row, 0, len(records))
	for _, rec := range records {
		var row graph.Row
		if v, ok := rec.Get("s"); ok {
			if n, ok := v.(neo4j.Node); ok {
				row.Start = toNode(n)
			}
		}
		if v, ok := rec.Get("e"); ok {
			if r, ok := v.(neo4j.Relationship); ok {
				row.Edge = toEdge(r)
			}
		}
		if v, ok := rec.Get("o"); ok {
			if n, ok := v.(neo4j.Node); ok {
				row.End = toNode(n)
			}
		}
		if row.Start == nil {
			t.logger.WarnContext(ctx, "skipping match row without start node")
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LockNode writes and removes a marker property; Neo4j keeps the node's
// write lock until the transaction ends.
func (t *tx) LockNode(ctx context.Context, id graph.NodeID) error {
	records, err := t.run(ctx, lockNodeCypher, map[string]any{"id": string(id)})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nodeNotFound(id)
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	defer t.finish(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "committing neo4j transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	defer t.finish(ctx)
	if err := t.tx.Rollback(ctx); err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "rolling back neo4j transaction: %w", err)
	}
	return nil
}

func (t *tx) finish(ctx context.Context) {
	t.done = true
	if err := t.session.Close(ctx); err != nil {
		t.logger.DebugContext(ctx, "closing neo4j session", "error", err)
	}
}

func toNode(n neo4j.Node) *graph.Node {
	return &graph.Node{ID: graph.NodeID(n.ElementId), Properties: graph.Properties(n.Props).Clone()}
}

func toEdge(r neo4j.Relationship) *graph.Edge {
	return &graph.Edge{
		ID:         graph.EdgeID(r.ElementId),
		Type:       r.Type,
		From:       graph.NodeID(r.StartElementId),
		To:         graph.NodeID(r.EndElementId),
		Properties: graph.Properties(r.Props).Clone(),
	}
}

func nodeNotFound(id graph.NodeID) error {
	return nlerr.New(nlerr.CodeGraphNodeNotFound, "node "+string(id)+" not found", nlerr.FieldNodeID(string(id)))
}

func edgeNotFound(id graph.EdgeID) error {
	return nlerr.New(nlerr.CodeGraphEdgeNotFound, "edge "+string(id)+" not found", nlerr.FieldEdgeID(string(id)))
}
