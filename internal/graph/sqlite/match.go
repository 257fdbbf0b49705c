// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

func (t *tx) Match(ctx context.Context, p graph.Pattern) ([]graph.Row, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.Rel == nil {
		return t.matchNodes(ctx, p)
	}

	var rows []graph.Row
	dirs := []graph.Direction{p.Rel.Direction}
	if p.Rel.Direction == graph.Both {
		dirs = []graph.Direction{graph.Outgoing, graph.Incoming}
	}
	for _, d := range dirs {
		part, err := t.matchHop(ctx, p, d)
		if err != nil {
			return nil, err
		}
		rows = append(rows, part...)
	}

	if p.Limit > 0 && len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	return rows, nil
}

func (t *tx) matchNodes(ctx context.Context, p graph.Pattern) ([]graph.Row, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT s.id, s.properties FROM nodes s WHERE 1 = 1`)
	if ok := whereNode(&qb, &args, "s", p.Start); !ok {
		return nil, nil
	}
	qb.WriteString(` ORDER BY s.id`)
	if p.Limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, p.Limit)
	}

	rs, err := t.tx.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "matching nodes: %w", err)
	}
	defer func() { _ = rs.Close() }()

	var rows []graph.Row
	for rs.Next() {
		var (
			id  int64
			raw string
		)
		if err := rs.Scan(&id, &raw); err != nil {
			return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "scanning node: %w", err)
		}
		props, err := decodeProps(raw)
		if err != nil {
			t.logger.WarnContext(ctx, "skipping node with corrupt properties", "node_id", id, "error", err)
			continue
		}
		n := &graph.Node{ID: formatID[graph.NodeID](id), Properties: props}
		if !p.Start.Matches(n) {
			continue
		}
		rows = append(rows, graph.Row{Start: n})
	}
	if err := rs.Err(); err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "iterating nodes: %w", err)
	}
	return rows, nil
}

func (t *tx) matchHop(ctx context.Context, p graph.Pattern, d graph.Direction) ([]graph.Row, error) {
	near, far := "e.from_id", "e.to_id"
	if d == graph.Incoming {
		near, far = "e.to_id", "e.from_id"
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT s.id, s.properties, e.id, e.type, e.from_id, e.to_id, e.properties, o.id, o.properties
FROM nodes s
JOIN edges e ON ` + near + ` = s.id
JOIN nodes o ON o.id = ` + far + `
WHERE 1 = 1`)
	if ok := whereNode(&qb, &args, "s", p.Start); !ok {
		return nil, nil
	}
	if ok := whereNode(&qb, &args, "o", p.End); !ok {
		return nil, nil
	}
	if p.Rel.Type != "" {
		qb.WriteString(` AND e.type = ?`)
		args = append(args, p.Rel.Type)
	}
	qb.WriteString(` ORDER BY e.id`)
	if p.Limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, p.Limit)
	}

	rs, err := t.tx.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "matching relationships: %w", err)
	}
	defer func() { _ = rs.Close() }()

	var rows []graph.Row
	for rs.Next() {
		var (
			sID, eID, eFrom, eTo, oID int64
			sRaw, eType, eRaw, oRaw   string
		)
		if err := rs.Scan(&sID, &sRaw, &eID, &eType, &eFrom, &eTo, &eRaw, &oID, &oRaw); err != nil {
			return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "scanning relationship: %w", err)
		}
		sProps, err1 := decodeProps(sRaw)
		eProps, err2 := decodeProps(eRaw)
		oProps, err3 := decodeProps(oRaw)
		if err1 != nil || err2 != nil || err3 != nil {
			t.logger.WarnContext(ctx, "skipping relationship with corrupt properties", "edge_id", eID)
			continue
		}

		row := graph.Row{
			Start: &graph.Node{ID: formatID[graph.NodeID](sID), Properties: sProps},
			Edge: &graph.Edge{
				ID:         formatID[graph.EdgeID](eID),
				Type:       eType,
				From:       formatID[graph.NodeID](eFrom),
				To:         formatID[graph.NodeID](eTo),
				Properties: eProps,
			},
			End: &graph.Node{ID: formatID[graph.NodeID](oID), Properties: oProps},
		}
		if !p.Start.Matches(row.Start) || !p.End.Matches(row.End) {
			continue
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, nlerr.Errorf(nlerr.CodeGraphStoreFailure, "iterating relationships: %w", err)
	}
	return rows, nil
}

// whereNode appends the SQL constraints for m on the nodes alias. It returns
// false when m can never match (an unparsable id).
func whereNode(qb *strings.Builder, args *[]any, alias string, m graph.NodeMatch) bool {
	if m.ID != "" {
		id, ok := parseID(string(m.ID))
		if !ok {
			return false
		}
		qb.WriteString(` AND ` + alias + `.id = ?`)
		*args = append(*args, id)
	}
	if m.Type != "" {
		qb.WriteString(` AND ` + alias + `.node_type = ?`)
		*args = append(*args, m.Type)
	}

	keys := make([]string, 0, len(m.Properties))
	for k := range m.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m.Properties[k]
		switch v.(type) {
		case string, int, int64, float64:
		default:
			// Left to the Go-side filter in NodeMatch.Matches.
			continue
		}
		if plainKey(k) {
			// Literal path so idx_nodes_handle can serve handle_id lookups.
			qb.WriteString(` AND json_extract(` + alias + `.properties, '$.` + k + `') = ?`)
			*args = append(*args, v)
			continue
		}
		qb.WriteString(` AND json_extract(` + alias + `.properties, ?) = ?`)
		*args = append(*args, jsonPath(k), v)
	}
	return true
}

func plainKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}
