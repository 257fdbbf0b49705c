// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package neo4j

import (
	"sort"
	"strconv"
	"strings"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// nodeLabel is carried by every node the inventory creates.
const nodeLabel = "Node"

// lockNodeCypher takes the node's write lock without leaving a trace.
const lockNodeCypher = "MATCH (n) WHERE elementId(n) = $id SET n._noclook_lock = true REMOVE n._noclook_lock RETURN elementId(n) AS id"

// identifier reports whether s can be spliced into Cypher as a label or
// relationship type. Labels cannot be parameterised.
func identifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// labelsFor returns the label list for a new node: the common label plus the
// meta type when it is a safe identifier.
func labelsFor(props graph.Properties) string {
	labels := ":" + nodeLabel
	if meta := props.String(graph.KeyNodeMetaType); identifier(meta) {
		labels += ":" + meta
	}
	return labels
}

// buildMatch translates a Pattern into a Cypher query and its parameters.
// Returned columns are s, e and o (e and o only when the pattern has a
// relationship leg).
func buildMatch(p graph.Pattern) (string, map[string]any, error) {
	if err := p.Validate(); err != nil {
		return "", nil, err
	}

	params := map[string]any{}
	var conds []string
	conds = append(conds, nodeConds("s", p.Start, params)...)

	var q strings.Builder
	if p.Rel == nil {
		q.WriteString("MATCH (s:" + nodeLabel + ")")
	} else {
		rel := "e"
		if p.Rel.Type != "" {
			if !identifier(p.Rel.Type) {
				return "", nil, nlerr.Errorf(nlerr.CodeGraphPatternInvalid, "relationship type %q is not a valid identifier", p.Rel.Type)
			}
			rel += ":" + p.Rel.Type
		}
		switch p.Rel.Direction {
		case graph.Outgoing:
			q.WriteString("MATCH (s:" + nodeLabel + ")-[" + rel + "]->(o:" + nodeLabel + ")")
		case graph.Incoming:
			q.WriteString("MATCH (s:" + nodeLabel + ")<-[" + rel + "]-(o:" + nodeLabel + ")")
		default:
			q.WriteString("MATCH (s:" + nodeLabel + ")-[" + rel + "]-(o:" + nodeLabel + ")")
		}
		conds = append(conds, nodeConds("o", p.End, params)...)
	}

	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if p.Rel == nil {
		q.WriteString(" RETURN s ORDER BY elementId(s)")
	} else {
		q.WriteString(" RETURN s, e, o ORDER BY elementId(e)")
	}
	if p.Limit > 0 {
		q.WriteString(" LIMIT $limit")
		params["limit"] = int64(p.Limit)
	}

	return q.String(), params, nil
}

func nodeConds(alias string, m graph.NodeMatch, params map[string]any) []string {
	var conds []string
	if m.ID != "" {
		conds = append(conds, "elementId("+alias+") = $"+alias+"_id")
		params[alias+"_id"] = string(m.ID)
	}
	if m.Type != "" {
		conds = append(conds, alias+"."+graph.KeyNodeType+" = $"+alias+"_type")
		params[alias+"_type"] = m.Type
	}

	keys := make([]string, 0, len(m.Properties))
	for k := range m.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		name := alias + "_p" + strconv.Itoa(i)
		conds = append(conds, alias+".`"+strings.ReplaceAll(k, "`", "``")+"` = $"+name)
		params[name] = m.Properties[k]
	}
	return conds
}
