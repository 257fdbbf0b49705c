// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package graph

import (
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Direction selects which edges a RelMatch follows from the start node.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// NodeMatch constrains a node in a pattern. Zero fields match anything.
type NodeMatch struct {
	ID         NodeID
	Type       string // node_type property
	Properties Properties
}

// RelMatch constrains the relationship leg of a pattern.
type RelMatch struct {
	Type      string // empty matches every relationship type
	Direction Direction
}

// Pattern is a one-hop pattern: (start)-[rel]-(end). When Rel is nil only
// the start node is matched and Row.Edge/Row.End are nil.
type Pattern struct {
	Start NodeMatch
	Rel   *RelMatch
	End   NodeMatch
	Limit int
}

// Row is one match of a Pattern.
type Row struct {
	Start *Node
	Edge  *Edge
	End   *Node
}

// Validate rejects patterns that cannot be executed.
func (p Pattern) Validate() error {
	if p.Limit < 0 {
		return nlerr.Errorf(nlerr.CodeGraphPatternInvalid, "pattern limit must not be negative, got %d", p.Limit)
	}
	if p.Rel == nil && (p.End.ID != "" || p.End.Type != "" || len(p.End.Properties) > 0) {
		return nlerr.New(nlerr.CodeGraphPatternInvalid, "pattern end node requires a relationship match")
	}
	if p.Rel != nil && (p.Rel.Direction < Outgoing || p.Rel.Direction > Both) {
		return nlerr.Errorf(nlerr.CodeGraphPatternInvalid, "pattern direction %d is invalid", p.Rel.Direction)
	}
	return nil
}

// Matches reports whether n satisfies m. Backends that cannot push a
// constraint down to the engine use this as the final filter.
func (m NodeMatch) Matches(n *Node) bool {
	if n == nil {
		return false
	}
	if m.ID != "" && m.ID != n.ID {
		return false
	}
	if m.Type != "" && n.Properties.String(KeyNodeType) != m.Type {
		return false
	}
	for k, want := range m.Properties {
		got, ok := n.Properties[k]
		if !ok || !ValuesEqual(got, want) {
			return false
		}
	}
	return true
}
