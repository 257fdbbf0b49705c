// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package graph is the capability interface over a property-graph engine.
//
// The inventory core never talks to a graph driver directly. It opens a Tx,
// performs node and edge mutations plus pattern matches inside it, and
// commits. Backends (sqlite, neo4j) register themselves from init().
package graph

import (
	"context"
)

// NodeID is the graph store's identifier for a node. Its format is owned by
// the backend and must be treated as opaque.
type NodeID string

// EdgeID is the graph store's identifier for an edge.
type EdgeID string

// Node is a graph-side property bag.
type Node struct {
	ID         NodeID
	Properties Properties
}

// Edge is a typed, directed relationship between two nodes.
type Edge struct {
	ID         EdgeID
	Type       string
	From       NodeID
	To         NodeID
	Properties Properties
}

// Store is a transactional property-graph store.
type Store interface {
	// Begin opens a transaction. Callers must Commit or Rollback it;
	// prefer Update and View, which guarantee the rollback.
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a unit of work against the graph store. All mutations issued through
// one Tx become visible together on Commit.
type Tx interface {
	CreateNode(ctx context.Context, props Properties) (NodeID, error)
	GetNode(ctx context.Context, id NodeID) (*Node, error)
	// SetNodeProperties merges props into the node's bag, or replaces the
	// bag entirely when replace is true.
	SetNodeProperties(ctx context.Context, id NodeID, props Properties, replace bool) error
	// DeleteNode fails with graph.node.delete.conflict while edges still
	// touch the node.
	DeleteNode(ctx context.Context, id NodeID) error

	CreateEdge(ctx context.Context, from, to NodeID, relType string, props Properties) (EdgeID, error)
	GetEdge(ctx context.Context, id EdgeID) (*Edge, error)
	SetEdgeProperties(ctx context.Context, id EdgeID, props Properties, replace bool) error
	DeleteEdge(ctx context.Context, id EdgeID) error

	// Match runs a pattern query and returns one Row per match.
	Match(ctx context.Context, p Pattern) ([]Row, error)

	// LockNode holds a write lock on the node until the transaction ends,
	// so a check-then-write on its edges cannot interleave with another
	// writer. A missing node fails with graph.node.not_found.
	LockNode(ctx context.Context, id NodeID) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
