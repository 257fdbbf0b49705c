// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package graphtest provides graph store doubles for tests.
package graphtest

import (
	"context"
	"sync"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Op names a graph operation that a fault can target.
type Op string

const (
	OpBegin   Op = "begin"
	OpCreate  Op = "create_node"
	OpGet     Op = "get_node"
	OpSetNode Op = "set_node"
	OpDelete  Op = "delete_node"
	OpEdge    Op = "create_edge"
	OpGetEdge Op = "get_edge"
	OpSetEdge Op = "set_edge"
	OpDelEdge Op = "delete_edge"
	OpMatch   Op = "match"
	OpLock    Op = "lock_node"
	OpCommit  Op = "commit"
)

// Call describes an intercepted operation.
type Call struct {
	Op    Op
	Node  graph.NodeID
	Edge  graph.EdgeID
	Props graph.Properties
}

// Fault decides whether a call fails. Returning nil lets it through.
type Fault func(Call) error

// Store wraps a real graph store and fails selected operations.
type Store struct {
	inner graph.Store

	mu     sync.Mutex
	faults []Fault
}

// Wrap returns a Store delegating to inner.
func Wrap(inner graph.Store) *Store {
	return &Store{inner: inner}
}

// Inject adds a fault. Faults are consulted in order; the first error wins.
func (s *Store) Inject(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, f)
}

// Reset removes every fault.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// FailOp returns a Fault that fails every call of op with a graph store error.
func FailOp(op Op) Fault {
	return func(c Call) error {
		if c.Op == op {
			return StoreError(op)
		}
		return nil
	}
}

// StoreError builds the error a failing backend would return.
func StoreError(op Op) error {
	return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "injected %s failure", op)
}

func (s *Store) check(c Call) error {
	s.mu.Lock()
	faults := append([]Fault(nil), s.faults...)
	s.mu.Unlock()

	for _, f := range faults {
		if err := f(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	if err := s.check(Call{Op: OpBegin}); err != nil {
		return nil, err
	}
	inner, err := s.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &tx{inner: inner, store: s}, nil
}

func (s *Store) Close() error { return s.inner.Close() }

type tx struct {
	inner graph.Tx
	store *Store
}

func (t *tx) CreateNode(ctx context.Context, props graph.Properties) (graph.NodeID, error) {
	if err := t.store.check(Call{Op: OpCreate, Props: props}); err != nil {
		return "", err
	}
	return t.inner.CreateNode(ctx, props)
}

func (t *tx) GetNode(ctx context.Context, id graph.NodeID) (*graph.Node, error) {
	if err := t.store.check(Call{Op: OpGet, Node: id}); err != nil {
		return nil, err
	}
	return t.inner.GetNode(ctx, id)
}

func (t *tx) SetNodeProperties(ctx context.Context, id graph.NodeID, props graph.Properties, replace bool) error {
	if err := t.store.check(Call{Op: OpSetNode, Node: id, Props: props}); err != nil {
		return err
	}
	return t.inner.SetNodeProperties(ctx, id, props, replace)
}

func (t *tx) DeleteNode(ctx context.Context, id graph.NodeID) error {
	if err := t.store.check(Call{Op: OpDelete, Node: id}); err != nil {
		return err
	}
	return t.inner.DeleteNode(ctx, id)
}

func (t *tx) CreateEdge(ctx context.Context, from, to graph.NodeID, relType string, props graph.Properties) (graph.EdgeID, error) {
	if err := t.store.check(Call{Op: OpEdge, Node: from, Props: props}); err != nil {
		return "", err
	}
	return t.inner.CreateEdge(ctx, from, to, relType, props)
}

func (t *tx) GetEdge(ctx context.Context, id graph.EdgeID) (*graph.Edge, error) {
	if err := t.store.check(Call{Op: OpGetEdge, Edge: id}); err != nil {
		return nil, err
	}
	return t.inner.GetEdge(ctx, id)
}

func (t *tx) SetEdgeProperties(ctx context.Context, id graph.EdgeID, props graph.Properties, replace bool) error {
	if err := t.store.check(Call{Op: OpSetEdge, Edge: id, Props: props}); err != nil {
		return err
	}
	return t.inner.SetEdgeProperties(ctx, id, props, replace)
}

func (t *tx) DeleteEdge(ctx context.Context, id graph.EdgeID) error {
	if err := t.store.check(Call{Op: OpDelEdge, Edge: id}); err != nil {
		return err
	}
	return t.inner.DeleteEdge(ctx, id)
}

func (t *tx) Match(ctx context.Context, p graph.Pattern) ([]graph.Row, error) {
	if err := t.store.check(Call{Op: OpMatch, Node: p.Start.ID}); err != nil {
		return nil, err
	}
	return t.inner.Match(ctx, p)
}

func (t *tx) LockNode(ctx context.Context, id graph.NodeID) error {
	if err := t.store.check(Call{Op: OpLock, Node: id}); err != nil {
		return err
	}
	return t.inner.LockNode(ctx, id)
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.store.check(Call{Op: OpCommit}); err != nil {
		return err
	}
	return t.inner.Commit(ctx)
}

func (t *tx) Rollback(ctx context.Context) error {
	return t.inner.Rollback(ctx)
}
