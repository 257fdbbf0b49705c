// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package handle keeps relational handles and graph nodes in lock-step.
//
// Every operation touching both stores runs as a saga: each completed step
// registers an undo action that runs if a later step fails. There is no
// two-phase commit, so a store failure during compensation can leave one
// side behind; such failures are logged at error level and returned with
// the handle.compensation.failure code.
package handle

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/metrics"
	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// DetachFunc removes every edge incident to node inside tx.
type DetachFunc func(ctx context.Context, tx graph.Tx, node graph.NodeID) error

// Validator checks a node's merged property bag before it is written.
type Validator func(props graph.Properties) error

// RenameGuard runs inside the graph transaction of a rename and rejects
// names that would break a constraint held by the node's neighbours.
type RenameGuard func(ctx context.Context, tx graph.Tx, node *graph.Node, name string) error

// Registry owns the handle/node lifecycle.
type Registry struct {
	rel        store.Store
	graph      graph.Store
	detach     DetachFunc
	validators map[string]Validator
	renames    []RenameGuard
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	unique singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithDetach sets the function used to remove incident edges on delete.
func WithDetach(fn DetachFunc) Option {
	return func(r *Registry) { r.detach = fn }
}

// WithValidator registers a property validator for a node type.
func WithValidator(nodeType string, v Validator) Option {
	return func(r *Registry) { r.validators[nodeType] = v }
}

// WithRenameGuard adds a check run whenever a node's name changes.
func WithRenameGuard(g RenameGuard) Option {
	return func(r *Registry) { r.renames = append(r.renames, g) }
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry over the relational store and the graph store.
func New(rel store.Store, g graph.Store, opts ...Option) *Registry {
	r := &Registry{
		rel:        rel,
		graph:      g,
		detach:     detachAll,
		validators: make(map[string]Validator),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the handle row.
func (r *Registry) Get(ctx context.Context, id int64) (*store.Handle, error) {
	return r.rel.Handles().Get(ctx, id)
}

// GetByNodeID returns the handle bound to a graph node.
func (r *Registry) GetByNodeID(ctx context.Context, nodeID graph.NodeID) (*store.Handle, error) {
	return r.rel.Handles().GetByNodeID(ctx, string(nodeID))
}

// List returns handle rows matching q.
func (r *Registry) List(ctx context.Context, q store.HandleQuery) ([]*store.Handle, error) {
	return r.rel.Handles().List(ctx, q)
}

// NodeFor returns the graph node backing handle id. A handle without a
// node is a consistency fault, reported distinctly from a missing handle.
func (r *Registry) NodeFor(ctx context.Context, id int64) (*graph.Node, error) {
	h, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var node *graph.Node
	err = graph.View(ctx, r.graph, func(tx graph.Tx) error {
		var err error
		node, err = r.loadNode(ctx, tx, h)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Touch stamps modified_at and modifier on a handle.
func (r *Registry) Touch(ctx context.Context, id int64, modifier string) error {
	return r.rel.Handles().Touch(ctx, id, store.Touch{Modifier: modifier, At: r.now()})
}

// loadNode reads h's node inside tx, turning absence into a consistency fault.
func (r *Registry) loadNode(ctx context.Context, tx graph.Tx, h *store.Handle) (*graph.Node, error) {
	if h.NodeID == "" {
		return nil, r.consistencyFault(ctx, h, "handle has no bound node", nil)
	}
	node, err := tx.GetNode(ctx, graph.NodeID(h.NodeID))
	if nlerr.IsNotFound(err) {
		return nil, r.consistencyFault(ctx, h, "backing node missing", err)
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (r *Registry) consistencyFault(ctx context.Context, h *store.Handle, msg string, cause error) error {
	r.logger.ErrorContext(ctx, "handle consistency fault",
		"handle_id", h.ID,
		"node_id", h.NodeID,
		"reason", msg,
	)
	fields := []nlerr.Attr{nlerr.FieldHandleID(h.ID), nlerr.FieldNodeID(h.NodeID)}
	if cause == nil {
		return nlerr.New(nlerr.CodeHandleConsistencyFault, msg, fields...)
	}
	// Wrapping would let the inner not-found code win classification.
	return nlerr.New(nlerr.CodeHandleConsistencyFault, msg+": "+cause.Error(), fields...)
}

func (r *Registry) validateType(ctx context.Context, typ string, meta store.MetaType) error {
	if !meta.Valid() {
		return nlerr.New(nlerr.CodeHandleInvalid, "unknown meta type", nlerr.Field("meta_type", string(meta)))
	}
	if _, err := r.rel.NodeTypes().Get(ctx, typ); err != nil {
		if nlerr.IsNotFound(err) {
			return nlerr.New(nlerr.CodeHandleInvalid, "node type not registered", nlerr.Field("type", typ))
		}
		return err
	}
	return nil
}

func (r *Registry) audit(ctx context.Context, action, actor string, handleID int64, details map[string]any, opErr error) {
	entry := &store.AuditEntry{
		Timestamp: r.now(),
		Action:    action,
		Actor:     actor,
		HandleID:  handleID,
		Details:   details,
		Result:    "ok",
	}
	if opErr != nil {
		entry.Result = string(nlerr.CodeOf(opErr))
	}
	if err := r.rel.AuditLog().Append(ctx, entry); err != nil {
		r.logger.WarnContext(ctx, "appending audit entry failed",
			"action", action,
			"handle_id", handleID,
			"error", err,
		)
	}
}

func nodeProperties(h *store.Handle, extra graph.Properties) graph.Properties {
	props := extra.Clone()
	props[graph.KeyHandleID] = h.ID
	props[graph.KeyName] = h.Name
	props[graph.KeyNodeType] = h.Type
	props[graph.KeyNodeMetaType] = string(h.MetaType)
	return props
}

func uniqueKey(name, typ string) string {
	return strconv.Quote(typ) + "/" + strconv.Quote(name)
}

// detachAll is the fallback DetachFunc: it deletes incident edges directly.
func detachAll(ctx context.Context, tx graph.Tx, node graph.NodeID) error {
	edges, err := graph.Incident(ctx, tx, node)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := tx.DeleteEdge(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}
