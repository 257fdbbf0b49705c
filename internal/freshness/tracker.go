// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package freshness marks graph objects as observed by automated feeds and
// reaps the ones whose observations have gone stale.
//
// A reap lists its candidates once, then deletes each in its own
// transaction. A failed deletion is logged and counted and the scan moves
// on. Cancelling the context stops the scan between objects, leaving
// everything processed so far committed.
package freshness

import (
	"context"
	"log/slog"
	"time"

	"github.com/noclook/noclook/internal/automanage"
	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/metrics"
	"github.com/noclook/noclook/internal/relation"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// DefaultActor is recorded as modifier for changes made by a reap.
const DefaultActor = "noclook-reaper"

// Tracker marks and reaps auto-managed nodes and edges.
type Tracker struct {
	graph     graph.Store
	handles   *handle.Registry
	relations *relation.Manager
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	actor     string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMetrics records reap runs on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithClock overrides time.Now for marking and expiry.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithActor sets the modifier recorded by reaps.
func WithActor(actor string) Option {
	return func(t *Tracker) { t.actor = actor }
}

// New creates a Tracker.
func New(g graph.Store, handles *handle.Registry, relations *relation.Manager, opts ...Option) *Tracker {
	t := &Tracker{
		graph:     g,
		handles:   handles,
		relations: relations,
		logger:    slog.Default(),
		now:       time.Now,
		actor:     DefaultActor,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MarkNodeSeen stamps the node behind handleID as auto-managed and seen
// now. Calling it on every feed cycle is safe.
func (t *Tracker) MarkNodeSeen(ctx context.Context, handleID int64, user string) error {
	_, err := t.handles.UpdateProperties(ctx, handleID, automanage.Seen(t.now()).Properties(), user)
	return err
}

// MarkEdgeSeen stamps an edge as auto-managed and seen now.
func (t *Tracker) MarkEdgeSeen(ctx context.Context, id graph.EdgeID, user string) error {
	_, err := t.relations.UpdateEdge(ctx, id, automanage.Seen(t.now()).Properties(), user)
	return err
}

// ReapResult summarises one reap run.
type ReapResult struct {
	Scanned int
	Deleted int
	Failed  int
	// Errors holds one entry per failed object.
	Errors []error
}

func (r *ReapResult) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// NodeReapOptions selects the nodes a reap deletes.
type NodeReapOptions struct {
	// MaxAge is how long an auto-managed node may go unseen. Required
	// unless Force is set.
	MaxAge time.Duration
	// Type restricts the scan to one node type.
	Type string
	// Force deletes every node of Type regardless of freshness.
	Force bool
}

func (o NodeReapOptions) validate() error {
	if o.Force {
		if o.Type == "" {
			return nlerr.New(nlerr.CodeFreshnessInvalidInput, "forced reap requires a node type")
		}
		return nil
	}
	if o.MaxAge <= 0 {
		return nlerr.New(nlerr.CodeFreshnessInvalidInput, "max age must be positive",
			nlerr.Field("max_age", o.MaxAge.String()))
	}
	return nil
}

// ReapNodes deletes expired nodes, together with their handles and
// incident edges.
func (t *Tracker) ReapNodes(ctx context.Context, opts NodeReapOptions) (ReapResult, error) {
	var res ReapResult
	if err := opts.validate(); err != nil {
		return res, err
	}

	rows, err := t.match(ctx, graph.Pattern{Start: graph.NodeMatch{Type: opts.Type}})
	if err != nil {
		return res, err
	}

	now := t.now()
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			t.record("nodes", res)
			return res, err
		}
		res.Scanned++
		if !opts.Force && !t.expired(ctx, row.Start.Properties, opts.MaxAge, now) {
			continue
		}
		if err := t.deleteNode(ctx, row.Start); err != nil {
			t.logger.WarnContext(ctx, "reaping node failed",
				"node_id", row.Start.ID,
				"type", row.Start.Properties.String(graph.KeyNodeType),
				"error", err,
			)
			res.fail(err)
			continue
		}
		res.Deleted++
	}

	t.record("nodes", res)
	t.logger.InfoContext(ctx, "node reap finished",
		"type", opts.Type, "force", opts.Force,
		"scanned", res.Scanned, "deleted", res.Deleted, "failed", res.Failed)
	return res, nil
}

// EdgeReapOptions selects the edges a reap deletes.
type EdgeReapOptions struct {
	MaxAge time.Duration
	// RelType restricts the scan to one relationship type.
	RelType string
}

// ReapEdges deletes expired edges. Endpoints are never deleted.
func (t *Tracker) ReapEdges(ctx context.Context, opts EdgeReapOptions) (ReapResult, error) {
	var res ReapResult
	if opts.MaxAge <= 0 {
		return res, nlerr.New(nlerr.CodeFreshnessInvalidInput, "max age must be positive",
			nlerr.Field("max_age", opts.MaxAge.String()))
	}

	rows, err := t.match(ctx, graph.Pattern{Rel: &graph.RelMatch{Type: opts.RelType, Direction: graph.Outgoing}})
	if err != nil {
		return res, err
	}

	now := t.now()
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			t.record("edges", res)
			return res, err
		}
		res.Scanned++
		if !t.expired(ctx, row.Edge.Properties, opts.MaxAge, now) {
			continue
		}
		if err := t.relations.Disconnect(ctx, row.Edge.ID, t.actor); err != nil {
			t.logger.WarnContext(ctx, "reaping edge failed",
				"edge_id", row.Edge.ID,
				"rel_type", row.Edge.Type,
				"error", err,
			)
			res.fail(err)
			continue
		}
		res.Deleted++
	}

	t.record("edges", res)
	t.logger.InfoContext(ctx, "edge reap finished",
		"rel_type", opts.RelType,
		"scanned", res.Scanned, "deleted", res.Deleted, "failed", res.Failed)
	return res, nil
}

// OrphanOptions selects orphans: nodes of Type with no incoming RelType
// edge, such as ports no longer held by any device.
type OrphanOptions struct {
	Type    string
	RelType string
}

// ReapOrphans deletes nodes that lost their structural parent.
func (t *Tracker) ReapOrphans(ctx context.Context, opts OrphanOptions) (ReapResult, error) {
	var res ReapResult
	if opts.Type == "" || opts.RelType == "" {
		return res, nlerr.New(nlerr.CodeFreshnessInvalidInput, "orphan reap requires a node type and a relationship type")
	}

	rows, err := t.match(ctx, graph.Pattern{Start: graph.NodeMatch{Type: opts.Type}})
	if err != nil {
		return res, err
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			t.record("orphans", res)
			return res, err
		}
		res.Scanned++
		orphan, err := t.isOrphan(ctx, row.Start.ID, opts.RelType)
		if err == nil && !orphan {
			continue
		}
		if err == nil {
			err = t.deleteNode(ctx, row.Start)
		}
		if err != nil {
			t.logger.WarnContext(ctx, "reaping orphan failed",
				"node_id", row.Start.ID,
				"type", opts.Type,
				"error", err,
			)
			res.fail(err)
			continue
		}
		res.Deleted++
	}

	t.record("orphans", res)
	t.logger.InfoContext(ctx, "orphan reap finished",
		"type", opts.Type, "rel_type", opts.RelType,
		"scanned", res.Scanned, "deleted", res.Deleted, "failed", res.Failed)
	return res, nil
}

func (t *Tracker) match(ctx context.Context, p graph.Pattern) ([]graph.Row, error) {
	var rows []graph.Row
	err := graph.View(ctx, t.graph, func(tx graph.Tx) error {
		var err error
		rows, err = tx.Match(ctx, p)
		return err
	})
	return rows, err
}

func (t *Tracker) isOrphan(ctx context.Context, node graph.NodeID, relType string) (bool, error) {
	rows, err := t.match(ctx, graph.Pattern{
		Start: graph.NodeMatch{ID: node},
		Rel:   &graph.RelMatch{Type: relType, Direction: graph.Incoming},
		Limit: 1,
	})
	if err != nil {
		return false, err
	}
	return len(rows) == 0, nil
}

// expired treats unreadable metadata as fresh.
func (t *Tracker) expired(ctx context.Context, props graph.Properties, maxAge time.Duration, now time.Time) bool {
	meta, err := automanage.FromProperties(props)
	if err != nil {
		t.logger.DebugContext(ctx, "ignoring unreadable freshness metadata", "error", err)
		return false
	}
	return automanage.IsExpired(meta, maxAge, now)
}

func (t *Tracker) deleteNode(ctx context.Context, n *graph.Node) error {
	id, ok := n.Properties.Int64(graph.KeyHandleID)
	if !ok {
		return nlerr.New(nlerr.CodeHandleConsistencyFault, "node carries no handle id",
			nlerr.FieldNodeID(string(n.ID)))
	}
	return t.handles.Delete(ctx, id, t.actor)
}

func (t *Tracker) record(kind string, res ReapResult) {
	t.metrics.Reap(kind, res.Scanned, res.Deleted, res.Failed)
}
