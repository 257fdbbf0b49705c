// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package relation creates and removes typed edges between nodes under a
// table of type-compatibility and cardinality rules.
package relation

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/noclook/noclook/internal/automanage"
	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/saga"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Manager enforces the rule table on edge mutations.
type Manager struct {
	graph    graph.Store
	handles  *handle.Registry
	rules    *Rules
	logger   *slog.Logger
	now      func() time.Time
	portType string

	ports singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now for auto-manage stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPortType sets the node type FindOrCreatePort creates. Defaults to "Port".
func WithPortType(typ string) Option {
	return func(m *Manager) { m.portType = typ }
}

// New creates a Manager.
func New(g graph.Store, handles *handle.Registry, rules *Rules, opts ...Option) *Manager {
	m := &Manager{
		graph:    g,
		handles:  handles,
		rules:    rules,
		logger:   slog.Default(),
		now:      time.Now,
		portType: "Port",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConnectRequest describes an edge to create.
type ConnectRequest struct {
	From       graph.NodeID
	To         graph.NodeID
	Type       string
	Properties graph.Properties
	// AutoManage stamps the edge as maintained by an automated feed.
	AutoManage bool
	User       string
}

// Connect creates an edge after checking the rule table. An existing edge
// of the same type between the same nodes is returned instead of a
// duplicate, with its properties merged and its auto-manage stamp renewed.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) (*graph.Edge, error) {
	rule, err := m.rules.Rule(req.Type)
	if err != nil {
		return nil, err
	}

	var (
		edge     *graph.Edge
		created  bool
		previous graph.Properties
		from, to *graph.Node
	)
	steps := []saga.Step{{
		Name: "create edge",
		Do: func(ctx context.Context) error {
			return graph.Update(ctx, m.graph, func(tx graph.Tx) error {
				var err error
				from, to, err = m.endpoints(ctx, tx, req.From, req.To)
				if err != nil {
					return err
				}
				if !rule.Allows(from.Properties, to.Properties) {
					return nlerr.New(nlerr.CodeRelationIncompatible, "relationship not allowed between these node types",
						nlerr.FieldRelType(req.Type),
						nlerr.Field("from_type", from.Properties.String(graph.KeyNodeType)),
						nlerr.Field("to_type", to.Properties.String(graph.KeyNodeType)))
				}

				existing, err := m.checkCardinality(ctx, tx, rule, from, to)
				if err != nil {
					return err
				}

				props := req.Properties.Clone()
				if req.AutoManage {
					automanage.Seen(m.now()).Apply(props)
				}
				if existing != nil {
					previous = existing.Properties
					if len(props) > 0 {
						if err := tx.SetEdgeProperties(ctx, existing.ID, props, false); err != nil {
							return err
						}
					}
					edge = &graph.Edge{ID: existing.ID, Type: existing.Type, From: existing.From, To: existing.To,
						Properties: existing.Properties.Merge(props)}
					return nil
				}

				id, err := tx.CreateEdge(ctx, from.ID, to.ID, req.Type, props)
				if err != nil {
					return err
				}
				created = true
				edge = &graph.Edge{ID: id, Type: req.Type, From: from.ID, To: to.ID, Properties: props}
				return nil
			})
		},
		Undo: func(ctx context.Context) error {
			return graph.Update(ctx, m.graph, func(tx graph.Tx) error {
				if created {
					return tx.DeleteEdge(ctx, edge.ID)
				}
				return tx.SetEdgeProperties(ctx, edge.ID, previous, true)
			})
		},
	}}
	steps = append(steps, m.touchSteps(&from, &to, req.User)...)

	if err := saga.Run(ctx, steps...); err != nil {
		return nil, err
	}

	m.logger.DebugContext(ctx, "relationship connected",
		"edge_id", edge.ID, "type", req.Type, "from", req.From, "to", req.To, "created", created)
	return edge, nil
}

// UpdateEdge merges props into an edge's properties.
func (m *Manager) UpdateEdge(ctx context.Context, id graph.EdgeID, props graph.Properties, user string) (*graph.Edge, error) {
	var (
		before   graph.Properties
		edge     *graph.Edge
		from, to *graph.Node
	)
	steps := []saga.Step{{
		Name: "update edge",
		Do: func(ctx context.Context) error {
			return graph.Update(ctx, m.graph, func(tx graph.Tx) error {
				e, err := tx.GetEdge(ctx, id)
				if err != nil {
					return err
				}
				if from, to, err = m.endpoints(ctx, tx, e.From, e.To); err != nil {
					return err
				}
				if err := tx.SetEdgeProperties(ctx, id, props, false); err != nil {
					return err
				}
				before = e.Properties
				edge = &graph.Edge{ID: e.ID, Type: e.Type, From: e.From, To: e.To, Properties: e.Properties.Merge(props)}
				return nil
			})
		},
		Undo: func(ctx context.Context) error {
			return graph.Update(ctx, m.graph, func(tx graph.Tx) error {
				return tx.SetEdgeProperties(ctx, id, before, true)
			})
		},
	}}
	steps = append(steps, m.touchSteps(&from, &to, user)...)

	if err := saga.Run(ctx, steps...); err != nil {
		return nil, err
	}
	return edge, nil
}

// Disconnect deletes an edge. Endpoints left without any structural link
// are kept; removing orphans is an explicit reap operation.
func (m *Manager) Disconnect(ctx context.Context, id graph.EdgeID, user string) error {
	var (
		removed  *graph.Edge
		from, to *graph.Node
	)
	steps := []saga.Step{{
		Name: "delete edge",
		Do: func(ctx context.Context) error {
			return graph.Update(ctx, m.graph, func(tx graph.Tx) error {
				e, err := tx.GetEdge(ctx, id)
				if err != nil {
					return err
				}
				if from, to, err = m.endpoints(ctx, tx, e.From, e.To); err != nil {
					return err
				}
				removed = e
				return tx.DeleteEdge(ctx, id)
			})
		},
		Undo: func(ctx context.Context) error {
			// The edge comes back under a new id.
			return graph.Update(ctx, m.graph, func(tx graph.Tx) error {
				_, err := tx.CreateEdge(ctx, removed.From, removed.To, removed.Type, removed.Properties)
				return err
			})
		},
	}}
	steps = append(steps, m.touchSteps(&from, &to, user)...)

	if err := saga.Run(ctx, steps...); err != nil {
		return err
	}
	m.logger.DebugContext(ctx, "relationship disconnected", "edge_id", id, "type", removed.Type)
	return nil
}

// Relationship is an edge together with the node at its other end.
type Relationship struct {
	Edge *graph.Edge
	Peer *graph.Node
}

// Outgoing lists edges leaving node, optionally restricted to relType.
func (m *Manager) Outgoing(ctx context.Context, node graph.NodeID, relType string) ([]Relationship, error) {
	return m.list(ctx, node, relType, graph.Outgoing)
}

// Incoming lists edges arriving at node, optionally restricted to relType.
func (m *Manager) Incoming(ctx context.Context, node graph.NodeID, relType string) ([]Relationship, error) {
	return m.list(ctx, node, relType, graph.Incoming)
}

func (m *Manager) list(ctx context.Context, node graph.NodeID, relType string, dir graph.Direction) ([]Relationship, error) {
	var out []Relationship
	err := graph.View(ctx, m.graph, func(tx graph.Tx) error {
		if _, err := tx.GetNode(ctx, node); err != nil {
			return err
		}
		rows, err := tx.Match(ctx, graph.Pattern{
			Start: graph.NodeMatch{ID: node},
			Rel:   &graph.RelMatch{Type: relType, Direction: dir},
		})
		if err != nil {
			return err
		}
		out = make([]Relationship, 0, len(rows))
		for _, r := range rows {
			out = append(out, Relationship{Edge: r.Edge, Peer: r.End})
		}
		return nil
	})
	return out, err
}

// DetachIncident deletes every edge touching node inside tx. Only direct
// edges are removed; nodes reachable through them are left alone.
func DetachIncident(ctx context.Context, tx graph.Tx, node graph.NodeID) error {
	edges, err := graph.Incident(ctx, tx, node)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := tx.DeleteEdge(ctx, e.ID); err != nil {
			return nlerr.With(err, nlerr.FieldEdgeID(string(e.ID)), nlerr.FieldNodeID(string(node)))
		}
	}
	return nil
}

// UniqueChildNames returns a rename guard that keeps every unique-child-name
// rule of rules intact: a node cannot take the name of a sibling it shares
// a parent with through such a relationship. Parents are locked while
// their children are checked.
func UniqueChildNames(rules *Rules) handle.RenameGuard {
	var relTypes []string
	for _, typ := range rules.Types() {
		if r, err := rules.Rule(typ); err == nil && r.Cardinality == UniqueChildName {
			relTypes = append(relTypes, typ)
		}
	}

	return func(ctx context.Context, tx graph.Tx, node *graph.Node, name string) error {
		for _, relType := range relTypes {
			parents, err := tx.Match(ctx, graph.Pattern{
				Start: graph.NodeMatch{ID: node.ID},
				Rel:   &graph.RelMatch{Type: relType, Direction: graph.Incoming},
			})
			if err != nil {
				return err
			}
			for _, p := range parents {
				if err := tx.LockNode(ctx, p.End.ID); err != nil {
					return err
				}
				siblings, err := tx.Match(ctx, graph.Pattern{
					Start: graph.NodeMatch{ID: p.End.ID},
					Rel:   &graph.RelMatch{Type: relType, Direction: graph.Outgoing},
					End:   graph.NodeMatch{Properties: graph.Properties{graph.KeyName: name}},
				})
				if err != nil {
					return err
				}
				for _, sib := range siblings {
					if sib.End.ID == node.ID {
						continue
					}
					return nlerr.New(nlerr.CodeRelationCardinality, "a sibling already has this name",
						nlerr.FieldRelType(relType),
						nlerr.FieldNodeID(string(node.ID)),
						nlerr.Field("parent_id", string(p.End.ID)),
						nlerr.Field("name", name))
				}
			}
		}
		return nil
	}
}

func (m *Manager) endpoints(ctx context.Context, tx graph.Tx, fromID, toID graph.NodeID) (*graph.Node, *graph.Node, error) {
	from, err := tx.GetNode(ctx, fromID)
	if err != nil {
		return nil, nil, err
	}
	to, err := tx.GetNode(ctx, toID)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// checkCardinality returns the edge of the rule's type already linking
// from and to, if any, or a violation when another edge blocks a new one.
// The source stays locked until tx ends so concurrent writers see each
// other's edges.
func (m *Manager) checkCardinality(ctx context.Context, tx graph.Tx, rule Rule, from, to *graph.Node) (*graph.Edge, error) {
	if err := tx.LockNode(ctx, from.ID); err != nil {
		return nil, err
	}
	rows, err := tx.Match(ctx, graph.Pattern{
		Start: graph.NodeMatch{ID: from.ID},
		Rel:   &graph.RelMatch{Type: rule.Type, Direction: graph.Outgoing},
	})
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		if r.End.ID == to.ID {
			return r.Edge, nil
		}
	}

	for _, r := range rows {
		if conflicts(rule.Cardinality, r.End, to) {
			return nil, nlerr.New(nlerr.CodeRelationCardinality, "relationship cardinality exceeded",
				nlerr.FieldRelType(rule.Type),
				nlerr.FieldNodeID(string(from.ID)),
				nlerr.FieldEdgeID(string(r.Edge.ID)),
				nlerr.Field("cardinality", string(rule.Cardinality)))
		}
	}
	return nil, nil
}

func conflicts(c Cardinality, existing, candidate *graph.Node) bool {
	switch c {
	case Single:
		return true
	case OnePerTargetType:
		return existing.Properties.String(graph.KeyNodeType) == candidate.Properties.String(graph.KeyNodeType)
	case UniqueChildName:
		return existing.Properties.String(graph.KeyName) == candidate.Properties.String(graph.KeyName)
	default:
		return false
	}
}

// touchSteps stamps the handles of both endpoints. The nodes are read
// through pointers because they are only known once the first step ran.
func (m *Manager) touchSteps(from, to **graph.Node, user string) []saga.Step {
	touch := func(node **graph.Node) func(context.Context) error {
		return func(ctx context.Context) error {
			id, ok := (*node).Properties.Int64(graph.KeyHandleID)
			if !ok {
				m.logger.WarnContext(ctx, "node without handle id", "node_id", (*node).ID)
				return nil
			}
			return m.handles.Touch(ctx, id, user)
		}
	}
	return []saga.Step{
		{Name: "touch source handle", Do: touch(from)},
		{Name: "touch target handle", Do: touch(to)},
	}
}
