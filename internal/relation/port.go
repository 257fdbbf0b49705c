// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package relation

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// FindOrCreatePort returns the Has-child of parent named portName,
// creating the port handle and edge when absent. Concurrent callers for
// the same parent and name share one attempt in-process; across processes
// the Has cardinality check inside the edge transaction, taken under a
// lock on the parent, picks the winner and the loser's port is removed
// again. The shared attempt ignores caller cancellation; each caller
// stops waiting when its own ctx ends.
func (m *Manager) FindOrCreatePort(ctx context.Context, parent graph.NodeID, portName, user string) (*graph.Node, error) {
	if portName == "" {
		return nil, nlerr.New(nlerr.CodeHandleInvalid, "port name must not be empty", nlerr.FieldNodeID(string(parent)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := string(parent) + "/" + strconv.Quote(portName)
	ch := m.ports.DoChan(key, func() (any, error) {
		return m.findOrCreatePort(context.WithoutCancel(ctx), parent, portName, user)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	node := *res.Val.(*graph.Node)
	node.Properties = node.Properties.Clone()
	return &node, nil
}

func (m *Manager) findOrCreatePort(ctx context.Context, parent graph.NodeID, portName, user string) (*graph.Node, error) {
	existing, err := m.findPort(ctx, parent, portName)
	if err != nil || existing != nil {
		return existing, err
	}

	h, err := m.handles.Create(ctx, handle.CreateRequest{
		Name:     portName,
		Type:     m.portType,
		MetaType: store.MetaPhysical,
		Creator:  user,
	})
	if err != nil {
		return nil, err
	}

	_, err = m.Connect(ctx, ConnectRequest{From: parent, To: graph.NodeID(h.NodeID), Type: Has, User: user})
	if err == nil {
		return m.handles.NodeFor(ctx, h.ID)
	}

	if delErr := m.handles.Delete(ctx, h.ID, user); delErr != nil {
		m.logger.ErrorContext(ctx, "removing unattached port failed",
			"handle_id", h.ID, "parent", parent, "error", delErr)
		return nil, nlerr.Join(err, delErr)
	}
	if !nlerr.IsCardinalityViolation(err) {
		return nil, err
	}

	// Another writer attached a port with this name first.
	winner, findErr := m.findPort(ctx, parent, portName)
	if findErr != nil {
		return nil, findErr
	}
	if winner == nil {
		return nil, err
	}
	return winner, nil
}

func (m *Manager) findPort(ctx context.Context, parent graph.NodeID, portName string) (*graph.Node, error) {
	var found *graph.Node
	err := graph.View(ctx, m.graph, func(tx graph.Tx) error {
		if _, err := tx.GetNode(ctx, parent); err != nil {
			return err
		}
		rows, err := tx.Match(ctx, graph.Pattern{
			Start: graph.NodeMatch{ID: parent},
			Rel:   &graph.RelMatch{Type: Has, Direction: graph.Outgoing},
			End:   graph.NodeMatch{Properties: graph.Properties{graph.KeyName: portName}},
			Limit: 1,
		})
		if err != nil || len(rows) == 0 {
			return err
		}
		found = rows[0].End
		return nil
	})
	return found, err
}
