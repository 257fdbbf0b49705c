// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package inventory

import (
	"context"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/relation"
	"github.com/noclook/noclook/internal/saga"
	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Service runs inventory operations on behalf of a user, checking the
// authorization engine before every read or mutation. Reads the user may
// not perform look exactly like reads of missing handles.
type Service struct {
	inv *Inventory
}

// CreateHandle creates a handle and assigns it to contextName. The user
// needs write on the context.
func (s *Service) CreateHandle(ctx context.Context, user, contextName string, req handle.CreateRequest) (*store.Handle, error) {
	ok, err := s.inv.Authz.Authorize(ctx, user, store.ActionWrite, contextName, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nlerr.New(nlerr.CodeAuthzDenied, "write not permitted on context",
			nlerr.FieldUserID(user), nlerr.FieldContext(contextName))
	}

	req.Creator = user
	var h *store.Handle
	err = saga.Run(ctx,
		saga.Step{
			Name: "create handle",
			Do: func(ctx context.Context) error {
				var err error
				h, err = s.inv.Handles.Create(ctx, req)
				return err
			},
			Undo: func(ctx context.Context) error {
				return s.inv.Handles.Delete(ctx, h.ID, user)
			},
		},
		saga.Step{
			Name: "assign context",
			Do: func(ctx context.Context) error {
				return s.inv.Authz.AssignContext(ctx, h.ID, contextName)
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// GetHandle returns a handle the user may read.
func (s *Service) GetHandle(ctx context.Context, user string, id int64) (*store.Handle, error) {
	if err := s.inv.Authz.RequireRead(ctx, user, id); err != nil {
		return nil, err
	}
	return s.inv.Handles.Get(ctx, id)
}

// GetNode returns the node of a handle the user may read.
func (s *Service) GetNode(ctx context.Context, user string, id int64) (*graph.Node, error) {
	if err := s.inv.Authz.RequireRead(ctx, user, id); err != nil {
		return nil, err
	}
	return s.inv.Handles.NodeFor(ctx, id)
}

// ContextsOf returns the names of the contexts a readable handle
// belongs to.
func (s *Service) ContextsOf(ctx context.Context, user string, id int64) ([]string, error) {
	if err := s.inv.Authz.RequireRead(ctx, user, id); err != nil {
		return nil, err
	}
	contexts, err := s.inv.Authz.ContextsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(contexts))
	for _, c := range contexts {
		names = append(names, c.Name)
	}
	return names, nil
}

// ListHandles returns the handles matching q that the user may read.
func (s *Service) ListHandles(ctx context.Context, user string, q store.HandleQuery) ([]*store.Handle, error) {
	readable, err := s.inv.Authz.ReadableHandleIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	if q.IDs != nil {
		readable = intersect(q.IDs, readable)
	}
	q.IDs = append([]int64{}, readable...)
	return s.inv.Handles.List(ctx, q)
}

// UpdateProperties merges props into a handle's node.
func (s *Service) UpdateProperties(ctx context.Context, user string, id int64, props graph.Properties) (*graph.Node, error) {
	if err := s.inv.Authz.RequireWrite(ctx, user, id); err != nil {
		return nil, err
	}
	return s.inv.Handles.UpdateProperties(ctx, id, props, user)
}

// DeleteHandle deletes a handle, its node and the node's incident edges.
func (s *Service) DeleteHandle(ctx context.Context, user string, id int64) error {
	if err := s.inv.Authz.RequireWrite(ctx, user, id); err != nil {
		return err
	}
	return s.inv.Handles.Delete(ctx, id, user)
}

// AssignContext adds a handle the user may write to contextName. The user
// also needs write on the target context.
func (s *Service) AssignContext(ctx context.Context, user string, id int64, contextName string) error {
	if err := s.inv.Authz.RequireWrite(ctx, user, id); err != nil {
		return err
	}
	ok, err := s.inv.Authz.Authorize(ctx, user, store.ActionWrite, contextName, nil)
	if err != nil {
		return err
	}
	if !ok {
		return nlerr.New(nlerr.CodeAuthzDenied, "write not permitted on context",
			nlerr.FieldUserID(user), nlerr.FieldContext(contextName))
	}
	return s.inv.Authz.AssignContext(ctx, id, contextName)
}

// Connect creates an edge. The user needs write on both endpoints.
func (s *Service) Connect(ctx context.Context, user string, req relation.ConnectRequest) (*graph.Edge, error) {
	if err := s.requireWriteNodes(ctx, user, req.From, req.To); err != nil {
		return nil, err
	}
	req.User = user
	return s.inv.Relations.Connect(ctx, req)
}

// Disconnect deletes an edge. The user needs write on both endpoints.
func (s *Service) Disconnect(ctx context.Context, user string, id graph.EdgeID) error {
	var edge *graph.Edge
	err := graph.View(ctx, s.inv.Graph, func(tx graph.Tx) error {
		var err error
		edge, err = tx.GetEdge(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if err := s.requireWriteNodes(ctx, user, edge.From, edge.To); err != nil {
		return err
	}
	return s.inv.Relations.Disconnect(ctx, id, user)
}

// FindOrCreatePort returns the named port of the parent handle, creating
// it when missing. A new port joins every context of its parent.
func (s *Service) FindOrCreatePort(ctx context.Context, user string, parentID int64, portName string) (*graph.Node, error) {
	if err := s.inv.Authz.RequireWrite(ctx, user, parentID); err != nil {
		return nil, err
	}
	parent, err := s.inv.Handles.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	port, err := s.inv.Relations.FindOrCreatePort(ctx, graph.NodeID(parent.NodeID), portName, user)
	if err != nil {
		return nil, err
	}

	portID, ok := port.Properties.Int64(graph.KeyHandleID)
	if !ok {
		return nil, nlerr.New(nlerr.CodeHandleConsistencyFault, "port node carries no handle id",
			nlerr.FieldNodeID(string(port.ID)))
	}
	contexts, err := s.inv.Authz.ContextsOf(ctx, parentID)
	if err != nil {
		return nil, err
	}
	for _, c := range contexts {
		if err := s.inv.Authz.AssignContext(ctx, portID, c.Name); err != nil {
			return nil, err
		}
	}
	return port, nil
}

// Authorize is the boolean gate for consuming layers.
func (s *Service) Authorize(ctx context.Context, user string, action store.AuthzAction, contextName string, handleID *int64) (bool, error) {
	return s.inv.Authz.Authorize(ctx, user, action, contextName, handleID)
}

// AddUser registers a user and adds it to groups, creating missing
// groups. Registering an existing user only updates memberships.
func (s *Service) AddUser(ctx context.Context, id, name string, groups ...string) error {
	err := s.inv.Rel.Users().Create(ctx, &store.User{ID: id, Name: name})
	if err != nil && !nlerr.IsConflict(err) {
		return err
	}
	for _, g := range groups {
		if _, err := s.inv.Rel.Groups().Create(ctx, g); err != nil {
			return err
		}
		if err := s.inv.Rel.Groups().AddMember(ctx, g, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) requireWriteNodes(ctx context.Context, user string, nodes ...graph.NodeID) error {
	for _, n := range nodes {
		h, err := s.inv.Handles.GetByNodeID(ctx, n)
		if err != nil {
			return err
		}
		if err := s.inv.Authz.RequireWrite(ctx, user, h.ID); err != nil {
			return err
		}
	}
	return nil
}

func intersect(a, b []int64) []int64 {
	in := make(map[int64]bool, len(b))
	for _, id := range b {
		in[id] = true
	}
	out := make([]int64, 0, len(a))
	for _, id := range a {
		if in[id] {
			out = append(out, id)
		}
	}
	return out
}
