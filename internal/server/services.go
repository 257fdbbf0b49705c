// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package server

import (
	"context"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/inventory"
	"github.com/noclook/noclook/internal/relation"
	"github.com/noclook/noclook/internal/store"
)

// Inventory is the user-scoped inventory surface the routes call.
// *inventory.Service implements it.
type Inventory interface {
	CreateHandle(ctx context.Context, user, contextName string, req handle.CreateRequest) (*store.Handle, error)
	GetHandle(ctx context.Context, user string, id int64) (*store.Handle, error)
	GetNode(ctx context.Context, user string, id int64) (*graph.Node, error)
	ContextsOf(ctx context.Context, user string, id int64) ([]string, error)
	ListHandles(ctx context.Context, user string, q store.HandleQuery) ([]*store.Handle, error)
	UpdateProperties(ctx context.Context, user string, id int64, props graph.Properties) (*graph.Node, error)
	DeleteHandle(ctx context.Context, user string, id int64) error
	AssignContext(ctx context.Context, user string, id int64, contextName string) error
	Connect(ctx context.Context, user string, req relation.ConnectRequest) (*graph.Edge, error)
	Disconnect(ctx context.Context, user string, id graph.EdgeID) error
	FindOrCreatePort(ctx context.Context, user string, parentID int64, portName string) (*graph.Node, error)
	Authorize(ctx context.Context, user string, action store.AuthzAction, contextName string, handleID *int64) (bool, error)
}

var _ Inventory = (*inventory.Service)(nil)
