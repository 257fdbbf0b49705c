// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/inventory"
	"github.com/noclook/noclook/internal/relation"
	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// newService grants the noc group read and write on Network and read on
// Community; alice is in noc, mallory in no group.
func newService(t *testing.T) (*inventory.Inventory, *inventory.Service) {
	t.Helper()
	ctx := context.Background()
	inv := open(t, testConfig(t))
	svc := inv.Service()

	require.NoError(t, svc.AddUser(ctx, "alice", "Alice", "noc"))
	require.NoError(t, svc.AddUser(ctx, "mallory", "Mallory"))
	require.NoError(t, inv.Authz.Grant(ctx, "noc", "Network", store.ActionRead))
	require.NoError(t, inv.Authz.Grant(ctx, "noc", "Network", store.ActionWrite))
	require.NoError(t, inv.Authz.Grant(ctx, "noc", "Community", store.ActionRead))
	return inv, svc
}

func router(name string) handle.CreateRequest {
	return handle.CreateRequest{Name: name, Type: "Router", MetaType: store.MetaPhysical}
}

func TestService_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	inv, svc := newService(t)

	h, err := svc.CreateHandle(ctx, "alice", "Network", router("r1"))
	require.NoError(t, err)
	assert.Equal(t, "alice", h.Creator)

	contexts, err := inv.Authz.ContextsOf(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "Network", contexts[0].Name)

	node, err := svc.GetNode(ctx, "alice", h.ID)
	require.NoError(t, err)
	assert.Equal(t, "r1", node.Properties.String(graph.KeyName))

	_, err = svc.GetNode(ctx, "mallory", h.ID)
	assert.True(t, nlerr.IsNotFound(err))
	_, err = svc.GetHandle(ctx, "mallory", h.ID)
	assert.True(t, nlerr.IsNotFound(err))
}

func TestService_CreateDenied(t *testing.T) {
	ctx := context.Background()
	inv, svc := newService(t)

	_, err := svc.CreateHandle(ctx, "alice", "Community", router("r1"))
	assert.True(t, nlerr.IsUnauthorized(err))

	_, err = svc.CreateHandle(ctx, "alice", "Nowhere", router("r1"))
	assert.True(t, nlerr.IsUnknownContext(err))

	all, err := inv.Handles.List(ctx, store.HandleQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestService_ListHandlesFilters(t *testing.T) {
	ctx := context.Background()
	inv, svc := newService(t)

	r1, err := svc.CreateHandle(ctx, "alice", "Network", router("r1"))
	require.NoError(t, err)
	// Created outside any context: nobody can read it.
	_, err = inv.Handles.Create(ctx, router("hidden"))
	require.NoError(t, err)

	got, err := svc.ListHandles(ctx, "alice", store.HandleQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r1.ID, got[0].ID)

	got, err = svc.ListHandles(ctx, "mallory", store.HandleQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.ListHandles(ctx, "alice", store.HandleQuery{IDs: []int64{r1.ID + 100}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_WriteRequiresGrant(t *testing.T) {
	ctx := context.Background()
	inv, svc := newService(t)
	h, err := svc.CreateHandle(ctx, "alice", "Network", router("r1"))
	require.NoError(t, err)
	require.NoError(t, inv.Authz.AssignContext(ctx, h.ID, "Community"))

	_, err = svc.UpdateProperties(ctx, "alice", h.ID, graph.Properties{"model": "MX480"})
	require.NoError(t, err)

	err = svc.DeleteHandle(ctx, "mallory", h.ID)
	assert.True(t, nlerr.IsUnauthorized(err))

	require.NoError(t, inv.Authz.Revoke(ctx, "noc", "Network", store.ActionWrite))
	_, err = svc.UpdateProperties(ctx, "alice", h.ID, graph.Properties{"model": "MX960"})
	assert.True(t, nlerr.IsUnauthorized(err), "revocation applies to the next call")

	node, err := svc.GetNode(ctx, "alice", h.ID)
	require.NoError(t, err, "read through Community still works")
	assert.Equal(t, "MX480", node.Properties.String("model"))
}

func TestService_ConnectAndDisconnect(t *testing.T) {
	ctx := context.Background()
	inv, svc := newService(t)
	a, err := svc.CreateHandle(ctx, "alice", "Network", router("r1"))
	require.NoError(t, err)
	b, err := svc.CreateHandle(ctx, "alice", "Network", router("r2"))
	require.NoError(t, err)
	c, err := inv.Handles.Create(ctx, router("foreign"))
	require.NoError(t, err)

	edge, err := svc.Connect(ctx, "alice", relation.ConnectRequest{
		From: graph.NodeID(a.NodeID), To: graph.NodeID(b.NodeID), Type: relation.ConnectedTo,
	})
	require.NoError(t, err)

	_, err = svc.Connect(ctx, "alice", relation.ConnectRequest{
		From: graph.NodeID(a.NodeID), To: graph.NodeID(c.NodeID), Type: relation.ConnectedTo,
	})
	assert.True(t, nlerr.IsUnauthorized(err))

	assert.True(t, nlerr.IsUnauthorized(svc.Disconnect(ctx, "mallory", edge.ID)))
	require.NoError(t, svc.Disconnect(ctx, "alice", edge.ID))

	out, err := inv.Relations.Outgoing(ctx, graph.NodeID(a.NodeID), "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestService_FindOrCreatePortInheritsContexts(t *testing.T) {
	ctx := context.Background()
	inv, svc := newService(t)
	r, err := svc.CreateHandle(ctx, "alice", "Network", router("r1"))
	require.NoError(t, err)

	port, err := svc.FindOrCreatePort(ctx, "alice", r.ID, "xe-0/0/1")
	require.NoError(t, err)
	again, err := svc.FindOrCreatePort(ctx, "alice", r.ID, "xe-0/0/1")
	require.NoError(t, err)
	assert.Equal(t, port.ID, again.ID)

	portHandle, err := inv.Handles.GetByNodeID(ctx, port.ID)
	require.NoError(t, err)
	_, err = svc.GetHandle(ctx, "alice", portHandle.ID)
	require.NoError(t, err)

	_, err = svc.FindOrCreatePort(ctx, "mallory", r.ID, "xe-0/0/2")
	assert.True(t, nlerr.IsUnauthorized(err))
}

func TestService_AssignContext(t *testing.T) {
	ctx := context.Background()
	inv, svc := newService(t)
	h, err := svc.CreateHandle(ctx, "alice", "Network", router("r1"))
	require.NoError(t, err)

	err = svc.AssignContext(ctx, "alice", h.ID, "Community")
	assert.True(t, nlerr.IsUnauthorized(err), "alice only reads Community")

	require.NoError(t, inv.Authz.Grant(ctx, "noc", "Community", store.ActionWrite))
	require.NoError(t, svc.AssignContext(ctx, "alice", h.ID, "Community"))
	require.NoError(t, svc.AssignContext(ctx, "alice", h.ID, "Community"))

	names, err := svc.ContextsOf(ctx, "alice", h.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Network", "Community"}, names)

	_, err = svc.ContextsOf(ctx, "mallory", h.ID)
	assert.True(t, nlerr.IsNotFound(err))
}

func TestService_AddUserIsRepeatable(t *testing.T) {
	ctx := context.Background()
	inv, svc := newService(t)
	require.NoError(t, svc.AddUser(ctx, "alice", "Alice", "noc", "field"))

	groups, err := inv.Rel.Groups().GroupsOf(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"noc", "field"}, groups)

	ok, err := svc.Authorize(ctx, "alice", store.ActionRead, "Network", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
