// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextStore_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	a, err := s.Contexts().Create(ctx, "Network")
	require.NoError(t, err)
	b, err := s.Contexts().Create(ctx, "Network")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	_, err = s.Contexts().Create(ctx, "Community")
	require.NoError(t, err)

	all, err := s.Contexts().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Community", all[0].Name)
}

func TestContextStore_GetUnknown(t *testing.T) {
	_, err := openStore(t).Contexts().Get(context.Background(), "Nope")
	require.Error(t, err)
	assert.True(t, nlerr.IsUnknownContext(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestContextStore_AssignTwiceHasOneRow(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	h := newHandle(t, s, "r1", "Router", false)
	c, err := s.Contexts().Create(ctx, "Network")
	require.NoError(t, err)

	added, err := s.Contexts().Assign(ctx, h.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Contexts().Assign(ctx, h.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, added)

	of, err := s.Contexts().ContextsOf(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, of, 1)
	assert.Equal(t, "Network", of[0].Name)

	removed, err := s.Contexts().Unassign(ctx, h.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Contexts().Unassign(ctx, h.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestContextStore_AssignMissingHandle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	c, err := s.Contexts().Create(ctx, "Network")
	require.NoError(t, err)

	_, err = s.Contexts().Assign(ctx, 404, c.ID)
	require.Error(t, err)
	assert.True(t, nlerr.IsNotFound(err))
}

func TestContextStore_Members(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	netw, err := s.Contexts().Create(ctx, "Network")
	require.NoError(t, err)
	comm, err := s.Contexts().Create(ctx, "Community")
	require.NoError(t, err)

	a := newHandle(t, s, "a", "Router", false)
	b := newHandle(t, s, "b", "Router", false)
	newHandle(t, s, "c", "Router", false)

	for _, pair := range [][2]int64{{a.ID, netw.ID}, {a.ID, comm.ID}, {b.ID, comm.ID}} {
		_, err := s.Contexts().Assign(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	ids, err := s.Contexts().Members(ctx, []int64{netw.ID, comm.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID}, ids)

	ids, err = s.Contexts().Members(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGroupStore_GrantsAndMembership(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Contexts().Create(ctx, "Network")
	require.NoError(t, err)
	netw, err := s.Contexts().Get(ctx, "Network")
	require.NoError(t, err)

	_, err = s.Groups().Create(ctx, "noc")
	require.NoError(t, err)
	require.NoError(t, s.Groups().AddMember(ctx, "noc", "alice"))
	require.NoError(t, s.Groups().AddMember(ctx, "noc", "alice"))

	groups, err := s.Groups().GroupsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"noc"}, groups)

	g := store.Grant{Group: "noc", Context: "Network", Action: store.ActionRead}
	require.NoError(t, s.Groups().Grant(ctx, g))
	require.NoError(t, s.Groups().Grant(ctx, g))

	actions, err := s.Groups().Actions(ctx, groups, netw.ID)
	require.NoError(t, err)
	assert.Equal(t, []store.AuthzAction{store.ActionRead}, actions)

	ctxIDs, err := s.Groups().ContextsWithAction(ctx, groups, store.ActionRead)
	require.NoError(t, err)
	assert.Equal(t, []int64{netw.ID}, ctxIDs)

	require.NoError(t, s.Groups().Revoke(ctx, g))
	actions, err = s.Groups().Actions(ctx, groups, netw.ID)
	require.NoError(t, err)
	assert.Empty(t, actions)

	require.NoError(t, s.Groups().RemoveMember(ctx, "noc", "alice"))
	groups, err = s.Groups().GroupsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestGroupStore_GrantValidation(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.Groups().Create(ctx, "noc")
	require.NoError(t, err)
	_, err = s.Contexts().Create(ctx, "Network")
	require.NoError(t, err)

	err = s.Groups().Grant(ctx, store.Grant{Group: "noc", Context: "Nope", Action: store.ActionRead})
	assert.True(t, nlerr.IsUnknownContext(err))

	err = s.Groups().Grant(ctx, store.Grant{Group: "ghosts", Context: "Network", Action: store.ActionRead})
	assert.True(t, nlerr.IsNotFound(err))

	err = s.Groups().Grant(ctx, store.Grant{Group: "noc", Context: "Network", Action: "delete"})
	assert.True(t, nlerr.IsInvalidInput(err))

	err = s.Groups().AddMember(ctx, "ghosts", "bob")
	assert.True(t, nlerr.IsNotFound(err))
}

func TestGroupStore_NoGroupsMeansNoActions(t *testing.T) {
	s := openStore(t)
	actions, err := s.Groups().Actions(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestNodeTypeStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.NodeTypes().Register(ctx, &store.NodeType{Type: "Optical Node"}))
	require.NoError(t, s.NodeTypes().Register(ctx, &store.NodeType{Type: "Port", Hidden: true}))
	require.NoError(t, s.NodeTypes().Register(ctx, &store.NodeType{Type: "Optical Node"}))

	nt, err := s.NodeTypes().GetBySlug(ctx, "optical-node")
	require.NoError(t, err)
	assert.Equal(t, "Optical Node", nt.Type)

	visible, err := s.NodeTypes().List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	all, err := s.NodeTypes().List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = s.NodeTypes().Register(ctx, &store.NodeType{Type: "Optical-Node"})
	require.Error(t, err)
	assert.True(t, nlerr.IsConflict(err))

	_, err = s.NodeTypes().Get(ctx, "Router")
	assert.True(t, nlerr.IsNotFound(err))
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Users().Create(ctx, &store.User{ID: "alice", Name: "Alice"}))
	err := s.Users().Create(ctx, &store.User{ID: "alice"})
	assert.True(t, nlerr.IsConflict(err))

	u, err := s.Users().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = s.Users().Get(ctx, "bob")
	assert.True(t, nlerr.IsNotFound(err))

	users, err := s.Users().List(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestAuditStore_HistorySurvivesHandleDeletion(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	h := newHandle(t, s, "r1", "Router", false)

	require.NoError(t, s.AuditLog().Append(ctx, &store.AuditEntry{
		Action: "handle.create", Actor: "alice", HandleID: h.ID,
		Details: map[string]any{"name": "r1"}, Result: "ok",
	}))
	require.NoError(t, s.AuditLog().Append(ctx, &store.AuditEntry{Action: "handle.create", Actor: "bob", HandleID: h.ID + 100}))

	_, err := s.Handles().Delete(ctx, h.ID)
	require.NoError(t, err)

	entries, err := s.AuditLog().Query(ctx, store.AuditFilter{HandleIDs: []int64{h.ID}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "alice", entries[0].Actor)
	assert.Equal(t, "r1", entries[0].Details["name"])

	byActor, err := s.AuditLog().Query(ctx, store.AuditFilter{Actor: "bob"})
	require.NoError(t, err)
	assert.Len(t, byActor, 1)
}
