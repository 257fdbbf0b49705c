// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package authz_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noclook/noclook/internal/authz"
	"github.com/noclook/noclook/internal/metrics"
	"github.com/noclook/noclook/internal/store"
	storesqlite "github.com/noclook/noclook/internal/store/sqlite"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

type fixture struct {
	rel    store.Store
	engine *authz.Engine
}

func newFixture(t *testing.T, opts ...authz.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	rel, err := storesqlite.Open(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rel.Close() })

	for _, name := range []string{"Network", "Community"} {
		_, err := rel.Contexts().Create(ctx, name)
		require.NoError(t, err)
	}
	_, err = rel.Groups().Create(ctx, "noc")
	require.NoError(t, err)
	require.NoError(t, rel.Groups().AddMember(ctx, "noc", "alice"))

	return &fixture{rel: rel, engine: authz.New(rel, opts...)}
}

func (f *fixture) handle(t *testing.T, name string) int64 {
	t.Helper()
	h := &store.Handle{Name: name, Type: "Router", MetaType: store.MetaPhysical}
	require.NoError(t, f.rel.Handles().Create(context.Background(), h, false))
	return h.ID
}

func TestAssignContext_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.handle(t, "r1")

	require.NoError(t, f.engine.AssignContext(ctx, h, "Network"))
	require.NoError(t, f.engine.AssignContext(ctx, h, "Network"))

	contexts, err := f.engine.ContextsOf(ctx, h)
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "Network", contexts[0].Name)
}

func TestAssignContext_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.handle(t, "r1")

	err := f.engine.AssignContext(ctx, h, "Nope")
	assert.True(t, nlerr.IsUnknownContext(err))

	err = f.engine.AssignContext(ctx, 9999, "Network")
	assert.True(t, nlerr.IsNotFound(err))
}

func TestUnassignContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.handle(t, "r1")
	require.NoError(t, f.engine.AssignContext(ctx, h, "Network"))

	require.NoError(t, f.engine.UnassignContext(ctx, h, "Network"))
	require.NoError(t, f.engine.UnassignContext(ctx, h, "Network"))

	contexts, err := f.engine.ContextsOf(ctx, h)
	require.NoError(t, err)
	assert.Empty(t, contexts)
}

func TestAuthorize_GrantThenRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.handle(t, "r1")
	require.NoError(t, f.engine.AssignContext(ctx, h, "Network"))
	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionWrite))

	ok, err := f.engine.Authorize(ctx, "alice", store.ActionWrite, "Network", &h)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.engine.Revoke(ctx, "noc", "Network", store.ActionWrite))

	ok, err = f.engine.Authorize(ctx, "alice", store.ActionWrite, "Network", &h)
	require.NoError(t, err)
	assert.False(t, ok, "revocation must be visible on the next call")
}

func TestAuthorize_RequiresMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.handle(t, "r1")
	require.NoError(t, f.engine.AssignContext(ctx, h, "Community"))
	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionWrite))

	ok, err := f.engine.Authorize(ctx, "alice", store.ActionWrite, "Network", &h)
	require.NoError(t, err)
	assert.False(t, ok)

	// Creation-time checks carry no handle.
	ok, err = f.engine.Authorize(ctx, "alice", store.ActionWrite, "Network", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorize_OtherUsersAndActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionRead))

	ok, err := f.engine.Authorize(ctx, "bob", store.ActionRead, "Network", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.engine.Authorize(ctx, "alice", store.ActionAdmin, "Network", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.engine.Authorize(ctx, "alice", store.ActionRead, "Nope", nil)
	assert.True(t, nlerr.IsUnknownContext(err))

	_, err = f.engine.Authorize(ctx, "alice", "delete", "Network", nil)
	assert.True(t, nlerr.IsInvalidInput(err))
}

func TestReadableHandleIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.handle(t, "a")
	b := f.handle(t, "b")
	c := f.handle(t, "c")
	require.NoError(t, f.engine.AssignContext(ctx, a, "Network"))
	require.NoError(t, f.engine.AssignContext(ctx, b, "Network"))
	require.NoError(t, f.engine.AssignContext(ctx, b, "Community"))
	require.NoError(t, f.engine.AssignContext(ctx, c, "Community"))
	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionRead))
	require.NoError(t, f.engine.Grant(ctx, "noc", "Community", store.ActionWrite))

	ids, err := f.engine.ReadableHandleIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b}, ids)

	ids, err = f.engine.ReadableHandleIDs(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRequireRead_DenialLooksLikeNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.handle(t, "r1")
	require.NoError(t, f.engine.AssignContext(ctx, h, "Community"))

	denied := f.engine.RequireRead(ctx, "alice", h)
	missing := f.engine.RequireRead(ctx, "alice", 424242)
	require.Error(t, denied)
	assert.True(t, nlerr.IsNotFound(denied))
	assert.Equal(t, nlerr.CodeOf(missing), nlerr.CodeOf(denied))

	require.NoError(t, f.engine.Grant(ctx, "noc", "Community", store.ActionRead))
	require.NoError(t, f.engine.RequireRead(ctx, "alice", h))
}

func TestRequireWrite_DenialIsExplicit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.handle(t, "r1")
	require.NoError(t, f.engine.AssignContext(ctx, h, "Network"))
	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionRead))

	err := f.engine.RequireWrite(ctx, "alice", h)
	require.Error(t, err)
	assert.True(t, nlerr.IsUnauthorized(err))
	assert.Equal(t, 403, nlerr.HTTPStatus(err))

	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionWrite))
	require.NoError(t, f.engine.RequireWrite(ctx, "alice", h))
}

type staticDirectory map[string][]string

func (d staticDirectory) GroupsOf(_ context.Context, user string) ([]string, error) {
	return d[user], nil
}

func TestWithDirectoryAndRules(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	f := newFixture(t,
		authz.WithDirectory(staticDirectory{"carol": {"noc"}}),
		authz.WithRules(func(q authz.Inquiry) bool { return q.User != "mallory" }),
		authz.WithMetrics(m),
	)
	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionList))

	ok, err := f.engine.Authorize(ctx, "carol", store.ActionList, "Network", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// alice is only a member through the store, which the directory replaced.
	ok, err = f.engine.Authorize(ctx, "alice", store.ActionList, "Network", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisions.WithLabelValues("list", "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisions.WithLabelValues("list", "denied")))
}

func TestWithRules_ExtraRuleCanDeny(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, authz.WithRules(func(q authz.Inquiry) bool { return q.User != "alice" }))
	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionRead))

	ok, err := f.engine.Authorize(ctx, "alice", store.ActionRead, "Network", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequest_MemoisesWithinRequestOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.engine.Grant(ctx, "noc", "Network", store.ActionRead))

	req := f.engine.NewRequest("alice")
	ok, err := req.Authorize(ctx, store.ActionRead, "Network", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.engine.Revoke(ctx, "noc", "Network", store.ActionRead))

	// Same request keeps its snapshot; a new one sees the revocation.
	ok, err = req.Authorize(ctx, store.ActionRead, "Network", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.engine.NewRequest("alice").Authorize(ctx, store.ActionRead, "Network", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
