// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noclook/noclook/internal/authz"
	"github.com/noclook/noclook/internal/store"
)

func ptr(v int64) *int64 { return &v }

func TestHasAuthAction(t *testing.T) {
	q := authz.Inquiry{Action: store.ActionWrite, Granted: []store.AuthzAction{store.ActionRead, store.ActionWrite}}
	assert.True(t, authz.HasAuthAction(q))

	q.Granted = []store.AuthzAction{store.ActionRead}
	assert.False(t, authz.HasAuthAction(q))

	q.Granted = nil
	assert.False(t, authz.HasAuthAction(q))
}

func TestBelongsContext(t *testing.T) {
	assert.True(t, authz.BelongsContext(authz.Inquiry{}), "creation-time check passes")
	assert.False(t, authz.BelongsContext(authz.Inquiry{HandleID: ptr(1)}))
	assert.True(t, authz.BelongsContext(authz.Inquiry{HandleID: ptr(1), Member: true}))
}

func TestAll(t *testing.T) {
	yes := func(authz.Inquiry) bool { return true }
	no := func(authz.Inquiry) bool { return false }

	assert.True(t, authz.All(yes, yes)(authz.Inquiry{}))
	assert.False(t, authz.All(yes, no)(authz.Inquiry{}))
	assert.False(t, authz.All()(authz.Inquiry{}))
}
