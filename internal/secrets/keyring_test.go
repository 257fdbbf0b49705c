// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/noclook/noclook/internal/secrets"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

func init() {
	keyring.MockInit()
}

var _ secrets.Store = (*secrets.KeyringStore)(nil)

func TestKeyringStore_SetGet(t *testing.T) {
	ks := secrets.NewKeyringStore("test-set-get")

	require.NoError(t, ks.Set("neo4j-password", "s3cret"))
	val, err := ks.Get("neo4j-password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", val)

	require.NoError(t, ks.Set("neo4j-password", "rotated"))
	val, err = ks.Get("neo4j-password")
	require.NoError(t, err)
	assert.Equal(t, "rotated", val)

	names, err := ks.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"neo4j-password"}, names)
}

func TestKeyringStore_NotFound(t *testing.T) {
	ks := secrets.NewKeyringStore("test-not-found")

	_, err := ks.Get("missing")
	assert.True(t, nlerr.IsNotFound(err))
	assert.True(t, nlerr.IsNotFound(ks.Delete("missing")))
}

func TestKeyringStore_DeleteUpdatesIndex(t *testing.T) {
	ks := secrets.NewKeyringStore("test-delete")
	require.NoError(t, ks.Set("a", "1"))
	require.NoError(t, ks.Set("b", "2"))

	require.NoError(t, ks.Delete("a"))

	names, err := ks.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)

	require.NoError(t, ks.Delete("b"))
	names, err = ks.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestKeyringStore_RejectsInvalidNames(t *testing.T) {
	ks := secrets.NewKeyringStore("test-invalid")
	for _, name := range []string{"", "::index"} {
		assert.True(t, nlerr.HasCode(ks.Set(name, "x"), nlerr.CodeSecretInvalidInput), name)
	}
}

func TestKeyringStore_ServicesAreIsolated(t *testing.T) {
	a := secrets.NewKeyringStore("svc-a")
	b := secrets.NewKeyringStore("svc-b")
	require.NoError(t, a.Set("shared", "from-a"))

	_, err := b.Get("shared")
	assert.True(t, nlerr.IsNotFound(err))
}
