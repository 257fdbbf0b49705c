// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/noclook/noclook/internal/store"
	"github.com/noclook/noclook/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// openStore opens a fresh inventory database in a temp directory.
func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newHandle(t *testing.T, s store.Store, name, typ string, unique bool) *store.Handle {
	t.Helper()
	h := &store.Handle{Name: name, Type: typ, MetaType: store.MetaPhysical, Creator: "alice"}
	require.NoError(t, s.Handles().Create(context.Background(), h, unique))
	return h
}
