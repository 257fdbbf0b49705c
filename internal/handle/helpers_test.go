// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package handle_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/graph/graphtest"
	graphsqlite "github.com/noclook/noclook/internal/graph/sqlite"
	"github.com/noclook/noclook/internal/handle"
	"github.com/noclook/noclook/internal/store"
	storesqlite "github.com/noclook/noclook/internal/store/sqlite"
)

type fixture struct {
	rel   store.Store
	graph *graphtest.Store
	reg   *handle.Registry
}

func newFixture(t *testing.T, opts ...handle.Option) *fixture {
	t.Helper()
	dir := t.TempDir()

	rel, err := storesqlite.Open(filepath.Join(dir, "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rel.Close() })

	g, err := graphsqlite.Open(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	ctx := context.Background()
	for _, typ := range []string{"Router", "Host", "Port", "Customer"} {
		require.NoError(t, rel.NodeTypes().Register(ctx, &store.NodeType{Type: typ}))
	}

	faulty := graphtest.Wrap(g)
	return &fixture{rel: rel, graph: faulty, reg: handle.New(rel, faulty, opts...)}
}

func (f *fixture) create(t *testing.T, name, typ string) *store.Handle {
	t.Helper()
	h, err := f.reg.Create(context.Background(), handle.CreateRequest{
		Name: name, Type: typ, MetaType: store.MetaPhysical, Creator: "alice",
	})
	require.NoError(t, err)
	return h
}

// nodesWithHandle returns every graph node carrying handle_id id.
func (f *fixture) nodesWithHandle(t *testing.T, id int64) []graph.Row {
	t.Helper()
	var rows []graph.Row
	err := graph.View(context.Background(), f.graph, func(tx graph.Tx) error {
		var err error
		rows, err = tx.Match(context.Background(), graph.Pattern{
			Start: graph.NodeMatch{Properties: graph.Properties{graph.KeyHandleID: id}},
		})
		return err
	})
	require.NoError(t, err)
	return rows
}

func (f *fixture) allNodes(t *testing.T) []graph.Row {
	t.Helper()
	var rows []graph.Row
	err := graph.View(context.Background(), f.graph, func(tx graph.Tx) error {
		var err error
		rows, err = tx.Match(context.Background(), graph.Pattern{})
		return err
	})
	require.NoError(t, err)
	return rows
}
