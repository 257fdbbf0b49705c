// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/graph/sqlite"
	nlerr "github.com/noclook/noclook/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createNode(t *testing.T, s graph.Store, props graph.Properties) graph.NodeID {
	t.Helper()
	var id graph.NodeID
	err := graph.Update(context.Background(), s, func(tx graph.Tx) error {
		var err error
		id, err = tx.CreateNode(context.Background(), props)
		return err
	})
	require.NoError(t, err)
	return id
}

func TestStore_NodeLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id := createNode(t, s, graph.Properties{"handle_id": int64(1), "name": "rtr1", "node_type": "Router"})

	err := graph.Update(ctx, s, func(tx graph.Tx) error {
		return tx.SetNodeProperties(ctx, id, graph.Properties{"model": "MX480"}, false)
	})
	require.NoError(t, err)

	err = graph.View(ctx, s, func(tx graph.Tx) error {
		n, err := tx.GetNode(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "rtr1", n.Properties.String("name"))
		assert.Equal(t, "MX480", n.Properties.String("model"))
		hid, ok := n.Properties.Int64("handle_id")
		assert.True(t, ok)
		assert.Equal(t, int64(1), hid)
		return nil
	})
	require.NoError(t, err)

	err = graph.Update(ctx, s, func(tx graph.Tx) error { return tx.DeleteNode(ctx, id) })
	require.NoError(t, err)

	err = graph.View(ctx, s, func(tx graph.Tx) error {
		_, err := tx.GetNode(ctx, id)
		return err
	})
	assert.True(t, nlerr.IsNotFound(err))
}

func TestStore_ReplaceProperties(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	id := createNode(t, s, graph.Properties{"name": "a", "stale": true})

	require.NoError(t, graph.Update(ctx, s, func(tx graph.Tx) error {
		return tx.SetNodeProperties(ctx, id, graph.Properties{"name": "b"}, true)
	}))

	require.NoError(t, graph.View(ctx, s, func(tx graph.Tx) error {
		n, err := tx.GetNode(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, graph.Properties{"name": "b"}, n.Properties)
		return nil
	}))
}

func TestStore_DeleteNodeWithEdgesIsBlocked(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	a := createNode(t, s, graph.Properties{"name": "a"})
	b := createNode(t, s, graph.Properties{"name": "b"})

	var edge graph.EdgeID
	require.NoError(t, graph.Update(ctx, s, func(tx graph.Tx) error {
		var err error
		edge, err = tx.CreateEdge(ctx, a, b, "Depends_on", nil)
		return err
	}))

	err := graph.Update(ctx, s, func(tx graph.Tx) error { return tx.DeleteNode(ctx, a) })
	require.Error(t, err)
	assert.True(t, nlerr.HasCode(err, nlerr.CodeGraphNodeDeleteBlocked))

	require.NoError(t, graph.Update(ctx, s, func(tx graph.Tx) error {
		if err := tx.DeleteEdge(ctx, edge); err != nil {
			return err
		}
		return tx.DeleteNode(ctx, a)
	}))
}

func TestStore_CreateEdgeToMissingNode(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	a := createNode(t, s, graph.Properties{"name": "a"})

	err := graph.Update(ctx, s, func(tx graph.Tx) error {
		_, err := tx.CreateEdge(ctx, a, "999", "Has", nil)
		return err
	})
	assert.True(t, nlerr.IsNotFound(err))
}

func TestStore_LockNode(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	a := createNode(t, s, graph.Properties{"name": "a"})

	require.NoError(t, graph.Update(ctx, s, func(tx graph.Tx) error {
		return tx.LockNode(ctx, a)
	}))

	for _, id := range []graph.NodeID{"999", "not-a-number"} {
		err := graph.Update(ctx, s, func(tx graph.Tx) error { return tx.LockNode(ctx, id) })
		assert.True(t, nlerr.HasCode(err, nlerr.CodeGraphNodeNotFound), "id %s", id)
	}
}

func TestStore_MatchPatterns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	rtr := createNode(t, s, graph.Properties{"name": "rtr1", "node_type": "Router", "handle_id": int64(10)})
	p1 := createNode(t, s, graph.Properties{"name": "ge-0/0/1", "node_type": "Port", "handle_id": int64(11)})
	p2 := createNode(t, s, graph.Properties{"name": "ge-0/0/2", "node_type": "Port", "handle_id": int64(12)})

	require.NoError(t, graph.Update(ctx, s, func(tx graph.Tx) error {
		if _, err := tx.CreateEdge(ctx, rtr, p1, "Has", graph.Properties{"noclook_auto_manage": true}); err != nil {
			return err
		}
		_, err := tx.CreateEdge(ctx, rtr, p2, "Has", nil)
		return err
	}))

	require.NoError(t, graph.View(ctx, s, func(tx graph.Tx) error {
		rows, err := tx.Match(ctx, graph.Pattern{Start: graph.NodeMatch{Type: "Port"}})
		require.NoError(t, err)
		assert.Len(t, rows, 2)

		rows, err = tx.Match(ctx, graph.Pattern{Start: graph.NodeMatch{Properties: graph.Properties{"handle_id": int64(11)}}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, p1, rows[0].Start.ID)

		rows, err = tx.Match(ctx, graph.Pattern{
			Start: graph.NodeMatch{ID: rtr},
			Rel:   &graph.RelMatch{Type: "Has", Direction: graph.Outgoing},
			End:   graph.NodeMatch{Properties: graph.Properties{"name": "ge-0/0/2"}},
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, p2, rows[0].End.ID)
		assert.Equal(t, rtr, rows[0].Edge.From)

		rows, err = tx.Match(ctx, graph.Pattern{
			Start: graph.NodeMatch{ID: p1},
			Rel:   &graph.RelMatch{Direction: graph.Incoming},
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, rtr, rows[0].End.ID)

		edges, err := graph.Incident(ctx, tx, rtr)
		require.NoError(t, err)
		assert.Len(t, edges, 2)
		return nil
	}))
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	boom := errors.New("boom")

	err := graph.Update(ctx, s, func(tx graph.Tx) error {
		if _, err := tx.CreateNode(ctx, graph.Properties{"name": "ghost", "node_type": "Host"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, graph.View(ctx, s, func(tx graph.Tx) error {
		rows, err := tx.Match(ctx, graph.Pattern{Start: graph.NodeMatch{Type: "Host"}})
		require.NoError(t, err)
		assert.Empty(t, rows)
		return nil
	}))
}

func TestStore_RegisteredAsBackend(t *testing.T) {
	assert.Contains(t, graph.Backends(), "sqlite")

	s, err := graph.Open(graph.Config{Backend: "sqlite", DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
