// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package graph

import (
	"context"
	"log/slog"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Update runs fn inside a transaction and commits it when fn returns nil.
// Any error or panic rolls the transaction back.
func Update(ctx context.Context, s Store, fn func(Tx) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.WarnContext(ctx, "graph rollback failed", "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return nlerr.Errorf(nlerr.CodeGraphStoreFailure, "committing graph transaction: %w", err)
	}
	committed = true
	return nil
}

// View runs fn inside a transaction that is always rolled back.
func View(ctx context.Context, s Store, fn func(Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.DebugContext(ctx, "graph read rollback failed", "error", rbErr)
		}
	}()

	return fn(tx)
}

// Incident returns every edge touching id, in either direction.
func Incident(ctx context.Context, tx Tx, id NodeID) ([]*Edge, error) {
	rows, err := tx.Match(ctx, Pattern{
		Start: NodeMatch{ID: id},
		Rel:   &RelMatch{Direction: Both},
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[EdgeID]bool, len(rows))
	edges := make([]*Edge, 0, len(rows))
	for _, r := range rows {
		if r.Edge == nil || seen[r.Edge.ID] {
			continue
		}
		seen[r.Edge.ID] = true
		edges = append(edges, r.Edge)
	}
	return edges, nil
}
