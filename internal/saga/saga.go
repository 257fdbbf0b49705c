// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package saga runs multi-store operations as ordered steps with
// compensating actions.
package saga

import (
	"context"
	"log/slog"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Step is one unit of a saga. Undo, when set, reverts a successful Do.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// Run executes steps in order. When a step fails, the Undo of every
// completed step runs in reverse order and Run returns the step error
// joined with any compensation failures.
//
// Undo runs on a context detached from ctx's cancellation so that a
// cancelled caller still gets its partial work reverted.
func Run(ctx context.Context, steps ...Step) error {
	done := make([]Step, 0, len(steps))
	for _, step := range steps {
		if err := step.Do(ctx); err != nil {
			return compensate(ctx, step.Name, err, done)
		}
		done = append(done, step)
	}
	return nil
}

func compensate(ctx context.Context, failed string, cause error, done []Step) error {
	undoCtx := context.WithoutCancel(ctx)
	errs := []error{cause}

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(undoCtx); err != nil {
			slog.ErrorContext(ctx, "saga compensation failed",
				"failed_step", failed,
				"undo_step", step.Name,
				"error", err,
			)
			errs = append(errs, nlerr.Wrapf(err, nlerr.CodeHandleCompensation, "undo %s", step.Name))
		}
	}

	if len(errs) == 1 {
		return cause
	}
	return nlerr.Join(errs...)
}
