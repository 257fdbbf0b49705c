// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

// apiError maps an inventory error to an HTTP error. Server-side failures
// are logged and returned without detail.
func (s *Server) apiError(ctx context.Context, op string, err error) error {
	status := nlerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.cfg.Logger.ErrorContext(ctx, "request failed", "op", op, "code", nlerr.CodeOf(err), "error", err)
		return huma.NewError(status, op+" failed")
	}
	msg := err.Error()
	if nlerr.IsNotFound(err) {
		// Denied reads must look like missing handles.
		msg = "not found"
	}
	return huma.NewError(status, msg)
}

func (s *Server) user(ctx context.Context) (string, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return "", huma.Error401Unauthorized("no authenticated user")
	}
	return user, nil
}
