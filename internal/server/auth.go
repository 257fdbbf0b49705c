// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type userKey struct{}

// UserFromContext returns the authenticated user of the request.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey{}).(string)
	return u, ok && u != ""
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// publicPaths skip authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/openapi.json": true,
	"/openapi.yaml": true,
	"/docs":         true,
}

func isPublic(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/schemas/")
}

// userMiddleware rejects API requests that carry no user header and
// stores the user in the request context.
func userMiddleware(header string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			user := strings.TrimSpace(r.Header.Get(header))
			if user == "" {
				logger.DebugContext(r.Context(), "request without user header",
					"method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
				writeJSONError(w, http.StatusUnauthorized, header+" header required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
