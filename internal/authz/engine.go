// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package authz assigns handles to contexts and decides whether a user may
// perform an action on a context or on a handle within it.
//
// Grants are read from the relational store on every request; a Request
// memoises them only for its own lifetime, so a revoked grant is
// effective on the next request.
package authz

import (
	"context"
	"log/slog"

	"github.com/noclook/noclook/internal/metrics"
	"github.com/noclook/noclook/internal/store"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Directory resolves a user's group memberships at call time.
type Directory interface {
	GroupsOf(ctx context.Context, userID string) ([]string, error)
}

// Engine evaluates authorization rules against the relational store.
type Engine struct {
	rel       store.Store
	directory Directory
	rule      Rule
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDirectory replaces the group directory. Defaults to the store's
// group membership table.
func WithDirectory(d Directory) Option {
	return func(e *Engine) { e.directory = d }
}

// WithRules adds rules to the default HasAuthAction AND BelongsContext
// composition. Every added rule must also be satisfied.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rule = All(append([]Rule{e.rule}, rules...)...)
	}
}

// WithMetrics records decisions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine.
func New(rel store.Store, opts ...Option) *Engine {
	e := &Engine{
		rel:       rel,
		directory: rel.Groups(),
		rule:      All(HasAuthAction, BelongsContext),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize reports whether user may perform action on contextName, and on
// handleID within it when handleID is not nil. Each call reads grants
// fresh.
func (e *Engine) Authorize(ctx context.Context, user string, action store.AuthzAction, contextName string, handleID *int64) (bool, error) {
	return e.NewRequest(user).Authorize(ctx, action, contextName, handleID)
}

// ReadableHandleIDs returns the ids of every handle in a context the user
// may read.
func (e *Engine) ReadableHandleIDs(ctx context.Context, user string) ([]int64, error) {
	return e.NewRequest(user).ReadableHandleIDs(ctx)
}

// RequireRead fails unless user may read handleID. A denial is reported
// as not found so callers cannot test for existence.
func (e *Engine) RequireRead(ctx context.Context, user string, handleID int64) error {
	return e.NewRequest(user).RequireRead(ctx, handleID)
}

// RequireWrite fails unless user may write handleID. A denial is reported
// explicitly.
func (e *Engine) RequireWrite(ctx context.Context, user string, handleID int64) error {
	return e.NewRequest(user).RequireWrite(ctx, handleID)
}

// AssignContext adds handleID to contextName. Assigning twice is a no-op.
func (e *Engine) AssignContext(ctx context.Context, handleID int64, contextName string) error {
	c, err := e.rel.Contexts().Get(ctx, contextName)
	if err != nil {
		return err
	}
	if _, err := e.rel.Handles().Get(ctx, handleID); err != nil {
		return err
	}
	added, err := e.rel.Contexts().Assign(ctx, handleID, c.ID)
	if err != nil {
		return err
	}
	if added {
		e.logger.DebugContext(ctx, "handle assigned to context", "handle_id", handleID, "context", contextName)
	}
	return nil
}

// UnassignContext removes handleID from contextName.
func (e *Engine) UnassignContext(ctx context.Context, handleID int64, contextName string) error {
	c, err := e.rel.Contexts().Get(ctx, contextName)
	if err != nil {
		return err
	}
	_, err = e.rel.Contexts().Unassign(ctx, handleID, c.ID)
	return err
}

// ContextsOf returns the contexts handleID belongs to.
func (e *Engine) ContextsOf(ctx context.Context, handleID int64) ([]*store.Context, error) {
	return e.rel.Contexts().ContextsOf(ctx, handleID)
}

// CreateContext registers a context. Creating an existing one returns it.
func (e *Engine) CreateContext(ctx context.Context, name string) (*store.Context, error) {
	return e.rel.Contexts().Create(ctx, name)
}

// Grant lets members of group perform action on handles in contextName.
func (e *Engine) Grant(ctx context.Context, group, contextName string, action store.AuthzAction) error {
	if _, err := e.rel.Groups().Create(ctx, group); err != nil {
		return err
	}
	return e.rel.Groups().Grant(ctx, store.Grant{Group: group, Context: contextName, Action: action})
}

// Revoke removes a grant. Revoking a grant that does not exist is a no-op.
func (e *Engine) Revoke(ctx context.Context, group, contextName string, action store.AuthzAction) error {
	return e.rel.Groups().Revoke(ctx, store.Grant{Group: group, Context: contextName, Action: action})
}

// Request evaluates several decisions for one user, memoising groups,
// contexts and grants. It must not outlive the request it serves.
type Request struct {
	engine *Engine
	user   string

	groups   []string
	loaded   bool
	contexts map[string]*store.Context
	grants   map[int64][]store.AuthzAction
}

// NewRequest starts a request-scoped evaluation for user.
func (e *Engine) NewRequest(user string) *Request {
	return &Request{
		engine:   e,
		user:     user,
		contexts: make(map[string]*store.Context),
		grants:   make(map[int64][]store.AuthzAction),
	}
}

func (r *Request) userGroups(ctx context.Context) ([]string, error) {
	if r.loaded {
		return r.groups, nil
	}
	groups, err := r.engine.directory.GroupsOf(ctx, r.user)
	if err != nil {
		return nil, err
	}
	r.groups, r.loaded = groups, true
	return groups, nil
}

func (r *Request) context(ctx context.Context, name string) (*store.Context, error) {
	if c, ok := r.contexts[name]; ok {
		return c, nil
	}
	c, err := r.engine.rel.Contexts().Get(ctx, name)
	if err != nil {
		return nil, err
	}
	r.contexts[name] = c
	return c, nil
}

func (r *Request) granted(ctx context.Context, contextID int64) ([]store.AuthzAction, error) {
	if actions, ok := r.grants[contextID]; ok {
		return actions, nil
	}
	groups, err := r.userGroups(ctx)
	if err != nil {
		return nil, err
	}
	actions, err := r.engine.rel.Groups().Actions(ctx, groups, contextID)
	if err != nil {
		return nil, err
	}
	r.grants[contextID] = actions
	return actions, nil
}

// Authorize evaluates the engine's rules for one decision.
func (r *Request) Authorize(ctx context.Context, action store.AuthzAction, contextName string, handleID *int64) (bool, error) {
	if !action.Valid() {
		return false, nlerr.New(nlerr.CodeAuthzInvalidInput, "unknown action", nlerr.Field("action", string(action)))
	}
	c, err := r.context(ctx, contextName)
	if err != nil {
		return false, err
	}
	groups, err := r.userGroups(ctx)
	if err != nil {
		return false, err
	}
	granted, err := r.granted(ctx, c.ID)
	if err != nil {
		return false, err
	}

	q := Inquiry{
		User:     r.user,
		Groups:   groups,
		Action:   action,
		Context:  *c,
		Granted:  granted,
		HandleID: handleID,
	}
	if handleID != nil {
		// Membership is never memoised: it is per-entity state.
		q.Member, err = r.engine.rel.Contexts().IsMember(ctx, *handleID, c.ID)
		if err != nil {
			return false, err
		}
	}

	allowed := r.engine.rule(q)
	r.engine.metrics.Authz(string(action), allowed)
	return allowed, nil
}

// ReadableHandleIDs returns the union of handles in every context the
// user holds read on.
func (r *Request) ReadableHandleIDs(ctx context.Context) ([]int64, error) {
	groups, err := r.userGroups(ctx)
	if err != nil {
		return nil, err
	}
	contextIDs, err := r.engine.rel.Groups().ContextsWithAction(ctx, groups, store.ActionRead)
	if err != nil {
		return nil, err
	}
	return r.engine.rel.Contexts().Members(ctx, contextIDs)
}

// RequireRead fails with a not-found error unless the user may read
// handleID through at least one of its contexts.
func (r *Request) RequireRead(ctx context.Context, handleID int64) error {
	ok, err := r.anyContext(ctx, store.ActionRead, handleID)
	if err != nil {
		return err
	}
	if !ok {
		return nlerr.New(nlerr.CodeHandleNotFound, "handle not found", nlerr.FieldHandleID(handleID))
	}
	return nil
}

// RequireWrite fails with an explicit denial unless the user may write
// handleID through at least one of its contexts.
func (r *Request) RequireWrite(ctx context.Context, handleID int64) error {
	ok, err := r.anyContext(ctx, store.ActionWrite, handleID)
	if err != nil {
		return err
	}
	if !ok {
		return nlerr.New(nlerr.CodeAuthzDenied, "write not permitted",
			nlerr.FieldHandleID(handleID), nlerr.FieldUserID(r.user))
	}
	return nil
}

func (r *Request) anyContext(ctx context.Context, action store.AuthzAction, handleID int64) (bool, error) {
	contexts, err := r.engine.rel.Contexts().ContextsOf(ctx, handleID)
	if err != nil {
		return false, err
	}
	for _, c := range contexts {
		r.contexts[c.Name] = c
		ok, err := r.Authorize(ctx, action, c.Name, &handleID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
