// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package store defines the relational side of the inventory: handles,
// the node type vocabulary, contexts, groups with their grants, users and
// the audit log.
package store

import "context"

// Store groups the relational sub-stores that share one database.
type Store interface {
	Handles() HandleStore
	NodeTypes() NodeTypeStore
	Contexts() ContextStore
	Groups() GroupStore
	Users() UserStore
	AuditLog() AuditStore
	Close() error
}

// HandleStore manages handle rows. handle_id values come from the
// database sequence and are never reused.
type HandleStore interface {
	// Create inserts h and sets h.ID. With unique=true the (type, name) pair
	// is claimed in the same transaction; the claim fails with ErrConflict
	// when any other handle already has that name and type.
	Create(ctx context.Context, h *Handle, unique bool) error
	// BindNode sets node_id on a handle that has none yet.
	BindNode(ctx context.Context, id int64, nodeID string) error
	Get(ctx context.Context, id int64) (*Handle, error)
	GetByNodeID(ctx context.Context, nodeID string) (*Handle, error)
	// GetUnique returns the handle named name of type typ. The holder of
	// the unique claim wins over unclaimed handles of the same name, then
	// the oldest handle.
	GetUnique(ctx context.Context, name, typ string) (*Handle, error)
	List(ctx context.Context, q HandleQuery) ([]*Handle, error)
	Touch(ctx context.Context, id int64, t Touch) error
	// Delete removes the row with its context memberships and unique
	// claim, returning what is needed to Restore it.
	Delete(ctx context.Context, id int64) (*HandleSnapshot, error)
	Restore(ctx context.Context, snap *HandleSnapshot) error
}

// NodeTypeStore manages the registered type vocabulary.
type NodeTypeStore interface {
	Register(ctx context.Context, nt *NodeType) error
	Get(ctx context.Context, typ string) (*NodeType, error)
	GetBySlug(ctx context.Context, slug string) (*NodeType, error)
	List(ctx context.Context, includeHidden bool) ([]*NodeType, error)
}

// ContextStore manages contexts and handle membership in them.
type ContextStore interface {
	Create(ctx context.Context, name string) (*Context, error)
	Get(ctx context.Context, name string) (*Context, error)
	List(ctx context.Context) ([]*Context, error)
	// Assign adds the membership and reports whether it was new.
	Assign(ctx context.Context, handleID, contextID int64) (bool, error)
	Unassign(ctx context.Context, handleID, contextID int64) (bool, error)
	ContextsOf(ctx context.Context, handleID int64) ([]*Context, error)
	IsMember(ctx context.Context, handleID, contextID int64) (bool, error)
	// Members returns the distinct handle ids belonging to any of contextIDs.
	Members(ctx context.Context, contextIDs []int64) ([]int64, error)
}

// GroupStore manages groups, their members, and (group, context, action)
// grants.
type GroupStore interface {
	Create(ctx context.Context, name string) (*Group, error)
	Get(ctx context.Context, name string) (*Group, error)
	AddMember(ctx context.Context, group, userID string) error
	RemoveMember(ctx context.Context, group, userID string) error
	GroupsOf(ctx context.Context, userID string) ([]string, error)

	Grant(ctx context.Context, g Grant) error
	Revoke(ctx context.Context, g Grant) error
	// Actions returns the actions any of groups holds on contextID.
	Actions(ctx context.Context, groups []string, contextID int64) ([]AuthzAction, error)
	// ContextsWithAction returns the contexts on which any of groups holds action.
	ContextsWithAction(ctx context.Context, groups []string, action AuthzAction) ([]int64, error)
}

// UserStore manages user accounts.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, opts ListOpts) ([]*User, error)
}

// AuditStore manages the activity log.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}
