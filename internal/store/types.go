// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package store

import (
	"strings"
	"time"
	"unicode"
)

// MetaType is the coarse classification of an entity.
type MetaType string

const (
	MetaLogical      MetaType = "Logical"
	MetaPhysical     MetaType = "Physical"
	MetaOrganisation MetaType = "Organisation"
	MetaLocation     MetaType = "Location"
)

// Valid reports whether m is one of the four meta types.
func (m MetaType) Valid() bool {
	switch m {
	case MetaLogical, MetaPhysical, MetaOrganisation, MetaLocation:
		return true
	}
	return false
}

// Handle is the stable relational identifier bound to one graph node.
type Handle struct {
	ID         int64
	NodeID     string // empty until bound; immutable afterwards
	Name       string
	Type       string
	MetaType   MetaType
	Creator    string
	Modifier   string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// HandleSnapshot captures a deleted handle so the deletion can be undone.
type HandleSnapshot struct {
	Handle     Handle
	ContextIDs []int64
	Unique     bool
}

// Touch describes a modification stamp for a handle.
type Touch struct {
	Modifier string
	At       time.Time
	Name     *string // set to rename the handle
}

// HandleQuery specifies filters for listing handles.
type HandleQuery struct {
	Type       string
	NamePrefix string
	IDs        []int64
	Limit      int
	Offset     int
}

// NodeType is a registered entry of the type vocabulary.
type NodeType struct {
	Type   string
	Slug   string
	Hidden bool
}

// Context is a named authorization scope.
type Context struct {
	ID   int64
	Name string
}

// Group is a named set of users.
type Group struct {
	ID   int64
	Name string
}

// AuthzAction is an action a grant permits.
type AuthzAction string

const (
	ActionRead  AuthzAction = "read"
	ActionWrite AuthzAction = "write"
	ActionList  AuthzAction = "list"
	ActionAdmin AuthzAction = "admin"
)

// Actions lists every AuthzAction.
var Actions = []AuthzAction{ActionRead, ActionWrite, ActionList, ActionAdmin}

// Valid reports whether a is a known action.
func (a AuthzAction) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Grant permits members of Group to perform Action on handles in Context.
type Grant struct {
	Group   string
	Context string
	Action  AuthzAction
}

// User is a person or service account acting on the inventory.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// AuditEntry records one change to the inventory. HandleID is kept after
// the handle is deleted so history survives as a tombstone.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    string
	Actor     string
	HandleID  int64
	Details   map[string]any
	Result    string
}

// AuditFilter specifies criteria for querying audit entries.
type AuditFilter struct {
	Action    string
	Actor     string
	HandleIDs []int64
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// ListOpts provides pagination parameters for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}

// Slug derives the URL slug of a node type name ("Optical Node" becomes
// "optical-node").
func Slug(typ string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(typ)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
