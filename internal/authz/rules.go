// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package authz

import (
	"slices"

	"github.com/noclook/noclook/internal/store"
)

// Inquiry is everything a rule may look at. The engine fills it from the
// stores before any rule runs, so rules are pure functions.
type Inquiry struct {
	User    string
	Groups  []string
	Action  store.AuthzAction
	Context store.Context
	// Granted holds the actions the user's groups hold on Context.
	Granted []store.AuthzAction
	// HandleID is nil for creation-time checks.
	HandleID *int64
	// Member reports whether HandleID belongs to Context.
	Member bool
}

// Rule is a predicate over an Inquiry.
type Rule func(q Inquiry) bool

// HasAuthAction is satisfied when one of the user's groups holds the
// requested action on the context.
func HasAuthAction(q Inquiry) bool {
	return slices.Contains(q.Granted, q.Action)
}

// BelongsContext is satisfied when no handle is involved or the handle is
// a member of the context.
func BelongsContext(q Inquiry) bool {
	return q.HandleID == nil || q.Member
}

// All composes rules with logical AND. An empty composition denies.
func All(rules ...Rule) Rule {
	return func(q Inquiry) bool {
		if len(rules) == 0 {
			return false
		}
		for _, r := range rules {
			if !r(q) {
				return false
			}
		}
		return true
	}
}
