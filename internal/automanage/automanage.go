// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package automanage models the metadata automated feeds attach to graph
// objects they maintain, and decides when that data has gone stale.
package automanage

import (
	"time"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Property keys written on nodes and edges.
const (
	KeyAutoManage = "noclook_auto_manage"
	KeyLastSeen   = "noclook_last_seen"
)

// legacyLayouts are timestamp forms written by older feeds without a zone;
// they are read as UTC.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// Metadata is the typed view of the automation properties. A nil field
// means the property is absent.
type Metadata struct {
	Managed  *bool
	LastSeen *time.Time
}

// Seen returns the metadata a feed writes when it observes an object at now.
func Seen(now time.Time) Metadata {
	managed := true
	seen := now.UTC()
	return Metadata{Managed: &managed, LastSeen: &seen}
}

// IsManaged reports whether the object is flagged as auto-managed.
func (m Metadata) IsManaged() bool {
	return m.Managed != nil && *m.Managed
}

// FromProperties reads the metadata from a property bag. A last-seen value
// that cannot be parsed is returned as an error with LastSeen left nil.
func FromProperties(props graph.Properties) (Metadata, error) {
	var m Metadata
	if b, ok := props.Bool(KeyAutoManage); ok {
		m.Managed = &b
	}

	raw, ok := props[KeyLastSeen]
	if !ok || raw == nil {
		return m, nil
	}
	t, err := parseLastSeen(raw)
	if err != nil {
		return m, err
	}
	m.LastSeen = &t
	return m, nil
}

// Apply writes the present fields of m into props.
func (m Metadata) Apply(props graph.Properties) {
	if m.Managed != nil {
		props[KeyAutoManage] = *m.Managed
	}
	if m.LastSeen != nil {
		props[KeyLastSeen] = FormatTime(*m.LastSeen)
	}
}

// Properties returns m as a property bag holding only the automation keys.
func (m Metadata) Properties() graph.Properties {
	props := graph.Properties{}
	m.Apply(props)
	return props
}

// IsExpired reports whether the object is auto-managed, has a last-seen
// time, and was last seen more than maxAge before now. Unknown freshness
// is never expired.
func IsExpired(m Metadata, maxAge time.Duration, now time.Time) bool {
	if !m.IsManaged() || m.LastSeen == nil {
		return false
	}
	return now.Sub(*m.LastSeen) > maxAge
}

// FormatTime renders t the way last-seen values are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a stored last-seen value.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, nlerr.New(nlerr.CodeFreshnessInvalidInput, "unrecognised "+KeyLastSeen+" value",
		nlerr.Field("value", s))
}

func parseLastSeen(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return ParseTime(t)
	case time.Time:
		return t, nil
	default:
		return time.Time{}, nlerr.Errorf(nlerr.CodeFreshnessInvalidInput, "unsupported %s type %T", KeyLastSeen, v)
	}
}
