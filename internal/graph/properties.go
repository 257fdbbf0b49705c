// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package graph

import (
	"fmt"
	"maps"
	"strconv"
)

// Well-known node property keys.
const (
	KeyHandleID     = "handle_id"
	KeyName         = "name"
	KeyNodeType     = "node_type"
	KeyNodeMetaType = "node_meta_type"
)

// Properties is a node or edge property bag.
type Properties map[string]any

// Clone returns a shallow copy. A nil bag clones to an empty one.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	maps.Copy(out, p)
	return out
}

// Merge returns a copy of p with every key of update set on it.
func (p Properties) Merge(update Properties) Properties {
	out := p.Clone()
	maps.Copy(out, update)
	return out
}

// String returns the value at key formatted as a string, or "" when absent.
func (p Properties) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int64 reads an integer value. Backends disagree on number types (JSON
// decodes float64, Bolt returns int64), so every numeric kind is accepted.
func (p Properties) Int64(key string) (int64, bool) {
	return toInt64(p[key])
}

// Bool reads a boolean value. String forms "true"/"false" are accepted
// because some feeds write flags as text.
func (p Properties) Bool(key string) (bool, bool) {
	switch v := p[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// ValuesEqual compares two property values, treating numbers of different
// Go types as equal when they hold the same integer value.
func ValuesEqual(a, b any) bool {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return ai == bi
		}
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string, bool:
		return a == b
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case float32:
		if float64(n) != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
