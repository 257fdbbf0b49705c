// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package secrets

import (
	"sort"
	"strings"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

const refPrefix = "keyring:"

// IsReference reports whether value names a stored secret.
func IsReference(value string) bool {
	return strings.HasPrefix(value, refPrefix)
}

// Resolve returns the secret value references, or value itself when it is
// a literal.
func Resolve(s Store, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	name := strings.TrimPrefix(value, refPrefix)
	if name == "" {
		return "", nlerr.New(nlerr.CodeSecretInvalidInput, "empty keyring reference")
	}
	secret, err := s.Get(name)
	if err != nil {
		return "", nlerr.Wrap(err, nlerr.CodeSecretResolveFailure, "resolving keyring reference", nlerr.Field("name", name))
	}
	return secret, nil
}

// ResolveFields resolves every referenced value in place. fields maps a
// config key to the value it names. The store is only consulted when a
// reference is present. The first failure aborts resolution.
func ResolveFields(s Store, fields map[string]*string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		ptr := fields[key]
		if ptr == nil || !IsReference(*ptr) {
			continue
		}
		resolved, err := Resolve(s, *ptr)
		if err != nil {
			return nlerr.With(err, nlerr.Field("config_key", key))
		}
		*ptr = resolved
	}
	return nil
}
