// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package secrets keeps backend credentials out of config files. A config
// value of the form "keyring:NAME" is replaced by the secret stored under
// NAME before the stores are opened.
package secrets

// DefaultService is the keyring service NOCLook credentials live under.
const DefaultService = "noclook"

// Store holds named secrets for one service.
type Store interface {
	Set(name, value string) error
	// Get returns a CodeSecretNotFound error when name is not stored.
	Get(name string) (string, error)
	Delete(name string) error
	List() ([]string, error)
}
