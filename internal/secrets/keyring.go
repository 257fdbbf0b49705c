// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/zalando/go-keyring"

	nlerr "github.com/noclook/noclook/pkg/errors"
)

// indexName holds the JSON list of stored names; the OS keyrings cannot
// enumerate entries.
const indexName = "::index"

// KeyringStore keeps secrets in the OS keyring via zalando/go-keyring.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store scoped to service. An empty service
// means DefaultService.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Set(name, value string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := keyring.Set(s.service, name, value); err != nil {
		return nlerr.Wrap(err, nlerr.CodeSecretStoreFailure, "storing secret", nlerr.Field("name", name))
	}
	names, err := s.List()
	if err != nil {
		return err
	}
	if slices.Contains(names, name) {
		return nil
	}
	return s.saveIndex(append(names, name))
}

func (s *KeyringStore) Get(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	value, err := keyring.Get(s.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nlerr.New(nlerr.CodeSecretNotFound, "secret not found", nlerr.Field("name", name))
	}
	if err != nil {
		return "", nlerr.Wrap(err, nlerr.CodeSecretStoreFailure, "reading secret", nlerr.Field("name", name))
	}
	return value, nil
}

func (s *KeyringStore) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := keyring.Delete(s.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nlerr.New(nlerr.CodeSecretNotFound, "secret not found", nlerr.Field("name", name))
	}
	if err != nil {
		return nlerr.Wrap(err, nlerr.CodeSecretStoreFailure, "deleting secret", nlerr.Field("name", name))
	}
	names, err := s.List()
	if err != nil {
		return err
	}
	return s.saveIndex(slices.DeleteFunc(names, func(n string) bool { return n == name }))
}

// List returns the stored names in insertion order.
func (s *KeyringStore) List() ([]string, error) {
	raw, err := keyring.Get(s.service, indexName)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, nlerr.Wrap(err, nlerr.CodeSecretStoreFailure, "reading secret index")
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, nlerr.Wrap(err, nlerr.CodeSecretStoreFailure, "decoding secret index")
	}
	return names, nil
}

func (s *KeyringStore) saveIndex(names []string) error {
	if len(names) == 0 {
		if err := keyring.Delete(s.service, indexName); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return nlerr.Wrap(err, nlerr.CodeSecretStoreFailure, "clearing secret index")
		}
		return nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return nlerr.Wrap(err, nlerr.CodeSecretStoreFailure, "encoding secret index")
	}
	if err := keyring.Set(s.service, indexName, string(data)); err != nil {
		return nlerr.Wrap(err, nlerr.CodeSecretStoreFailure, "writing secret index")
	}
	return nil
}

func validName(name string) error {
	if name == "" || name == indexName {
		return nlerr.New(nlerr.CodeSecretInvalidInput, "invalid secret name", nlerr.Field("name", name))
	}
	return nil
}
