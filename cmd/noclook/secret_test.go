// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/noclook/noclook/internal/secrets"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

func useMockKeyring(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	orig := secretStoreFactory
	svc := "noclook-test-" + strings.ReplaceAll(t.Name(), "/", "-")
	secretStoreFactory = func() secrets.Store { return secrets.NewKeyringStore(svc) }
	t.Cleanup(func() { secretStoreFactory = orig })
}

func runSecret(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSecretCommands(t *testing.T) {
	useMockKeyring(t)

	out, err := runSecret(t, "", "secret", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No secrets stored.")

	out, err = runSecret(t, "s3cret\n", "secret", "set", "neo4j-password")
	require.NoError(t, err)
	assert.Contains(t, out, "keyring:neo4j-password")

	out, err = runSecret(t, "", "secret", "list")
	require.NoError(t, err)
	assert.Equal(t, "neo4j-password\n", out)

	_, err = runSecret(t, "", "secret", "delete", "neo4j-password")
	require.NoError(t, err)

	_, err = runSecret(t, "", "secret", "delete", "neo4j-password")
	assert.True(t, nlerr.IsNotFound(err))
}

func TestSecretSet_RejectsEmptyInput(t *testing.T) {
	useMockKeyring(t)

	_, err := runSecret(t, "\n", "secret", "set", "neo4j-password")
	assert.True(t, nlerr.HasCode(err, nlerr.CodeCLIInputInvalid))
}

func TestLoad_ResolvesKeyringReferences(t *testing.T) {
	useMockKeyring(t)
	require.NoError(t, secretStoreFactory().Set("neo4j-password", "s3cret"))

	path := filepath.Join(t.TempDir(), "noclook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("graph:\n  neo4j:\n    password: keyring:neo4j-password\n"), 0o600))

	root := NewRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--config", path}))
	a := &app{}
	require.NoError(t, a.load(root))
	assert.Equal(t, "s3cret", a.cfg.Graph.Neo4j.Password)
	assert.Equal(t, "neo4j", a.cfg.Graph.Neo4j.Username)
}

func TestLoad_MissingKeyringSecretFails(t *testing.T) {
	useMockKeyring(t)

	path := filepath.Join(t.TempDir(), "noclook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("graph:\n  neo4j:\n    password: keyring:absent\n"), 0o600))

	root := NewRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--config", path}))
	err := (&app{}).load(root)
	require.Error(t, err)
	assert.True(t, nlerr.IsNotFound(err))
}
