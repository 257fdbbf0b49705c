// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

func TestRootCommand_Help(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	err := root.Execute()
	require.NoError(t, err)
	for _, sub := range []string{"noclook", "handle", "connect", "grant", "reap", "version"} {
		assert.Contains(t, buf.String(), sub)
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "noclook")
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--verbose", "--help"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "--config")
	assert.Contains(t, buf.String(), "--data-dir")
	assert.Contains(t, buf.String(), "--user")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"handle", "list", "--config", "/nonexistent/path.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, nlerr.HasCode(err, nlerr.CodeConfigLoadReadFailure))
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(bad)
		assert.True(t, nlerr.IsInvalidInput(err), bad)
	}
}

func TestParseProperties(t *testing.T) {
	props, err := parseProperties([]string{"speed=10000", "enabled=true", "label=uplink", "serial=t", "empty="})
	require.NoError(t, err)
	assert.Equal(t, graph.Properties{
		"speed":   int64(10000),
		"enabled": true,
		"label":   "uplink",
		"serial":  "t",
		"empty":   "",
	}, props)

	_, err = parseProperties([]string{"novalue"})
	assert.True(t, nlerr.IsInvalidInput(err))
	_, err = parseProperties([]string{"=x"})
	assert.True(t, nlerr.IsInvalidInput(err))
}
