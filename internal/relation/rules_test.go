// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package relation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noclook/noclook/internal/graph"
	"github.com/noclook/noclook/internal/relation"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

func props(typ, meta string) graph.Properties {
	return graph.Properties{graph.KeyNodeType: typ, graph.KeyNodeMetaType: meta}
}

func TestDefaultRules(t *testing.T) {
	rules := relation.DefaultRules()
	assert.Len(t, rules.Types(), 8)

	has, err := rules.Rule(relation.Has)
	require.NoError(t, err)
	assert.Equal(t, relation.UniqueChildName, has.Cardinality)
	assert.True(t, has.Allows(props("Router", "Physical"), props("Port", "Physical")))
	assert.False(t, has.Allows(props("Router", "Physical"), props("Site", "Location")))

	_, err = rules.Rule("Nope")
	assert.True(t, nlerr.IsInvalidInput(err))
}

func TestParseRules(t *testing.T) {
	data := []byte(`
relationships:
  - type: Terminates_at
    cardinality: single
    allow:
      - from: Cable
        to: Port
  - type: Mentions
    cardinality: many
    allow:
      - from: "*"
        to: "*"
`)
	rules, err := relation.ParseRules(data)
	require.NoError(t, err)

	term, err := rules.Rule("Terminates_at")
	require.NoError(t, err)
	assert.Equal(t, relation.Single, term.Cardinality)
	assert.True(t, term.Allows(props("Cable", "Physical"), props("Port", "Physical")))
	assert.False(t, term.Allows(props("Port", "Physical"), props("Cable", "Physical")))

	wild, err := rules.Rule("Mentions")
	require.NoError(t, err)
	assert.True(t, wild.Allows(props("Host", "Logical"), props("Site", "Location")))
}

func TestParseRules_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "relationships: [",
		"no pairs":        "relationships:\n  - type: X\n    cardinality: many\n",
		"bad cardinality": "relationships:\n  - type: X\n    cardinality: lots\n    allow: [{from: A, to: B}]\n",
		"empty type":      "relationships:\n  - cardinality: many\n    allow: [{from: A, to: B}]\n",
		"duplicate": "relationships:\n  - {type: X, cardinality: many, allow: [{from: A, to: B}]}\n" +
			"  - {type: X, cardinality: many, allow: [{from: A, to: B}]}\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := relation.ParseRules([]byte(data))
			require.Error(t, err)
			assert.True(t, nlerr.IsInvalidInput(err))
		})
	}
}

func TestNewRules_ReportsEveryProblem(t *testing.T) {
	_, err := relation.NewRules(
		relation.Rule{Type: "A", Cardinality: "lots", Allow: []relation.Pair{{From: "X", To: "Y"}}},
		relation.Rule{Type: "B", Cardinality: relation.Many},
	)
	require.Error(t, err)
	assert.True(t, nlerr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), `relationship "A": unknown cardinality "lots"`)
	assert.Contains(t, err.Error(), `relationship "B": at least one allowed pair is required`)
	assert.Equal(t, 2, nlerr.FieldsOf(err)["problems"])
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relationships:\n  - {type: X, cardinality: many, allow: [{from: A, to: B}]}\n"), 0o600))

	rules, err := relation.LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, rules.Types())

	_, err = relation.LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
