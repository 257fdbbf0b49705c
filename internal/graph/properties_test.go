// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package graph_test

import (
	"testing"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestProperties_MergeKeepsExistingKeys(t *testing.T) {
	base := graph.Properties{"name": "rtr1", "model": "MX"}
	merged := base.Merge(graph.Properties{"model": "PTX", "os": "junos"})

	assert.Equal(t, graph.Properties{"name": "rtr1", "model": "PTX", "os": "junos"}, merged)
	assert.Equal(t, "MX", base.String("model"), "merge must not mutate the receiver")
}

func TestProperties_NumericKinds(t *testing.T) {
	for _, v := range []any{int(7), int64(7), float64(7)} {
		got, ok := graph.Properties{"handle_id": v}.Int64("handle_id")
		assert.True(t, ok)
		assert.Equal(t, int64(7), got)
	}
	_, ok := graph.Properties{"handle_id": 7.5}.Int64("handle_id")
	assert.False(t, ok)
	_, ok = graph.Properties{}.Int64("handle_id")
	assert.False(t, ok)
}

func TestProperties_Bool(t *testing.T) {
	b, ok := graph.Properties{"f": "true"}.Bool("f")
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = graph.Properties{"f": "maybe"}.Bool("f")
	assert.False(t, ok)
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, graph.ValuesEqual(int64(3), float64(3)))
	assert.True(t, graph.ValuesEqual("a", "a"))
	assert.False(t, graph.ValuesEqual("1", int64(1)))
	assert.True(t, graph.ValuesEqual(nil, nil))
	assert.False(t, graph.ValuesEqual(true, "true"))
}

func TestNodeMatch_Matches(t *testing.T) {
	n := &graph.Node{ID: "1", Properties: graph.Properties{"node_type": "Port", "name": "p1", "handle_id": float64(4)}}

	assert.True(t, graph.NodeMatch{}.Matches(n))
	assert.True(t, graph.NodeMatch{Type: "Port", Properties: graph.Properties{"handle_id": int64(4)}}.Matches(n))
	assert.False(t, graph.NodeMatch{ID: "2"}.Matches(n))
	assert.False(t, graph.NodeMatch{Properties: graph.Properties{"missing": "x"}}.Matches(n))
	assert.False(t, graph.NodeMatch{}.Matches(nil))
}

func TestPattern_Validate(t *testing.T) {
	assert.NoError(t, graph.Pattern{}.Validate())

	err := graph.Pattern{End: graph.NodeMatch{Type: "Port"}}.Validate()
	assert.True(t, nlerr.HasCode(err, nlerr.CodeGraphPatternInvalid))

	err = graph.Pattern{Limit: -1}.Validate()
	assert.Error(t, err)
}
