// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package neo4j

import (
	"testing"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMatch_NodeOnly(t *testing.T) {
	q, params, err := buildMatch(graph.Pattern{
		Start: graph.NodeMatch{Type: "Router", Properties: graph.Properties{"name": "rtr1"}},
		Limit: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (s:Node) WHERE s.node_type = $s_type AND s.`name` = $s_p0 RETURN s ORDER BY elementId(s) LIMIT $limit", q)
	assert.Equal(t, "Router", params["s_type"])
	assert.Equal(t, "rtr1", params["s_p0"])
	assert.Equal(t, int64(5), params["limit"])
}

func TestBuildMatch_Directions(t *testing.T) {
	tests := []struct {
		dir  graph.Direction
		want string
	}{
		{graph.Outgoing, "MATCH (s:Node)-[e:Has]->(o:Node) WHERE elementId(s) = $s_id RETURN s, e, o ORDER BY elementId(e)"},
		{graph.Incoming, "MATCH (s:Node)<-[e:Has]-(o:Node) WHERE elementId(s) = $s_id RETURN s, e, o ORDER BY elementId(e)"},
		{graph.Both, "MATCH (s:Node)-[e:Has]-(o:Node) WHERE elementId(s) = $s_id RETURN s, e, o ORDER BY elementId(e)"},
	}
	for _, tt := range tests {
		q, params, err := buildMatch(graph.Pattern{
			Start: graph.NodeMatch{ID: "4:abc:1"},
			Rel:   &graph.RelMatch{Type: "Has", Direction: tt.dir},
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, q)
		assert.Equal(t, "4:abc:1", params["s_id"])
	}
}

func TestBuildMatch_EndNodeConstraints(t *testing.T) {
	q, params, err := buildMatch(graph.Pattern{
		Start: graph.NodeMatch{ID: "1"},
		Rel:   &graph.RelMatch{Direction: graph.Outgoing},
		End:   graph.NodeMatch{Type: "Port", Properties: graph.Properties{"name": "ge-0/0/1"}},
	})
	require.NoError(t, err)
	assert.Contains(t, q, "-[e]->")
	assert.Contains(t, q, "o.node_type = $o_type")
	assert.Contains(t, q, "o.`name` = $o_p0")
	assert.Equal(t, "ge-0/0/1", params["o_p0"])
}

func TestBuildMatch_RejectsUnsafeRelType(t *testing.T) {
	_, _, err := buildMatch(graph.Pattern{Rel: &graph.RelMatch{Type: "Has]->(x) DETACH DELETE x //"}})
	require.Error(t, err)
	assert.True(t, nlerr.IsInvalidInput(err) || nlerr.HasCode(err, nlerr.CodeGraphPatternInvalid))
}

func TestLabelsFor(t *testing.T) {
	assert.Equal(t, ":Node:Physical", labelsFor(graph.Properties{"node_meta_type": "Physical"}))
	assert.Equal(t, ":Node", labelsFor(graph.Properties{"node_meta_type": "Bad Label"}))
	assert.Equal(t, ":Node", labelsFor(nil))
}

func TestIdentifier(t *testing.T) {
	assert.True(t, identifier("Depends_on"))
	assert.True(t, identifier("Part_of2"))
	assert.False(t, identifier("2fast"))
	assert.False(t, identifier(""))
	assert.False(t, identifier("a-b"))
}
