// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

package relation

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noclook/noclook/internal/graph"
	nlerr "github.com/noclook/noclook/pkg/errors"
)

// Relationship type names of the default rule table.
const (
	DependsOn      = "Depends_on"
	PartOf         = "Part_of"
	ConnectedTo    = "Connected_to"
	Has            = "Has"
	ResponsibleFor = "Responsible_for"
	LocatedIn      = "Located_in"
	Uses           = "Uses"
	Provides       = "Provides"
)

// Wildcard matches any node type in an endpoint pair.
const Wildcard = "*"

// Cardinality limits the outgoing edges of one type from a source node.
type Cardinality string

const (
	// Many allows any number of edges, one per distinct target.
	Many Cardinality = "many"
	// Single allows one outgoing edge of the type.
	Single Cardinality = "single"
	// OnePerTargetType allows one outgoing edge per target node type.
	OnePerTargetType Cardinality = "one_per_target_type"
	// UniqueChildName allows one outgoing edge per target name.
	UniqueChildName Cardinality = "unique_child_name"
)

var validCardinalities = map[Cardinality]bool{
	Many:             true,
	Single:           true,
	OnePerTargetType: true,
	UniqueChildName:  true,
}

// Pair is an allowed (from, to) endpoint combination. Each side names a
// node type, a meta type, or Wildcard.
type Pair struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Rule declares one relationship type.
type Rule struct {
	Type        string      `yaml:"type"`
	Cardinality Cardinality `yaml:"cardinality"`
	Allow       []Pair      `yaml:"allow"`
}

// Allows reports whether an edge may run from a node to another node.
func (r Rule) Allows(from, to graph.Properties) bool {
	for _, p := range r.Allow {
		if endpointMatches(p.From, from) && endpointMatches(p.To, to) {
			return true
		}
	}
	return false
}

func endpointMatches(want string, props graph.Properties) bool {
	return want == Wildcard ||
		want == props.String(graph.KeyNodeType) ||
		want == props.String(graph.KeyNodeMetaType)
}

// Rules is the relationship type table.
type Rules struct {
	byType map[string]Rule
}

type rulesFile struct {
	Relationships []Rule `yaml:"relationships"`
}

// NewRules builds a table from rules, rejecting malformed entries. The
// returned error lists every problem found.
func NewRules(rules ...Rule) (*Rules, error) {
	t := &Rules{byType: make(map[string]Rule, len(rules))}
	var errs []error
	for _, r := range rules {
		errs = append(errs, r.validate()...)
		if _, dup := t.byType[r.Type]; dup {
			errs = append(errs, nlerr.Errorf(nlerr.CodeRelationRulesInvalid, "relationship %q declared twice", r.Type))
		}
		t.byType[r.Type] = r
	}
	if len(errs) > 0 {
		return nil, nlerr.Wrap(errors.Join(errs...), nlerr.CodeRelationRulesInvalid, "invalid relationship rules",
			nlerr.Field("problems", len(errs)))
	}
	return t, nil
}

func (r Rule) validate() []error {
	var errs []error
	if strings.TrimSpace(r.Type) == "" {
		errs = append(errs, nlerr.Errorf(nlerr.CodeRelationRulesInvalid, "relationship type must not be empty"))
	}
	if !validCardinalities[r.Cardinality] {
		errs = append(errs, nlerr.Errorf(nlerr.CodeRelationRulesInvalid,
			"relationship %q: unknown cardinality %q", r.Type, r.Cardinality))
	}
	if len(r.Allow) == 0 {
		errs = append(errs, nlerr.Errorf(nlerr.CodeRelationRulesInvalid,
			"relationship %q: at least one allowed pair is required", r.Type))
	}
	for _, p := range r.Allow {
		if p.From == "" || p.To == "" {
			errs = append(errs, nlerr.Errorf(nlerr.CodeRelationRulesInvalid,
				"relationship %q: pair endpoints must not be empty", r.Type))
		}
	}
	return errs
}

// ParseRules parses a YAML rule table.
func ParseRules(data []byte) (*Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nlerr.Errorf(nlerr.CodeRelationRulesInvalid, "rules parse: %s", err)
	}
	return NewRules(f.Relationships...)
}

// LoadRules reads a YAML rule table from path.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nlerr.Errorf(nlerr.CodeConfigLoadReadFailure, "reading rules file %s: %w", path, err)
	}
	return ParseRules(data)
}

// Rule returns the declaration for relType.
func (t *Rules) Rule(relType string) (Rule, error) {
	r, ok := t.byType[relType]
	if !ok {
		return Rule{}, nlerr.New(nlerr.CodeRelationUnknownType, "unknown relationship type", nlerr.FieldRelType(relType))
	}
	return r, nil
}

// Types returns the declared relationship types.
func (t *Rules) Types() []string {
	out := make([]string, 0, len(t.byType))
	for typ := range t.byType {
		out = append(out, typ)
	}
	return out
}

// DefaultRules returns the built-in table, expressed on meta types.
func DefaultRules() *Rules {
	rules, err := NewRules(
		Rule{Type: DependsOn, Cardinality: Many, Allow: []Pair{
			{From: "Logical", To: "Logical"},
			{From: "Logical", To: "Physical"},
		}},
		Rule{Type: PartOf, Cardinality: OnePerTargetType, Allow: []Pair{
			{From: "Logical", To: "Physical"},
		}},
		Rule{Type: ConnectedTo, Cardinality: Many, Allow: []Pair{
			{From: "Physical", To: "Physical"},
		}},
		Rule{Type: Has, Cardinality: UniqueChildName, Allow: []Pair{
			{From: "Physical", To: "Physical"},
			{From: "Location", To: "Location"},
		}},
		Rule{Type: ResponsibleFor, Cardinality: Many, Allow: []Pair{
			{From: "Organisation", To: "Physical"},
			{From: "Organisation", To: "Location"},
		}},
		Rule{Type: LocatedIn, Cardinality: Single, Allow: []Pair{
			{From: "Physical", To: "Location"},
		}},
		Rule{Type: Uses, Cardinality: Many, Allow: []Pair{
			{From: "Organisation", To: "Logical"},
		}},
		Rule{Type: Provides, Cardinality: Many, Allow: []Pair{
			{From: "Organisation", To: "Logical"},
			{From: "Organisation", To: "Physical"},
		}},
	)
	if err != nil {
		panic(err)
	}
	return rules
}
