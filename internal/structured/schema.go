package structured

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON Schema (draft 2020-12) that generated output
// must satisfy.
type Schema struct {
	name     string
	source   string
	compiled *jsonschema.Schema
}

// Compile compiles a JSON Schema document registered under name.
func Compile(name, source string) (*Schema, error) {
	url := "mem://parliament/" + name + ".json"
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	return &Schema{name: name, source: source, compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error. Used for the built-in schemas.
func MustCompile(name, source string) *Schema {
	s, err := Compile(name, source)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

// Source returns the schema document, for inclusion in prompts.
func (s *Schema) Source() string { return s.source }

// Validate checks a decoded JSON value against the schema.
func (s *Schema) Validate(v interface{}) error {
	return s.compiled.Validate(v)
}

// Built-in schemas for the content a sitting asks the model for.
var (
	StatementSchema = MustCompile("statement", `{
  "type": "object",
  "required": ["summary"],
  "properties": {
    "summary": {"type": "string", "pattern": "\\S"}
  }
}`)

	DebateTurnSchema = MustCompile("debate_turn", `{
  "type": "object",
  "required": ["argument"],
  "properties": {
    "argument": {"type": "string", "pattern": "\\S"},
    "targeted_factions": {"type": "array", "items": {"type": "string"}}
  }
}`)

	AmendmentsSchema = MustCompile("amendments", `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["change_summary", "rationale"],
    "properties": {
      "change_summary": {"type": "string", "pattern": "\\S"},
      "rationale": {"type": "string", "pattern": "\\S"}
    }
  }
}`)

	VoteSchema = MustCompile("vote", `{
  "type": "object",
  "required": ["choice", "justification"],
  "properties": {
    "choice": {"type": "string", "enum": ["APPROVE", "REJECT", "ABSTAIN"]},
    "justification": {"type": "string", "pattern": "\\S"}
  }
}`)

	DebateOrderSchema = MustCompile("debate_order", `{
  "type": "object",
  "required": ["faction_order", "reasoning"],
  "properties": {
    "faction_order": {"type": "array", "items": {"type": "string"}},
    "reasoning": {"type": "string"}
  }
}`)

	VetoGrantsSchema = MustCompile("veto_grants", `{
  "type": "object",
  "required": ["factions_with_veto", "reasoning"],
  "properties": {
    "factions_with_veto": {"type": "array", "items": {"type": "string"}},
    "reasoning": {"type": "string"}
  }
}`)
)
