package structured

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern matches the first ``` fenced block, with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n?(.*?)```")

// Unwrap returns the payload of a model response: the inner content of the
// first fenced code block if there is one, otherwise the whole trimmed text.
func Unwrap(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// parse unwraps text, decodes it as JSON and validates it against schema.
func parse(text string, schema *Schema) (interface{}, error) {
	payload := Unwrap(text)
	if payload == "" {
		return nil, fmt.Errorf("empty response")
	}
	var v interface{}
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if schema != nil {
		if err := schema.Validate(v); err != nil {
			return nil, fmt.Errorf("schema %s: %w", schema.Name(), err)
		}
	}
	return v, nil
}
