package bill

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a bill from a YAML file.
func LoadFile(path string) (*Bill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bill: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML bill document. Unknown fields are rejected.
func Parse(data []byte) (*Bill, error) {
	var d Draft
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse bill: %w", err)
	}
	return New(d)
}
