package faction

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed factions.yaml
var defaultRoster []byte

// Roster errors.
var (
	ErrEmptyRoster       = errors.New("roster has no factions")
	ErrDuplicateFaction  = errors.New("duplicate faction")
	ErrNonPositiveWeight = errors.New("faction weight must be positive")
	ErrUnnamedFaction    = errors.New("faction has no name")
)

// Ideology is the configuration that shapes a faction's positions.
type Ideology struct {
	Goal       string   `yaml:"goal"`
	Priorities []string `yaml:"priorities"`
	RedLines   []string `yaml:"red_lines"`
}

// Profile is one faction's identity, voting weight and ideology.
type Profile struct {
	Name     string   `yaml:"name"`
	Weight   float64  `yaml:"weight"`
	Ideology Ideology `yaml:"ideology"`
}

// Digest summarises the goal and red lines for veto delegation.
func (p Profile) Digest() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s", p.Ideology.Goal)
	if len(p.Ideology.RedLines) > 0 {
		fmt.Fprintf(&sb, " Red lines: %s.", strings.Join(p.Ideology.RedLines, "; "))
	}
	return sb.String()
}

// Roster is the ordered list of factions seated in the chamber.
type Roster struct {
	Factions []Profile `yaml:"factions"`
}

// DefaultRoster returns the built-in five-faction chamber.
func DefaultRoster() *Roster {
	r, err := ParseRoster(defaultRoster)
	if err != nil {
		panic(fmt.Sprintf("embedded roster: %v", err))
	}
	return r
}

// LoadRoster reads a roster from a YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes and validates a YAML roster.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks names are present and unique and weights are positive.
func (r *Roster) Validate() error {
	if len(r.Factions) == 0 {
		return ErrEmptyRoster
	}
	seen := make(map[string]bool, len(r.Factions))
	for i, p := range r.Factions {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("%w: entry %d", ErrUnnamedFaction, i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateFaction, name)
		}
		seen[name] = true
		if !(p.Weight > 0) {
			return fmt.Errorf("%w: %s has %v", ErrNonPositiveWeight, name, p.Weight)
		}
	}
	return nil
}

// Names returns faction names in roster order.
func (r *Roster) Names() []string {
	out := make([]string, len(r.Factions))
	for i, p := range r.Factions {
		out[i] = strings.TrimSpace(p.Name)
	}
	return out
}

// Digests maps each faction to its Digest.
func (r *Roster) Digests() map[string]string {
	out := make(map[string]string, len(r.Factions))
	for _, p := range r.Factions {
		out[strings.TrimSpace(p.Name)] = p.Digest()
	}
	return out
}
