// Package bill defines the immutable entities a sitting deliberates over:
// bills, amendments, debate statements, votes and decisions.
//
// Every value is validated by its constructor and never changes afterwards.
// Entities refer to a bill only through its Ref (id + version).
package bill

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a bill.
type Status string

const (
	StatusDraft          Status = "DRAFT"
	StatusInDeliberation Status = "IN_DELIBERATION"
	StatusPassed         Status = "PASSED"
	StatusRejected       Status = "REJECTED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInDeliberation, StatusPassed, StatusRejected:
		return true
	}
	return false
}

// Ref identifies one version of one bill.
type Ref struct {
	ID      uuid.UUID `json:"bill_id"`
	Version int       `json:"bill_version"`
}

// IsZero reports whether the ref was never set.
func (r Ref) IsZero() bool {
	return r.ID == uuid.Nil && r.Version == 0
}

func (r Ref) String() string {
	return fmt.Sprintf("%s@v%d", r.ID, r.Version)
}

// Draft holds the raw fields of a bill before validation.
type Draft struct {
	ID               string   `yaml:"id" json:"id,omitempty"`
	Version          int      `yaml:"version" json:"version,omitempty"`
	Title            string   `yaml:"title" json:"title"`
	Body             string   `yaml:"proposal" json:"proposal"`
	Assumptions      []string `yaml:"assumptions" json:"assumptions,omitempty"`
	IntendedOutcomes []string `yaml:"intended_outcomes" json:"intended_outcomes,omitempty"`
	KnownRisks       []string `yaml:"known_risks" json:"known_risks,omitempty"`
	Unknowns         []string `yaml:"unknowns" json:"unknowns,omitempty"`
	Status           Status   `yaml:"status" json:"status,omitempty"`
}

// Bill is a proposal under deliberation.
type Bill struct {
	id               uuid.UUID
	version          int
	title            string
	body             string
	assumptions      []string
	intendedOutcomes []string
	knownRisks       []string
	unknowns         []string
	status           Status
}

// New validates d and returns the bill it describes.
// An empty id gets a fresh random one; an empty status means DRAFT.
func New(d Draft) (*Bill, error) {
	id := uuid.New()
	if s := strings.TrimSpace(d.ID); s != "" {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bill id %q", ErrInvalidID, s)
		}
		id = parsed
	}

	version := d.Version
	if version == 0 {
		version = 1
	}
	if version != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, d.Version)
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title", ErrEmptyText)
	}
	body := strings.TrimSpace(d.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: proposal", ErrEmptyText)
	}

	status := d.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}

	return &Bill{
		id:               id,
		version:          version,
		title:            title,
		body:             body,
		assumptions:      cloneStrings(d.Assumptions),
		intendedOutcomes: cloneStrings(d.IntendedOutcomes),
		knownRisks:       cloneStrings(d.KnownRisks),
		unknowns:         cloneStrings(d.Unknowns),
		status:           status,
	}, nil
}

func (b *Bill) ID() uuid.UUID  { return b.id }
func (b *Bill) Version() int   { return b.version }
func (b *Bill) Title() string  { return b.title }
func (b *Bill) Body() string   { return b.body }
func (b *Bill) Status() Status { return b.status }

// Ref returns the (id, version) pair other entities use to point at b.
func (b *Bill) Ref() Ref {
	return Ref{ID: b.id, Version: b.version}
}

func (b *Bill) Assumptions() []string      { return cloneStrings(b.assumptions) }
func (b *Bill) IntendedOutcomes() []string { return cloneStrings(b.intendedOutcomes) }
func (b *Bill) KnownRisks() []string       { return cloneStrings(b.knownRisks) }
func (b *Bill) Unknowns() []string         { return cloneStrings(b.unknowns) }

// WithStatus returns a copy of b carrying status s. b itself is untouched.
func (b *Bill) WithStatus(s Status) (*Bill, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	c := *b
	c.assumptions = cloneStrings(b.assumptions)
	c.intendedOutcomes = cloneStrings(b.intendedOutcomes)
	c.knownRisks = cloneStrings(b.knownRisks)
	c.unknowns = cloneStrings(b.unknowns)
	c.status = s
	return &c, nil
}

// Draft returns the raw fields of b, suitable for serialization.
func (b *Bill) Draft() Draft {
	return Draft{
		ID:               b.id.String(),
		Version:          b.version,
		Title:            b.title,
		Body:             b.body,
		Assumptions:      cloneStrings(b.assumptions),
		IntendedOutcomes: cloneStrings(b.intendedOutcomes),
		KnownRisks:       cloneStrings(b.knownRisks),
		Unknowns:         cloneStrings(b.unknowns),
		Status:           b.status,
	}
}

// MarshalJSON encodes the bill through its Draft view.
func (b *Bill) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Draft())
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func requireText(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyText, field)
	}
	return v, nil
}
