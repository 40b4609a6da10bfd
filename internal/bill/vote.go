package bill

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Choice is a faction's position on a bill.
type Choice string

const (
	Approve Choice = "APPROVE"
	Reject  Choice = "REJECT"
	Abstain Choice = "ABSTAIN"
)

// Valid reports whether c is one of the three ballot options.
func (c Choice) Valid() bool {
	switch c {
	case Approve, Reject, Abstain:
		return true
	}
	return false
}

// ParseChoice accepts APPROVE, REJECT or ABSTAIN in any case.
func ParseChoice(s string) (Choice, error) {
	c := Choice(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return c, nil
}

// Vote is one faction's weighted ballot on a bill version.
type Vote struct {
	id            uuid.UUID
	bill          Ref
	faction       string
	choice        Choice
	weight        float64
	justification string
}

// NewVote validates and returns a vote.
func NewVote(ref Ref, faction string, choice Choice, weight float64, justification string) (*Vote, error) {
	if ref.IsZero() {
		return nil, ErrMissingBillRef
	}
	f, err := requireText("faction", faction)
	if err != nil {
		return nil, err
	}
	if !choice.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}
	if !(weight > 0) {
		return nil, fmt.Errorf("%w: %s has weight %v", ErrNonPositiveWeight, f, weight)
	}
	j, err := requireText("justification", justification)
	if err != nil {
		return nil, err
	}
	return &Vote{
		id:            uuid.New(),
		bill:          ref,
		faction:       f,
		choice:        choice,
		weight:        weight,
		justification: j,
	}, nil
}

func (v *Vote) ID() uuid.UUID         { return v.id }
func (v *Vote) Bill() Ref             { return v.bill }
func (v *Vote) Faction() string       { return v.faction }
func (v *Vote) Choice() Choice        { return v.choice }
func (v *Vote) Weight() float64       { return v.weight }
func (v *Vote) Justification() string { return v.justification }

type voteView struct {
	ID            uuid.UUID `json:"id"`
	Bill          Ref       `json:"bill"`
	Faction       string    `json:"faction"`
	Choice        Choice    `json:"choice"`
	Weight        float64   `json:"weight"`
	Justification string    `json:"justification"`
}

func (v *Vote) MarshalJSON() ([]byte, error) {
	return json.Marshal(voteView{
		ID:            v.id,
		Bill:          v.bill,
		Faction:       v.faction,
		Choice:        v.choice,
		Weight:        v.weight,
		Justification: v.justification,
	})
}
