package bill

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AmendmentDraft holds the raw fields of an amendment before validation.
type AmendmentDraft struct {
	Bill      Ref
	Proposer  string
	Summary   string
	Rationale string

	// Accepted must be nil. Acceptance is decided by the chamber, never the proposer.
	Accepted *bool
}

// Amendment is a proposed change to a specific bill version.
type Amendment struct {
	id        uuid.UUID
	bill      Ref
	proposer  string
	summary   string
	rationale string
	accepted  *bool
}

// NewAmendment validates d and returns the amendment.
func NewAmendment(d AmendmentDraft) (*Amendment, error) {
	if d.Bill.IsZero() {
		return nil, ErrMissingBillRef
	}
	proposer, err := requireText("proposer", d.Proposer)
	if err != nil {
		return nil, err
	}
	summary, err := requireText("change summary", d.Summary)
	if err != nil {
		return nil, err
	}
	rationale, err := requireText("rationale", d.Rationale)
	if err != nil {
		return nil, err
	}
	if d.Accepted != nil {
		return nil, fmt.Errorf("%w: proposed by %s", ErrPrematureDecision, proposer)
	}
	return &Amendment{
		id:        uuid.New(),
		bill:      d.Bill,
		proposer:  proposer,
		summary:   summary,
		rationale: rationale,
	}, nil
}

func (a *Amendment) ID() uuid.UUID     { return a.id }
func (a *Amendment) Bill() Ref         { return a.bill }
func (a *Amendment) Proposer() string  { return a.proposer }
func (a *Amendment) Summary() string   { return a.summary }
func (a *Amendment) Rationale() string { return a.rationale }

// Accepted is nil until the chamber rules on the amendment.
func (a *Amendment) Accepted() *bool {
	if a.accepted == nil {
		return nil
	}
	v := *a.accepted
	return &v
}

type amendmentView struct {
	ID        uuid.UUID `json:"id"`
	Bill      Ref       `json:"bill"`
	Proposer  string    `json:"proposer"`
	Summary   string    `json:"change_summary"`
	Rationale string    `json:"rationale"`
	Accepted  *bool     `json:"accepted"`
}

func (a *Amendment) MarshalJSON() ([]byte, error) {
	return json.Marshal(amendmentView{
		ID:        a.id,
		Bill:      a.bill,
		Proposer:  a.proposer,
		Summary:   a.summary,
		Rationale: a.rationale,
		Accepted:  a.accepted,
	})
}
