package bill

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DecisionDraft holds the raw fields of a decision before validation.
type DecisionDraft struct {
	Bill      Ref
	BillTitle string
	Passed    bool
	Approve   float64
	Reject    float64
	Abstain   float64
	VetoedBy  []string
	Votes     []*Vote
	DecidedAt time.Time
	Summary   string
}

// Decision is the final outcome of a vote on one bill version.
type Decision struct {
	id        uuid.UUID
	bill      Ref
	billTitle string
	passed    bool
	approve   float64
	reject    float64
	abstain   float64
	vetoedBy  []string
	votes     []*Vote
	decidedAt time.Time
	summary   string
}

// NewDecision validates d and returns the decision.
func NewDecision(d DecisionDraft) (*Decision, error) {
	if d.Bill.IsZero() {
		return nil, ErrMissingBillRef
	}
	if d.Approve < 0 || d.Reject < 0 || d.Abstain < 0 {
		return nil, fmt.Errorf("%w: approve=%v reject=%v abstain=%v", ErrNegativeTotal, d.Approve, d.Reject, d.Abstain)
	}
	if len(d.Votes) == 0 {
		return nil, ErrNoVotes
	}
	summary := strings.TrimSpace(d.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: summary", ErrEmptyText)
	}
	at := d.DecidedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	votes := make([]*Vote, len(d.Votes))
	copy(votes, d.Votes)

	return &Decision{
		id:        uuid.New(),
		bill:      d.Bill,
		billTitle: d.BillTitle,
		passed:    d.Passed,
		approve:   d.Approve,
		reject:    d.Reject,
		abstain:   d.Abstain,
		vetoedBy:  cloneStrings(d.VetoedBy),
		votes:     votes,
		decidedAt: at,
		summary:   summary,
	}, nil
}

func (d *Decision) ID() uuid.UUID        { return d.id }
func (d *Decision) Bill() Ref            { return d.bill }
func (d *Decision) BillTitle() string    { return d.billTitle }
func (d *Decision) Passed() bool         { return d.passed }
func (d *Decision) Approve() float64     { return d.approve }
func (d *Decision) Reject() float64      { return d.reject }
func (d *Decision) Abstain() float64     { return d.abstain }
func (d *Decision) VetoedBy() []string   { return cloneStrings(d.vetoedBy) }
func (d *Decision) DecidedAt() time.Time { return d.decidedAt }
func (d *Decision) Summary() string      { return d.summary }

// Vetoed reports whether at least one veto holder rejected the bill.
func (d *Decision) Vetoed() bool {
	return len(d.vetoedBy) > 0
}

// Votes returns the ballots considered, in the order they were evaluated.
func (d *Decision) Votes() []*Vote {
	out := make([]*Vote, len(d.votes))
	copy(out, d.votes)
	return out
}

// Status maps the outcome onto a bill status.
func (d *Decision) Status() Status {
	if d.passed {
		return StatusPassed
	}
	return StatusRejected
}

type decisionView struct {
	ID        uuid.UUID `json:"id"`
	Bill      Ref       `json:"bill"`
	BillTitle string    `json:"bill_title,omitempty"`
	Passed    bool      `json:"passed"`
	Approve   float64   `json:"approve_weight"`
	Reject    float64   `json:"reject_weight"`
	Abstain   float64   `json:"abstain_weight"`
	VetoedBy  []string  `json:"vetoed_by"`
	Votes     []*Vote   `json:"votes"`
	DecidedAt time.Time `json:"decided_at"`
	Summary   string    `json:"summary"`
}

func (d *Decision) MarshalJSON() ([]byte, error) {
	vetoed := d.vetoedBy
	if vetoed == nil {
		vetoed = []string{}
	}
	return json.Marshal(decisionView{
		ID:        d.id,
		Bill:      d.bill,
		BillTitle: d.billTitle,
		Passed:    d.passed,
		Approve:   d.approve,
		Reject:    d.reject,
		Abstain:   d.abstain,
		VetoedBy:  vetoed,
		Votes:     d.votes,
		DecidedAt: d.decidedAt,
		Summary:   d.summary,
	})
}
