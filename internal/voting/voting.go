// Package voting turns a ballot into a Decision.
//
// Evaluate is a pure function of the bill, the votes and the veto holders.
// It owns no state and is safe for concurrent use.
package voting

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vinayprograms/parliament/internal/bill"
)

// Legitimacy errors. A decision is never produced from a ballot that raises one.
var (
	ErrEmptyBallot   = errors.New("cannot evaluate an empty ballot")
	ErrWrongBill     = errors.New("vote references a different bill")
	ErrWrongVersion  = errors.New("vote references a different bill version")
	ErrDuplicateVote = errors.New("faction has already voted")
)

// Totals holds the summed weight per choice.
type Totals struct {
	Approve float64
	Reject  float64
	Abstain float64
}

// Tally sums weights per choice without checking legitimacy.
func Tally(votes []*bill.Vote) Totals {
	var t Totals
	for _, v := range votes {
		switch v.Choice() {
		case bill.Approve:
			t.Approve += v.Weight()
		case bill.Reject:
			t.Reject += v.Weight()
		case bill.Abstain:
			t.Abstain += v.Weight()
		}
	}
	return t
}

// Evaluate validates every vote against b, sums the weights and applies the
// veto rule: a REJECT from any holder in veto fails the bill outright.
// Otherwise the bill passes only if approve weight strictly exceeds reject weight.
func Evaluate(b *bill.Bill, votes []*bill.Vote, veto []string) (*bill.Decision, error) {
	return evaluate(b, votes, veto, time.Now().UTC())
}

func evaluate(b *bill.Bill, votes []*bill.Vote, veto []string, at time.Time) (*bill.Decision, error) {
	if len(votes) == 0 {
		return nil, ErrEmptyBallot
	}

	holders := make(map[string]bool, len(veto))
	for _, f := range veto {
		holders[f] = true
	}

	ref := b.Ref()
	seen := make(map[string]bool, len(votes))
	var vetoedBy []string

	for i, v := range votes {
		if v == nil {
			return nil, fmt.Errorf("vote %d is nil", i)
		}
		if v.Bill().ID != ref.ID {
			return nil, fmt.Errorf("%w: %s voted on %s, expected %s", ErrWrongBill, v.Faction(), v.Bill().ID, ref.ID)
		}
		if v.Bill().Version != ref.Version {
			return nil, fmt.Errorf("%w: %s voted on v%d, expected v%d", ErrWrongVersion, v.Faction(), v.Bill().Version, ref.Version)
		}
		if seen[v.Faction()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVote, v.Faction())
		}
		seen[v.Faction()] = true

		if v.Choice() == bill.Reject && holders[v.Faction()] {
			vetoedBy = append(vetoedBy, v.Faction())
		}
	}

	totals := Tally(votes)
	passed := len(vetoedBy) == 0 && totals.Approve > totals.Reject

	return bill.NewDecision(bill.DecisionDraft{
		Bill:      ref,
		BillTitle: b.Title(),
		Passed:    passed,
		Approve:   totals.Approve,
		Reject:    totals.Reject,
		Abstain:   totals.Abstain,
		VetoedBy:  vetoedBy,
		Votes:     votes,
		DecidedAt: at,
		Summary:   Summarize(passed, totals, vetoedBy),
	})
}

// Summarize renders the one-line outcome recorded on a decision.
func Summarize(passed bool, t Totals, vetoedBy []string) string {
	counts := fmt.Sprintf("Approve: %s, Reject: %s", FormatWeight(t.Approve), FormatWeight(t.Reject))
	switch {
	case len(vetoedBy) > 0:
		return fmt.Sprintf("Bill REJECTED - Vetoed by: %s (%s)", strings.Join(vetoedBy, ", "), counts)
	case passed:
		return fmt.Sprintf("Bill PASSED - %s, Abstain: %s", counts, FormatWeight(t.Abstain))
	default:
		return fmt.Sprintf("Bill REJECTED - %s, Abstain: %s", counts, FormatWeight(t.Abstain))
	}
}

// FormatWeight prints a weight with at most two decimals and no trailing zeros.
func FormatWeight(w float64) string {
	return strconv.FormatFloat(math.Round(w*100)/100, 'f', -1, 64)
}
