package voting

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/vinayprograms/parliament/internal/bill"
)

var chamber = []string{"Efficiency", "Safety", "Equity", "Innovation", "Compliance"}

var choices = []bill.Choice{bill.Approve, bill.Reject, bill.Abstain}

// ballot builds one vote per chamber member from generated choices and weights.
func ballot(b *bill.Bill, picks []int, weights []float64) []*bill.Vote {
	votes := make([]*bill.Vote, 0, len(chamber))
	for i, name := range chamber {
		v, err := bill.NewVote(b.Ref(), name, choices[picks[i]], weights[i], "generated")
		if err != nil {
			panic(err)
		}
		votes = append(votes, v)
	}
	return votes
}

func vetoSet(flags []bool) []string {
	var out []string
	for i, f := range flags {
		if f {
			out = append(out, chamber[i])
		}
	}
	return out
}

func ballotGens() []gopter.Gen {
	n := len(chamber)
	return []gopter.Gen{
		gen.SliceOfN(n, gen.IntRange(0, 2)),
		gen.SliceOfN(n, gen.Float64Range(0.1, 3.0)),
		gen.SliceOfN(n, gen.Bool()),
	}
}

// Property: identical inputs always produce identical outcomes.
func TestEvaluateDeterminism(t *testing.T) {
	b := testBill(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	g := ballotGens()
	properties.Property("evaluate is deterministic", prop.ForAll(
		func(picks []int, weights []float64, flags []bool) bool {
			votes := ballot(b, picks, weights)
			veto := vetoSet(flags)
			d1, err1 := Evaluate(b, votes, veto)
			d2, err2 := Evaluate(b, votes, veto)
			if err1 != nil || err2 != nil {
				return false
			}
			return d1.Passed() == d2.Passed() &&
				d1.Approve() == d2.Approve() &&
				d1.Reject() == d2.Reject() &&
				d1.Abstain() == d2.Abstain() &&
				d1.Summary() == d2.Summary()
		},
		g[0], g[1], g[2],
	))

	properties.TestingRun(t)
}

// Property: a REJECT from any veto holder fails the bill regardless of weights.
func TestEvaluateVetoAbsolute(t *testing.T) {
	b := testBill(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	g := ballotGens()
	properties.Property("veto reject always fails", prop.ForAll(
		func(picks []int, weights []float64, flags []bool) bool {
			d, err := Evaluate(b, ballot(b, picks, weights), vetoSet(flags))
			if err != nil {
				return false
			}
			var expected []string
			for i := range chamber {
				if flags[i] && choices[picks[i]] == bill.Reject {
					expected = append(expected, chamber[i])
				}
			}
			got := d.VetoedBy()
			if len(got) != len(expected) {
				return false
			}
			for i := range got {
				if got[i] != expected[i] {
					return false
				}
			}
			return len(expected) == 0 || !d.Passed()
		},
		g[0], g[1], g[2],
	))

	properties.TestingRun(t)
}

// Property: without a veto, the bill passes iff approve strictly exceeds reject.
func TestEvaluateMajorityRule(t *testing.T) {
	b := testBill(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	g := ballotGens()
	properties.Property("strict majority of weight passes", prop.ForAll(
		func(picks []int, weights []float64) bool {
			d, err := Evaluate(b, ballot(b, picks, weights), nil)
			if err != nil {
				return false
			}
			return d.Passed() == (d.Approve() > d.Reject())
		},
		g[0], g[1],
	))

	properties.Property("totals account for every vote", prop.ForAll(
		func(picks []int, weights []float64) bool {
			d, err := Evaluate(b, ballot(b, picks, weights), nil)
			if err != nil {
				return false
			}
			sum := 0.0
			for _, w := range weights {
				sum += w
			}
			return math.Abs(d.Approve()+d.Reject()+d.Abstain()-sum) < 1e-9
		},
		g[0], g[1],
	))

	properties.TestingRun(t)
}

// Property: equal approve and reject weight never passes.
func TestEvaluateTieRejects(t *testing.T) {
	b := testBill(t)
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("tie rejects", prop.ForAll(
		func(w float64, abstain float64) bool {
			ref := b.Ref()
			yes, _ := bill.NewVote(ref, "Efficiency", bill.Approve, w, "for")
			no, _ := bill.NewVote(ref, "Safety", bill.Reject, w, "against")
			maybe, _ := bill.NewVote(ref, "Equity", bill.Abstain, abstain, "unsure")
			d, err := Evaluate(b, []*bill.Vote{yes, no, maybe}, nil)
			return err == nil && !d.Passed()
		},
		gen.Float64Range(0.1, 10),
		gen.Float64Range(0.1, 10),
	))

	properties.TestingRun(t)
}
