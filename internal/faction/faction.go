// Package faction provides the participants that speak, debate, amend and vote
// during a sitting.
//
// A faction is configuration: a name, a voting weight and an ideology. All
// content is produced through the structured-output gateway. When the gateway
// gives up, each operation degrades to a neutral outcome instead of failing
// the sitting.
package faction

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/debate"
	"github.com/vinayprograms/parliament/internal/structured"
)

// Turn is a debate contribution.
type Turn = debate.Turn

// Draft is a proposed change to the bill before it becomes a bill.Amendment.
type Draft struct {
	Summary   string
	Rationale string
}

// Ballot is a faction's vote before weighting.
type Ballot struct {
	Choice        bill.Choice
	Justification string
	Degraded      bool
}

// Stages reported in a Degradation.
const (
	StageStatement  = "statement"
	StageDebate     = "debate"
	StageAmendments = "amendments"
	StageVote       = "vote"
)

// Degradation records an operation that fell back to its neutral outcome.
type Degradation struct {
	Faction string
	Stage   string
	Reason  string
}

func (d Degradation) String() string {
	switch d.Stage {
	case StageStatement:
		return d.Faction + " gave a placeholder statement due to generation failure"
	case StageDebate:
		return d.Faction + " passed in debate due to generation failure"
	case StageAmendments:
		return d.Faction + " proposed no amendments due to generation failure"
	case StageVote:
		return d.Faction + " abstained due to generation failure"
	}
	return d.Faction + " degraded during " + d.Stage
}

// Participant is anything that can sit in the chamber.
type Participant interface {
	Name() string
	Weight() float64
	Statement(ctx context.Context, b *bill.Bill) string
	DebateTurn(ctx context.Context, b *bill.Bill, round int, participants []string, transcript []*bill.Statement) *Turn
	ProposeAmendments(ctx context.Context, b *bill.Bill) []Draft
	CastVote(ctx context.Context, b *bill.Bill, amendments []*bill.Amendment) Ballot
}

// Reporter is implemented by participants that report degradations.
type Reporter interface {
	SetDegradeHook(func(Degradation))
}

// Faction is a gateway-backed participant.
type Faction struct {
	profile Profile
	gateway structured.Generator
	logger  *logging.Logger

	mu        sync.Mutex
	onDegrade func(Degradation)
}

// New creates a faction. A nil gateway makes every operation degrade.
func New(profile Profile, gateway structured.Generator) (*Faction, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		return nil, ErrUnnamedFaction
	}
	if !(profile.Weight > 0) {
		return nil, fmt.Errorf("%w: %s has %v", ErrNonPositiveWeight, profile.Name, profile.Weight)
	}
	return &Faction{
		profile: profile,
		gateway: gateway,
		logger:  logging.New().WithComponent("faction"),
	}, nil
}

// Build creates one faction per roster entry, in roster order.
func Build(r *Roster, gateway structured.Generator) ([]*Faction, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := make([]*Faction, 0, len(r.Factions))
	for _, p := range r.Factions {
		f, err := New(p, gateway)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (f *Faction) Name() string { return f.profile.Name }
func (f *Faction) Weight() float64 { return f.profile.Weight }
func (f *Faction) Profile() Profile { return f.profile }
func (f *Faction) Digest() string { return f.profile.Digest() }

// SetDegradeHook registers fn to receive degradations. Nil disables reporting.
func (f *Faction) SetDegradeHook(fn func(Degradation)) {
	f.mu.Lock()
	f.onDegrade = fn
	f.mu.Unlock()
}

func (f *Faction) degrade(stage string, err error) {
	f.logger.Warn("generation failed, degrading", map[string]interface{}{
		"faction": f.profile.Name,
		"stage":   stage,
		"error":   err.Error(),
	})
	f.mu.Lock()
	fn := f.onDegrade
	f.mu.Unlock()
	if fn != nil {
		fn(Degradation{Faction: f.profile.Name, Stage: stage, Reason: err.Error()})
	}
}

func (f *Faction) generate(ctx context.Context, req structured.Request) (*structured.Result, error) {
	if f.gateway == nil {
		return nil, fmt.Errorf("%w: no gateway configured", structured.ErrExhausted)
	}
	return f.gateway.Generate(ctx, req)
}

// Statement returns the faction's opening position on b.
func (f *Faction) Statement(ctx context.Context, b *bill.Bill) string {
	res, err := f.generate(ctx, structured.Request{
		Name:   "statement",
		System: f.identity(),
		User:   fmt.Sprintf("%s\nGive your faction's opening position on this bill in a few sentences.", billText(b)),
		Schema: structured.StatementSchema,
		Policy: structured.FailSoft,
	})
	var out struct {
		Summary string `json:"summary"`
	}
	if err == nil {
		err = res.Decode(&out)
	}
	if err != nil {
		f.degrade(StageStatement, err)
		return fmt.Sprintf("[%s] Unable to generate structured statement due to LLM failure.", f.profile.Name)
	}
	return strings.TrimSpace(out.Summary)
}

// DebateTurn returns an argument for this round, or nil to pass.
func (f *Faction) DebateTurn(ctx context.Context, b *bill.Bill, round int, participants []string, transcript []*bill.Statement) *Turn {
	var sb strings.Builder
	sb.WriteString(billText(b))
	fmt.Fprintf(&sb, "\nThis is debate round %d.\n", round)
	fmt.Fprintf(&sb, "Factions in the chamber: %s.\n\n", strings.Join(participants, ", "))
	if len(transcript) == 0 {
		sb.WriteString("No one has spoken yet.\n")
	} else {
		sb.WriteString("Debate so far:\n")
		for _, s := range transcript {
			fmt.Fprintf(&sb, "- [round %d] %s", s.Round(), s.Speaker())
			if !s.AddressesAll() {
				fmt.Fprintf(&sb, " (to %s)", strings.Join(s.Targets(), ", "))
			}
			fmt.Fprintf(&sb, ": %s\n", s.Argument())
		}
	}
	sb.WriteString("\nMake one argument. Respond to earlier points where relevant. ")
	sb.WriteString("List in targeted_factions the factions you are addressing, or leave it empty to address everyone.\n")

	res, err := f.generate(ctx, structured.Request{
		Name:   "debate_turn",
		System: f.identity(),
		User:   sb.String(),
		Schema: structured.DebateTurnSchema,
		Policy: structured.FailSoft,
	})
	var out struct {
		Argument string   `json:"argument"`
		Targets  []string `json:"targeted_factions"`
	}
	if err == nil {
		err = res.Decode(&out)
	}
	if err != nil {
		f.degrade(StageDebate, err)
		return nil
	}
	return &Turn{Argument: strings.TrimSpace(out.Argument), Targets: out.Targets}
}

// ProposeAmendments returns the changes the faction wants. Empty means none.
func (f *Faction) ProposeAmendments(ctx context.Context, b *bill.Bill) []Draft {
	res, err := f.generate(ctx, structured.Request{
		Name:   "amendments",
		System: f.identity(),
		User: billText(b) + "\nIf changes are needed for your faction to support this bill, " +
			"return a JSON list of amendments. If no amendments are needed, return [].\n",
		Schema: structured.AmendmentsSchema,
		Policy: structured.FailSoft,
	})
	var out []struct {
		Summary   string `json:"change_summary"`
		Rationale string `json:"rationale"`
	}
	if err == nil {
		err = res.Decode(&out)
	}
	if err != nil {
		f.degrade(StageAmendments, err)
		return nil
	}
	drafts := make([]Draft, 0, len(out))
	for _, a := range out {
		drafts = append(drafts, Draft{Summary: strings.TrimSpace(a.Summary), Rationale: strings.TrimSpace(a.Rationale)})
	}
	return drafts
}

// CastVote decides on b given the proposed amendments. A generation failure
// yields a degraded ABSTAIN.
func (f *Faction) CastVote(ctx context.Context, b *bill.Bill, amendments []*bill.Amendment) Ballot {
	var sb strings.Builder
	sb.WriteString(billText(b))
	if len(amendments) > 0 {
		sb.WriteString("\nProposed amendments:\n")
		for _, a := range amendments {
			fmt.Fprintf(&sb, "- %s (from %s): %s\n", a.Summary(), a.Proposer(), a.Rationale())
		}
	}
	sb.WriteString("\nCast your vote: APPROVE, REJECT or ABSTAIN, with a short justification.\n")

	res, err := f.generate(ctx, structured.Request{
		Name:   "vote",
		System: f.identity() + "\nYou must vote strictly according to your faction's ideology.",
		User:   sb.String(),
		Schema: structured.VoteSchema,
		Policy: structured.FailSoft,
	})
	var out struct {
		Choice        string `json:"choice"`
		Justification string `json:"justification"`
	}
	if err == nil {
		err = res.Decode(&out)
	}
	var choice bill.Choice
	if err == nil {
		choice, err = bill.ParseChoice(out.Choice)
	}
	if err != nil {
		f.degrade(StageVote, err)
		return Ballot{
			Choice:        bill.Abstain,
			Justification: "LLM failure prevented informed decision: " + err.Error(),
			Degraded:      true,
		}
	}
	return Ballot{Choice: choice, Justification: strings.TrimSpace(out.Justification)}
}

func (f *Faction) identity() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You represent the %s faction in a deliberative parliament.\n", f.profile.Name)
	fmt.Fprintf(&sb, "Goal: %s\n", f.profile.Ideology.Goal)
	if len(f.profile.Ideology.Priorities) > 0 {
		fmt.Fprintf(&sb, "Priorities: %s\n", strings.Join(f.profile.Ideology.Priorities, "; "))
	}
	if len(f.profile.Ideology.RedLines) > 0 {
		fmt.Fprintf(&sb, "Red lines: %s\n", strings.Join(f.profile.Ideology.RedLines, "; "))
	}
	return sb.String()
}

func billText(b *bill.Bill) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bill: %s\n\n%s\n", b.Title(), b.Body())
	section(&sb, "Assumptions", b.Assumptions())
	section(&sb, "Intended outcomes", b.IntendedOutcomes())
	section(&sb, "Known risks", b.KnownRisks())
	section(&sb, "Unknowns", b.Unknowns())
	return sb.String()
}

func section(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
}
