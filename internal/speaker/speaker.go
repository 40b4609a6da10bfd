// Package speaker enforces parliamentary procedure for one bill.
//
// The Authority owns the phase cursor, the statement-round counter, the debate
// order and the set of veto holders. It has procedural authority but no
// opinion: the two strategic calls it may delegate to a model (debate order,
// veto grants) always fall back to a safe default.
package speaker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/structured"
)

// Phase is a step of the procedure.
type Phase string

const (
	PhaseIntroduction      Phase = "INTRODUCTION"
	PhaseFactionStatements Phase = "FACTION_STATEMENTS"
	PhaseDebate            Phase = "DEBATE"
	PhaseAmendments        Phase = "AMENDMENTS"
	PhaseVoting            Phase = "VOTING"
	PhaseDecision          Phase = "DECISION"
)

// phaseOrder is the fixed procedure. Each phase is visited at most once.
var phaseOrder = []Phase{
	PhaseIntroduction,
	PhaseFactionStatements,
	PhaseDebate,
	PhaseAmendments,
	PhaseVoting,
	PhaseDecision,
}

// Phases returns the procedure in order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Action is a category of chamber activity gated by phase.
type Action string

const (
	ActionIntroduce Action = "introduce"
	ActionStatement Action = "statement"
	ActionDebate    Action = "debate"
	ActionAmend     Action = "amend"
	ActionVote      Action = "vote"
)

var allowed = map[Phase]Action{
	PhaseIntroduction:      ActionIntroduce,
	PhaseFactionStatements: ActionStatement,
	PhaseDebate:            ActionDebate,
	PhaseAmendments:        ActionAmend,
	PhaseVoting:            ActionVote,
}

// Procedural errors.
var (
	ErrNotDraft      = errors.New("only draft bills may enter parliament")
	ErrConcluded     = errors.New("parliament has concluded")
	ErrNotVoting     = errors.New("cannot conclude before voting")
	ErrNotDebate     = errors.New("debate order can only be set during debate")
	ErrInvalidBudget = errors.New("round budgets must not be negative")
)

// Config holds the round budgets.
type Config struct {
	StatementRounds int
	DebateRounds    int
}

// DefaultConfig returns the standard budgets: three statement rounds, two debate rounds.
func DefaultConfig() Config {
	return Config{StatementRounds: 3, DebateRounds: 2}
}

// Option configures an Authority.
type Option func(*Authority)

// WithGateway enables delegation of debate order and veto grants.
func WithGateway(g structured.Generator) Option {
	return func(a *Authority) { a.gateway = g }
}

// WithTransitionHook registers fn to be called after every phase change.
func WithTransitionHook(fn func(from, to Phase, forced bool)) Option {
	return func(a *Authority) { a.onTransition = fn }
}

// Authority is the procedural referee for one sitting.
type Authority struct {
	mu sync.Mutex

	bill           *bill.Bill
	cfg            Config
	phase          Phase
	statementRound int
	escalated      bool
	debateOrder    []string
	veto           []string

	gateway      structured.Generator
	onTransition func(from, to Phase, forced bool)
	logger       *logging.Logger
}

// New seats a DRAFT bill and starts in INTRODUCTION.
func New(b *bill.Bill, cfg Config, opts ...Option) (*Authority, error) {
	if b == nil || b.Status() != bill.StatusDraft {
		status := "nil"
		if b != nil {
			status = string(b.Status())
		}
		return nil, fmt.Errorf("%w: status is %s", ErrNotDraft, status)
	}
	if cfg.StatementRounds < 0 || cfg.DebateRounds < 0 {
		return nil, fmt.Errorf("%w: statement=%d debate=%d", ErrInvalidBudget, cfg.StatementRounds, cfg.DebateRounds)
	}
	a := &Authority{
		bill:   b,
		cfg:    cfg,
		phase:  PhaseIntroduction,
		logger: logging.New().WithComponent("speaker"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Bill returns the bill under deliberation.
func (a *Authority) Bill() *bill.Bill { return a.bill }

// Config returns the round budgets.
func (a *Authority) Config() Config { return a.cfg }

// Phase returns the current phase.
func (a *Authority) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// StatementRound returns how many times FACTION_STATEMENTS has been entered.
func (a *Authority) StatementRound() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statementRound
}

// Escalated reports whether the statement budget forced an early vote.
func (a *Authority) Escalated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.escalated
}

// Advance moves to the next phase and returns it.
//
// Entering FACTION_STATEMENTS consumes a statement round. When that exceeds
// the budget the chamber goes straight to VOTING on the same call, skipping
// DEBATE and AMENDMENTS.
func (a *Authority) Advance() (Phase, error) {
	a.mu.Lock()
	from := a.phase
	if from == PhaseDecision {
		a.mu.Unlock()
		return from, ErrConcluded
	}

	to := phaseOrder[indexOf(from)+1]
	forced := false
	if to == PhaseFactionStatements {
		a.statementRound++
		if a.statementRound > a.cfg.StatementRounds {
			to = PhaseVoting
			forced = true
			a.escalated = true
		}
	}
	a.phase = to
	round := a.statementRound
	hook := a.onTransition
	a.mu.Unlock()

	fields := map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	}
	if forced {
		fields["statement_round"] = round
		fields["budget"] = a.cfg.StatementRounds
		a.logger.Warn("statement budget exceeded, forcing vote", fields)
	} else {
		a.logger.Info("phase advanced", fields)
	}
	if hook != nil {
		hook(from, to, forced)
	}
	return to, nil
}

// Allowed reports whether an action may be taken in the current phase.
func (a *Authority) Allowed(action Action) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	want, ok := allowed[a.phase]
	return ok && want == action
}

// Conclude locks the chamber after voting.
func (a *Authority) Conclude() error {
	a.mu.Lock()
	from := a.phase
	if from != PhaseVoting {
		a.mu.Unlock()
		return fmt.Errorf("%w: phase is %s", ErrNotVoting, from)
	}
	a.phase = PhaseDecision
	hook := a.onTransition
	a.mu.Unlock()

	a.logger.Info("parliament concluded", map[string]interface{}{"from": string(from)})
	if hook != nil {
		hook(from, PhaseDecision, false)
	}
	return nil
}

// SetDebateOrder stores a copy of order. Only legal during DEBATE.
func (a *Authority) SetDebateOrder(order []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseDebate {
		return fmt.Errorf("%w: phase is %s", ErrNotDebate, a.phase)
	}
	a.debateOrder = append([]string(nil), order...)
	return nil
}

// DebateOrder returns a copy of the current debate order.
func (a *Authority) DebateOrder() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.debateOrder...)
}

// AssignVeto grants veto power. Granting twice is a no-op.
func (a *Authority) AssignVeto(faction string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.veto {
		if f == faction {
			return
		}
	}
	a.veto = append(a.veto, faction)
}

// RevokeVeto removes veto power. Revoking an absent grant is a no-op.
func (a *Authority) RevokeVeto(faction string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, f := range a.veto {
		if f == faction {
			a.veto = append(a.veto[:i], a.veto[i+1:]...)
			return
		}
	}
}

// VetoFactions returns a copy of the veto holders in grant order.
func (a *Authority) VetoFactions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.veto...)
}

func indexOf(p Phase) int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}
