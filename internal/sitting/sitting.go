// Package sitting drives one bill through the whole parliamentary procedure.
//
// A Runner owns nothing but configuration. Each Run seats a fresh Speaker
// authority, collects opening statements, runs the debate, gathers
// amendments, takes the vote and evaluates the decision. Faction failures
// degrade and are reported; procedural and legitimacy failures abort.
package sitting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/debate"
	"github.com/vinayprograms/parliament/internal/faction"
	"github.com/vinayprograms/parliament/internal/session"
	"github.com/vinayprograms/parliament/internal/speaker"
	"github.com/vinayprograms/parliament/internal/structured"
	"github.com/vinayprograms/parliament/internal/voting"
	"golang.org/x/sync/errgroup"
)

// Runner configuration errors.
var (
	ErrNoParticipants   = errors.New("sitting has no participants")
	ErrDuplicateFaction = errors.New("duplicate participant")
	ErrUnknownFaction   = errors.New("unknown faction")
	ErrInvalidWeight    = errors.New("participant weight must be positive")
)

// Degradation is a faction operation that fell back to its neutral outcome.
type Degradation = faction.Degradation

// Config holds runner configuration.
type Config struct {
	Procedure speaker.Config

	// Parallel collects statements, amendments and votes concurrently, at
	// most Concurrency at a time. Debate is always sequential.
	Parallel    bool
	Concurrency int

	// DelegateOrder and DelegateVeto hand those rulings to Gateway.
	DelegateOrder bool
	DelegateVeto  bool
	// StaticVeto is used when DelegateVeto is off or there is no Gateway.
	StaticVeto []string
	Gateway    structured.Generator

	// Journal receives every step of the sitting. Nil disables journaling.
	Journal *session.Session
}

// Result is everything a sitting produced.
type Result struct {
	Bill         *bill.Bill
	Statements   []*bill.Statement // opening statements, roster order
	DebateOrder  []string
	Transcript   []*bill.Statement
	Amendments   []*bill.Amendment
	Veto         []string
	Votes        []*bill.Vote
	Decision     *bill.Decision
	Degradations []Degradation
	Escalated    bool
	Skipped      []speaker.Phase
}

// Runner runs sittings for a fixed chamber.
type Runner struct {
	cfg          Config
	participants []faction.Participant
	logger       *logging.Logger

	OnPhase       func(from, to speaker.Phase, forced bool)
	OnStatement   func(*bill.Statement)
	OnDebate      func(*bill.Statement)
	OnAmendment   func(*bill.Amendment)
	OnVote        func(*bill.Vote)
	OnDecision    func(*bill.Decision)
	OnDegradation func(Degradation)
}

// New validates the chamber and configuration.
func New(cfg Config, participants []faction.Participant) (*Runner, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p.Name()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFaction, p.Name())
		}
		seen[p.Name()] = true
		if !(p.Weight() > 0) {
			return nil, fmt.Errorf("%w: %s has %v", ErrInvalidWeight, p.Name(), p.Weight())
		}
	}
	for _, v := range cfg.StaticVeto {
		if !seen[v] {
			return nil, fmt.Errorf("%w in veto list: %s", ErrUnknownFaction, v)
		}
	}
	if cfg.Procedure.StatementRounds < 0 || cfg.Procedure.DebateRounds < 0 {
		return nil, fmt.Errorf("%w: statement=%d debate=%d", speaker.ErrInvalidBudget, cfg.Procedure.StatementRounds, cfg.Procedure.DebateRounds)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		cfg:          cfg,
		participants: append([]faction.Participant(nil), participants...),
		logger:       logging.New().WithComponent("sitting"),
	}, nil
}

// Names returns participant names in roster order.
func (r *Runner) Names() []string {
	out := make([]string, len(r.participants))
	for i, p := range r.participants {
		out[i] = p.Name()
	}
	return out
}

// run is the state of one sitting.
type run struct {
	*Runner
	ctx       context.Context
	bill      *bill.Bill
	authority *speaker.Authority
	journal   *journal

	mu     sync.Mutex
	result Result
	corr   map[string]string // latest correlation ID per faction
}

// Run deliberates b and returns the outcome. Cancellation returns the
// context error. Procedural and legitimacy errors are wrapped with the stage
// they occurred in.
func (r *Runner) Run(ctx context.Context, b *bill.Bill) (*Result, error) {
	if b == nil {
		return nil, fmt.Errorf("seat bill: %w: no bill", speaker.ErrNotDraft)
	}
	ctx, span := startSittingSpan(ctx, b)
	s := &run{
		Runner:  r,
		ctx:     ctx,
		bill:    b,
		journal: &journal{sess: r.cfg.Journal},
		corr:    make(map[string]string),
	}
	s.result.Bill = b

	res, err := s.execute()
	endSpan(span, err)
	return res, err
}

func (s *run) execute() (*Result, error) {
	opts := []speaker.Option{speaker.WithTransitionHook(s.transition)}
	if s.cfg.Gateway != nil {
		opts = append(opts, speaker.WithGateway(s.cfg.Gateway))
	}
	authority, err := speaker.New(s.bill, s.cfg.Procedure, opts...)
	if err != nil {
		return nil, fmt.Errorf("seat bill: %w", err)
	}
	s.authority = authority
	s.journal.phase("", speaker.PhaseIntroduction, false)
	if s.OnPhase != nil {
		s.OnPhase("", speaker.PhaseIntroduction, false)
	}

	for _, p := range s.participants {
		if rep, ok := p.(faction.Reporter); ok {
			rep.SetDegradeHook(s.degrade)
			defer rep.SetDegradeHook(nil)
		}
	}

	s.logger.Info("sitting opened", map[string]interface{}{
		"bill":     s.bill.Ref().String(),
		"title":    s.bill.Title(),
		"factions": s.Names(),
	})

	if err := s.phase("introduction", s.introduce); err != nil {
		return nil, err
	}

	next, err := s.advance()
	if err != nil {
		return nil, err
	}
	if next == speaker.PhaseVoting {
		s.escalate()
	} else {
		if err := s.phase("statements", s.statements); err != nil {
			return nil, err
		}
		if _, err := s.advance(); err != nil {
			return nil, err
		}
		if err := s.phase("debate", s.debate); err != nil {
			return nil, err
		}
		if _, err := s.advance(); err != nil {
			return nil, err
		}
		if err := s.phase("amendments", s.amendments); err != nil {
			return nil, err
		}
		if _, err := s.advance(); err != nil {
			return nil, err
		}
	}

	if err := s.phase("voting", s.vote); err != nil {
		return nil, err
	}
	if err := s.phase("decision", s.decide); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.result
	return &res, nil
}

// phase runs fn inside a span and stops on cancellation.
func (s *run) phase(name string, fn func(context.Context) error) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	ctx, span := startPhaseSpan(s.ctx, name)
	err := fn(ctx)
	if err == nil {
		err = s.ctx.Err()
	}
	endSpan(span, err)
	return err
}

func (s *run) advance() (speaker.Phase, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	to, err := s.authority.Advance()
	if err != nil {
		return to, fmt.Errorf("advance: %w", err)
	}
	return to, nil
}

func (s *run) transition(from, to speaker.Phase, forced bool) {
	s.journal.phase(from, to, forced)
	if s.OnPhase != nil {
		s.OnPhase(from, to, forced)
	}
}

func (s *run) escalate() {
	skipped := []speaker.Phase{speaker.PhaseFactionStatements, speaker.PhaseDebate, speaker.PhaseAmendments}
	s.mu.Lock()
	s.result.Escalated = true
	s.result.Skipped = skipped
	s.mu.Unlock()
	s.journal.escalation(s.authority.StatementRound(), s.cfg.Procedure.StatementRounds, skipped)
	s.logger.Warn("statement budget exhausted, skipping to vote", map[string]interface{}{
		"skipped": skipped,
	})
}

func (s *run) degrade(d Degradation) {
	s.mu.Lock()
	s.result.Degradations = append(s.result.Degradations, d)
	s.mu.Unlock()
	s.journal.degradation(d, s.correlation(d.Faction))
	s.logger.Warn(d.String(), map[string]interface{}{"reason": d.Reason})
	if s.OnDegradation != nil {
		s.OnDegradation(d)
	}
}

// introduce grants veto power, by delegation or from the static list.
func (s *run) introduce(ctx context.Context) error {
	var granted []string
	var corr string
	if s.cfg.DelegateVeto && s.cfg.Gateway != nil {
		ctx, corr = s.attribute(ctx, "")
		granted = s.authority.DetermineVetoGrants(ctx, s.Names(), s.digests())
	} else {
		for _, name := range s.cfg.StaticVeto {
			s.authority.AssignVeto(name)
		}
		granted = s.authority.VetoFactions()
	}
	for _, name := range granted {
		s.journal.veto(name, corr)
	}
	s.mu.Lock()
	s.result.Veto = s.authority.VetoFactions()
	s.mu.Unlock()
	return nil
}

func (s *run) digests() map[string]string {
	out := make(map[string]string, len(s.participants))
	for _, p := range s.participants {
		if d, ok := p.(interface{ Digest() string }); ok {
			out[p.Name()] = d.Digest()
		}
	}
	return out
}

func (s *run) statements(ctx context.Context) error {
	if !s.authority.Allowed(speaker.ActionStatement) {
		return fmt.Errorf("statements: not allowed in phase %s", s.authority.Phase())
	}
	texts := make([]string, len(s.participants))
	err := s.collect(ctx, func(ctx context.Context, i int, p faction.Participant) {
		texts[i] = p.Statement(ctx, s.bill)
	})
	if err != nil {
		return err
	}

	round := s.authority.StatementRound()
	for i, p := range s.participants {
		stmt, err := bill.NewStatement(s.bill.Ref(), p.Name(), round, texts[i], nil)
		if err != nil {
			s.degrade(Degradation{Faction: p.Name(), Stage: faction.StageStatement, Reason: err.Error()})
			continue
		}
		s.mu.Lock()
		s.result.Statements = append(s.result.Statements, stmt)
		s.mu.Unlock()
		s.journal.statement(session.EventStatement, stmt, s.correlation(p.Name()))
		if s.OnStatement != nil {
			s.OnStatement(stmt)
		}
	}
	return nil
}

func (s *run) debate(ctx context.Context) error {
	names := s.Names()
	order := names
	var corr string
	if s.cfg.DelegateOrder && s.cfg.Gateway != nil {
		opening := make(map[string]string, len(names))
		s.mu.Lock()
		for _, st := range s.result.Statements {
			opening[st.Speaker()] = st.Argument()
		}
		s.mu.Unlock()
		octx, id := s.attribute(ctx, "")
		corr = id
		order = s.authority.DetermineDebateOrder(octx, names, opening)
	}
	if err := s.authority.SetDebateOrder(order); err != nil {
		return fmt.Errorf("debate order: %w", err)
	}
	order = s.authority.DebateOrder()
	s.journal.order(order, corr)
	s.mu.Lock()
	s.result.DebateOrder = order
	s.mu.Unlock()

	speakers := make(map[string]debate.Speaker, len(s.participants))
	for _, p := range s.participants {
		speakers[p.Name()] = attributed{Participant: p, run: s}
	}

	coord := debate.New(s.authority, s.cfg.Procedure.DebateRounds)
	coord.OnStatement = func(stmt *bill.Statement) {
		s.journal.statement(session.EventDebate, stmt, s.correlation(stmt.Speaker()))
		if s.OnDebate != nil {
			s.OnDebate(stmt)
		}
	}
	coord.OnPass = func(name string, round int) {
		s.journal.pass(name, round, s.correlation(name))
	}
	err := coord.Run(ctx, s.bill, order, speakers)

	s.mu.Lock()
	s.result.Transcript = coord.Transcript()
	s.mu.Unlock()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("debate: %w", err)
	}
	return err
}

func (s *run) amendments(ctx context.Context) error {
	if !s.authority.Allowed(speaker.ActionAmend) {
		return fmt.Errorf("amendments: not allowed in phase %s", s.authority.Phase())
	}
	drafts := make([][]faction.Draft, len(s.participants))
	err := s.collect(ctx, func(ctx context.Context, i int, p faction.Participant) {
		drafts[i] = p.ProposeAmendments(ctx, s.bill)
	})
	if err != nil {
		return err
	}

	for i, p := range s.participants {
		for _, d := range drafts[i] {
			a, err := bill.NewAmendment(bill.AmendmentDraft{
				Bill:      s.bill.Ref(),
				Proposer:  p.Name(),
				Summary:   d.Summary,
				Rationale: d.Rationale,
			})
			if err != nil {
				s.logger.Warn("discarding malformed amendment", map[string]interface{}{
					"faction": p.Name(),
					"error":   err.Error(),
				})
				continue
			}
			s.mu.Lock()
			s.result.Amendments = append(s.result.Amendments, a)
			s.mu.Unlock()
			s.journal.amendment(a, s.correlation(p.Name()))
			if s.OnAmendment != nil {
				s.OnAmendment(a)
			}
		}
	}
	return nil
}

func (s *run) vote(ctx context.Context) error {
	if !s.authority.Allowed(speaker.ActionVote) {
		return fmt.Errorf("vote: not allowed in phase %s", s.authority.Phase())
	}
	s.mu.Lock()
	amendments := append([]*bill.Amendment(nil), s.result.Amendments...)
	s.mu.Unlock()

	ballots := make([]faction.Ballot, len(s.participants))
	err := s.collect(ctx, func(ctx context.Context, i int, p faction.Participant) {
		ballots[i] = p.CastVote(ctx, s.bill, amendments)
	})
	if err != nil {
		return err
	}

	for i, p := range s.participants {
		b := ballots[i]
		if b.Degraded {
			if _, reports := p.(faction.Reporter); !reports {
				s.degrade(Degradation{Faction: p.Name(), Stage: faction.StageVote, Reason: b.Justification})
			}
		}
		v, err := bill.NewVote(s.bill.Ref(), p.Name(), b.Choice, p.Weight(), b.Justification)
		if err != nil {
			return fmt.Errorf("vote from %s: %w", p.Name(), err)
		}
		s.mu.Lock()
		s.result.Votes = append(s.result.Votes, v)
		s.mu.Unlock()
		s.journal.vote(v, s.correlation(p.Name()))
		if s.OnVote != nil {
			s.OnVote(v)
		}
	}
	return nil
}

func (s *run) decide(ctx context.Context) error {
	s.mu.Lock()
	votes := append([]*bill.Vote(nil), s.result.Votes...)
	s.mu.Unlock()

	decision, err := voting.Evaluate(s.bill, votes, s.authority.VetoFactions())
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if err := s.authority.Conclude(); err != nil {
		return fmt.Errorf("conclude: %w", err)
	}

	s.mu.Lock()
	s.result.Decision = decision
	s.mu.Unlock()
	s.journal.decision(decision)

	fields := map[string]interface{}{
		"passed":  decision.Passed(),
		"approve": decision.Approve(),
		"reject":  decision.Reject(),
		"abstain": decision.Abstain(),
	}
	if decision.Vetoed() {
		fields["vetoed_by"] = strings.Join(decision.VetoedBy(), ", ")
	}
	s.logger.Info("decision reached", fields)
	if s.OnDecision != nil {
		s.OnDecision(decision)
	}
	return nil
}

// attribute starts a correlation for one generation-backed operation and
// returns a context carrying it to the gateway. An empty faction is the
// Speaker.
func (s *run) attribute(ctx context.Context, faction string) (context.Context, string) {
	id := s.journal.correlate()
	if faction != "" {
		s.mu.Lock()
		s.corr[faction] = id
		s.mu.Unlock()
	}
	return structured.WithCaller(ctx, structured.Caller{Faction: faction, CorrelationID: id}), id
}

func (s *run) correlation(faction string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corr[faction]
}

// attributed tags a participant's debate turns with a fresh correlation.
type attributed struct {
	faction.Participant
	run *run
}

func (a attributed) DebateTurn(ctx context.Context, b *bill.Bill, round int, participants []string, transcript []*bill.Statement) *debate.Turn {
	ctx, _ = a.run.attribute(ctx, a.Name())
	return a.Participant.DebateTurn(ctx, b, round, participants, transcript)
}

// collect calls fn for every participant, concurrently when configured.
// Results are written by index so roster order is preserved.
func (s *run) collect(ctx context.Context, fn func(context.Context, int, faction.Participant)) error {
	limit := 1
	if s.cfg.Parallel {
		limit = s.cfg.Concurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range s.participants {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ctx, _ := s.attribute(gctx, p.Name())
			fn(ctx, i, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
