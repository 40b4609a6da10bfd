package sitting

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/faction"
	"github.com/vinayprograms/parliament/internal/session"
	"github.com/vinayprograms/parliament/internal/speaker"
	"github.com/vinayprograms/parliament/internal/structured"
)

// fakeFaction is a scripted participant.
type fakeFaction struct {
	name      string
	weight    float64
	statement string
	turns     map[int]*faction.Turn
	drafts    []faction.Draft
	ballot    faction.Ballot
	delay     time.Duration
	onVote    func()

	mu       sync.Mutex
	sawAmend []*bill.Amendment
}

func (f *fakeFaction) Name() string    { return f.name }
func (f *fakeFaction) Weight() float64 { return f.weight }

func (f *fakeFaction) Statement(ctx context.Context, b *bill.Bill) string {
	time.Sleep(f.delay)
	return f.statement
}

func (f *fakeFaction) DebateTurn(ctx context.Context, b *bill.Bill, round int, participants []string, transcript []*bill.Statement) *faction.Turn {
	return f.turns[round]
}

func (f *fakeFaction) ProposeAmendments(ctx context.Context, b *bill.Bill) []faction.Draft {
	return f.drafts
}

func (f *fakeFaction) CastVote(ctx context.Context, b *bill.Bill, amendments []*bill.Amendment) faction.Ballot {
	time.Sleep(f.delay)
	f.mu.Lock()
	f.sawAmend = amendments
	f.mu.Unlock()
	if f.onVote != nil {
		f.onVote()
	}
	return f.ballot
}

// fakeGateway answers Speaker delegations by request name.
type fakeGateway struct {
	values map[string]interface{}
	calls  []string
}

func (g *fakeGateway) Generate(ctx context.Context, req structured.Request) (*structured.Result, error) {
	g.calls = append(g.calls, req.Name)
	v, ok := g.values[req.Name]
	if !ok {
		return nil, &structured.ExhaustedError{Name: req.Name, Attempts: 1, Policy: req.Policy}
	}
	return &structured.Result{Value: v, Attempts: 1}, nil
}

func testBill(t *testing.T) *bill.Bill {
	t.Helper()
	b, err := bill.New(bill.Draft{
		Title:      "AI in Public Services",
		Body:       "Deploy AI assistants in public service offices.",
		KnownRisks: []string{"Biased decisions"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func chamber() []*fakeFaction {
	approve := faction.Ballot{Choice: bill.Approve, Justification: "Worth it."}
	return []*fakeFaction{
		{name: "Efficiency", weight: 1.0, statement: "Saves money.", ballot: approve,
			turns: map[int]*faction.Turn{1: {Argument: "Queues will shrink.", Targets: []string{"Safety"}}}},
		{name: "Safety", weight: 1.5, statement: "Needs oversight.",
			ballot: faction.Ballot{Choice: bill.Reject, Justification: "No human review."},
			turns:  map[int]*faction.Turn{1: {Argument: "Who reviews the output?"}, 2: {Argument: "Still no answer."}},
			drafts: []faction.Draft{{Summary: "Add human review", Rationale: "Catch bias"}}},
		{name: "Equity", weight: 1.0, statement: "Access for all.", ballot: approve},
		{name: "Innovation", weight: 1.0, statement: "Pilot it.", ballot: approve},
		{name: "Compliance", weight: 1.2, statement: "Check GDPR.", ballot: approve},
	}
}

func participants(fs []*fakeFaction) []faction.Participant {
	out := make([]faction.Participant, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

func baseConfig() Config {
	return Config{Procedure: speaker.DefaultConfig(), Concurrency: 5}
}

func TestRun_FullSittingWithStaticVeto(t *testing.T) {
	fs := chamber()
	journalSess := session.New("b", 1, "AI in Public Services")
	cfg := baseConfig()
	cfg.StaticVeto = []string{"Safety"}
	cfg.Journal = journalSess

	r, err := New(cfg, participants(fs))
	if err != nil {
		t.Fatal(err)
	}
	var phases []string
	r.OnPhase = func(from, to speaker.Phase, forced bool) { phases = append(phases, string(to)) }
	var decided *bill.Decision
	r.OnDecision = func(d *bill.Decision) { decided = d }

	b := testBill(t)
	res, err := r.Run(context.Background(), b)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantPhases := []string{"INTRODUCTION", "FACTION_STATEMENTS", "DEBATE", "AMENDMENTS", "VOTING", "DECISION"}
	if !reflect.DeepEqual(phases, wantPhases) {
		t.Errorf("phases = %v, want %v", phases, wantPhases)
	}

	if len(res.Statements) != 5 || res.Statements[1].Speaker() != "Safety" || res.Statements[1].Argument() != "Needs oversight." {
		t.Errorf("unexpected statements")
	}
	if !reflect.DeepEqual(res.DebateOrder, r.Names()) {
		t.Errorf("debate order should default to roster order, got %v", res.DebateOrder)
	}
	if len(res.Transcript) != 3 {
		t.Errorf("expected 3 debate turns, got %d", len(res.Transcript))
	}
	if len(res.Amendments) != 1 || res.Amendments[0].Proposer() != "Safety" || res.Amendments[0].Accepted() != nil {
		t.Errorf("unexpected amendments")
	}
	if len(fs[0].sawAmend) != 1 {
		t.Error("voters should see the proposed amendments")
	}

	d := res.Decision
	if d == nil || d != decided {
		t.Fatal("decision missing or not reported")
	}
	if d.Passed() || d.Approve() != 4.2 || d.Reject() != 1.5 {
		t.Errorf("unexpected decision %s", d.Summary())
	}
	if d.Summary() != "Bill REJECTED - Vetoed by: Safety (Approve: 4.2, Reject: 1.5)" {
		t.Errorf("unexpected summary %q", d.Summary())
	}
	if !reflect.DeepEqual(res.Veto, []string{"Safety"}) {
		t.Errorf("unexpected veto holders %v", res.Veto)
	}
	if res.Escalated {
		t.Error("sitting should not be escalated")
	}

	counts := map[string]int{}
	for _, e := range journalSess.Snapshot() {
		counts[e.Type]++
	}
	want := map[string]int{
		session.EventPhase: 6, session.EventVeto: 1, session.EventStatement: 5,
		session.EventOrder: 1, session.EventDebate: 3, session.EventAmendment: 1,
		session.EventVote: 5, session.EventDecision: 1,
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("journal has %d %s events, want %d", counts[k], k, v)
		}
	}
	if counts[session.EventPass] == 0 {
		t.Error("passes should be journaled")
	}
}

func TestRun_ParallelKeepsRosterOrder(t *testing.T) {
	fs := chamber()
	for i, f := range fs {
		f.delay = time.Duration(len(fs)-i) * 5 * time.Millisecond
	}
	cfg := baseConfig()
	cfg.Parallel = true

	r, err := New(cfg, participants(fs))
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), testBill(t))
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range fs {
		if res.Statements[i].Speaker() != f.name {
			t.Errorf("statement %d from %s, want %s", i, res.Statements[i].Speaker(), f.name)
		}
		if res.Votes[i].Faction() != f.name {
			t.Errorf("vote %d from %s, want %s", i, res.Votes[i].Faction(), f.name)
		}
	}
	if !res.Decision.Passed() {
		t.Errorf("without veto the bill should pass: %s", res.Decision.Summary())
	}
}

func TestRun_EscalationSkipsToVote(t *testing.T) {
	fs := chamber()
	cfg := baseConfig()
	cfg.Procedure.StatementRounds = 0
	journalSess := session.New("b", 1, "t")
	cfg.Journal = journalSess

	r, err := New(cfg, participants(fs))
	if err != nil {
		t.Fatal(err)
	}
	var forcedTo speaker.Phase
	r.OnPhase = func(from, to speaker.Phase, forced bool) {
		if forced {
			forcedTo = to
		}
	}

	res, err := r.Run(context.Background(), testBill(t))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Escalated || forcedTo != speaker.PhaseVoting {
		t.Errorf("expected forced jump to VOTING, escalated=%v forced=%s", res.Escalated, forcedTo)
	}
	wantSkipped := []speaker.Phase{speaker.PhaseFactionStatements, speaker.PhaseDebate, speaker.PhaseAmendments}
	if !reflect.DeepEqual(res.Skipped, wantSkipped) {
		t.Errorf("skipped = %v", res.Skipped)
	}
	if len(res.Statements) != 0 || len(res.Transcript) != 0 || len(res.Amendments) != 0 {
		t.Error("skipped phases must produce nothing")
	}
	if len(res.Votes) != 5 || res.Decision == nil {
		t.Error("vote should still be taken")
	}

	escalations := 0
	for _, e := range journalSess.Snapshot() {
		if e.Type == session.EventEscalation {
			escalations++
		}
	}
	if escalations != 1 {
		t.Errorf("expected 1 escalation event, got %d", escalations)
	}
}

func TestRun_DelegatedRulings(t *testing.T) {
	fs := chamber()
	reversed := []string{"Compliance", "Innovation", "Equity", "Safety", "Efficiency"}
	gw := &fakeGateway{values: map[string]interface{}{
		"veto_grants":  map[string]interface{}{"factions_with_veto": []string{"Compliance", "Nobody"}, "reasoning": "data"},
		"debate_order": map[string]interface{}{"faction_order": reversed, "reasoning": "conflict first"},
	}}
	cfg := baseConfig()
	cfg.DelegateOrder = true
	cfg.DelegateVeto = true
	cfg.Gateway = gw

	r, err := New(cfg, participants(fs))
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), testBill(t))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.DebateOrder, reversed) {
		t.Errorf("debate order = %v, want %v", res.DebateOrder, reversed)
	}
	if res.Transcript[0].Speaker() != "Safety" {
		t.Errorf("first debate turn from %s, want Safety", res.Transcript[0].Speaker())
	}
	if !reflect.DeepEqual(res.Veto, []string{"Compliance"}) {
		t.Errorf("veto = %v, want [Compliance]", res.Veto)
	}
	// Compliance approved, so the veto is not exercised.
	if !res.Decision.Passed() {
		t.Errorf("expected pass, got %s", res.Decision.Summary())
	}
	if !reflect.DeepEqual(gw.calls, []string{"veto_grants", "debate_order"}) {
		t.Errorf("unexpected delegation calls %v", gw.calls)
	}
}

func TestRun_DelegationFailureFallsBack(t *testing.T) {
	cfg := baseConfig()
	cfg.DelegateOrder = true
	cfg.DelegateVeto = true
	cfg.Gateway = &fakeGateway{}

	r, err := New(cfg, participants(chamber()))
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), testBill(t))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.DebateOrder, r.Names()) {
		t.Errorf("failed delegation should keep roster order, got %v", res.DebateOrder)
	}
	if len(res.Veto) != 0 {
		t.Errorf("failed delegation should grant no veto, got %v", res.Veto)
	}
}

func TestRun_DegradedFactions(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: "I'd rather not say."}, nil
	}
	gw := structured.New(structured.Config{Provider: provider, MaxAttempts: 2, BackOff: structured.ZeroBackOff})
	factions, err := faction.Build(&faction.Roster{Factions: []faction.Profile{
		{Name: "Safety", Weight: 1.5, Ideology: faction.Ideology{Goal: "Prevent harm."}},
		{Name: "Equity", Weight: 1.0, Ideology: faction.Ideology{Goal: "Fairness."}},
	}}, gw)
	if err != nil {
		t.Fatal(err)
	}
	ps := make([]faction.Participant, len(factions))
	for i, f := range factions {
		ps[i] = f
	}

	cfg := baseConfig()
	cfg.Procedure.DebateRounds = 1
	r, err := New(cfg, ps)
	if err != nil {
		t.Fatal(err)
	}
	var reported []Degradation
	r.OnDegradation = func(d Degradation) { reported = append(reported, d) }

	res, err := r.Run(context.Background(), testBill(t))
	if err != nil {
		t.Fatalf("degradation must not abort the sitting: %v", err)
	}

	// statement, debate, amendments and vote for each faction
	if len(res.Degradations) != 8 || len(reported) != 8 {
		t.Errorf("expected 8 degradations, got %d (reported %d)", len(res.Degradations), len(reported))
	}
	if !strings.HasPrefix(res.Statements[0].Argument(), "[Safety] Unable to generate") {
		t.Errorf("unexpected placeholder %q", res.Statements[0].Argument())
	}
	for _, v := range res.Votes {
		if v.Choice() != bill.Abstain {
			t.Errorf("%s should abstain, got %s", v.Faction(), v.Choice())
		}
	}
	if res.Decision.Passed() {
		t.Error("all abstentions tie at zero and must reject")
	}

	// Hooks are released after the run.
	factions[0].Statement(context.Background(), testBill(t))
	if len(reported) != 8 {
		t.Error("degrade hook should be cleared after the sitting")
	}
}

func TestRun_DegradedBallotFromPlainParticipant(t *testing.T) {
	fs := chamber()
	fs[2].ballot = faction.Ballot{Choice: bill.Abstain, Justification: "LLM failure prevented informed decision: timeout", Degraded: true}

	r, err := New(baseConfig(), participants(fs))
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), testBill(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Degradations) != 1 || res.Degradations[0].Faction != "Equity" || res.Degradations[0].Stage != faction.StageVote {
		t.Errorf("unexpected degradations %+v", res.Degradations)
	}
	if res.Degradations[0].String() != "Equity abstained due to generation failure" {
		t.Errorf("unexpected description %q", res.Degradations[0].String())
	}
}

func TestRun_Cancellation(t *testing.T) {
	fs := chamber()
	ctx, cancel := context.WithCancel(context.Background())
	fs[0].onVote = cancel

	r, err := New(baseConfig(), participants(fs))
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(ctx, testBill(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res != nil {
		t.Error("cancelled sitting should return no result")
	}
}

func TestRun_RejectsNonDraftBill(t *testing.T) {
	r, err := New(baseConfig(), participants(chamber()))
	if err != nil {
		t.Fatal(err)
	}
	passed, err := testBill(t).WithStatus(bill.StatusPassed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background(), passed); !errors.Is(err, speaker.ErrNotDraft) {
		t.Errorf("expected ErrNotDraft, got %v", err)
	}
	if _, err := r.Run(context.Background(), nil); !errors.Is(err, speaker.ErrNotDraft) {
		t.Errorf("expected ErrNotDraft for nil bill, got %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	dup := chamber()
	dup[1].name = "Efficiency"
	zero := chamber()
	zero[0].weight = 0

	tests := []struct {
		name string
		cfg  Config
		ps   []faction.Participant
		want error
	}{
		{"empty", baseConfig(), nil, ErrNoParticipants},
		{"duplicate", baseConfig(), participants(dup), ErrDuplicateFaction},
		{"zero weight", baseConfig(), participants(zero), ErrInvalidWeight},
		{"unknown veto", Config{StaticVeto: []string{"Ghost"}}, participants(chamber()), ErrUnknownFaction},
		{"negative budget", Config{Procedure: speaker.Config{DebateRounds: -1}}, participants(chamber()), speaker.ErrInvalidBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.ps); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRecordAttempts(t *testing.T) {
	sess := session.New("b", 1, "t")
	hook := RecordAttempts(sess, "claude-sonnet-4-5")
	hook(structured.Attempt{Name: "vote", Number: 2, User: "vote now", Response: "nope", Err: errors.New("invalid JSON"), Latency: 40 * time.Millisecond})

	events := sess.Snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != session.EventGatewayAttempt || e.Error != "invalid JSON" || e.Meta.Attempt != 2 || e.Meta.Model != "claude-sonnet-4-5" || e.Meta.LatencyMs != 40 {
		t.Errorf("unexpected event %+v %+v", e, e.Meta)
	}
}

func TestRun_AttemptsLinkToTheirFaction(t *testing.T) {
	const healthy = `{"summary": "Noted.", "argument": "Consider the costs.", "choice": "APPROVE", "justification": "Acceptable.", "faction_order": [], "factions_with_veto": [], "reasoning": "None."}`
	provider := llm.NewMockProvider()
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		if structured.CallerFrom(ctx).Faction == "Safety" {
			return &llm.ChatResponse{Content: "no comment"}, nil
		}
		if strings.Contains(req.Messages[0].Content, "change_summary") {
			return &llm.ChatResponse{Content: "[]"}, nil
		}
		return &llm.ChatResponse{Content: healthy}, nil
	}

	sess := session.New("b-1", 1, "AI in Public Services")
	gw := structured.New(structured.Config{
		Provider:    provider,
		MaxAttempts: 2,
		BackOff:     structured.ZeroBackOff,
		OnAttempt:   RecordAttempts(sess, "test-model"),
	})
	factions, err := faction.Build(faction.DefaultRoster(), gw)
	if err != nil {
		t.Fatal(err)
	}
	ps := make([]faction.Participant, len(factions))
	for i, f := range factions {
		ps[i] = f
	}

	cfg := baseConfig()
	cfg.Parallel = true
	cfg.Procedure.DebateRounds = 1
	cfg.DelegateOrder = true
	cfg.DelegateVeto = true
	cfg.Gateway = gw
	cfg.Journal = sess
	r, err := New(cfg, ps)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background(), testBill(t)); err != nil {
		t.Fatalf("run error: %v", err)
	}

	events := sess.Snapshot()
	bySeq := make(map[uint64]session.Event, len(events))
	linked := make(map[string]session.Event) // correlation -> first non-attempt event
	for _, e := range events {
		bySeq[e.SeqID] = e
		if e.Type != session.EventGatewayAttempt && e.CorrelationID != "" {
			if _, ok := linked[e.CorrelationID]; !ok {
				linked[e.CorrelationID] = e
			}
		}
	}

	factionRequests := map[string]bool{"statement": true, "debate_turn": true, "amendments": true, "vote": true}
	safetyVoteAttempts := 0
	voteCorrelations := make(map[string]string)
	attempts := 0
	for _, e := range events {
		if e.Type != session.EventGatewayAttempt {
			continue
		}
		attempts++
		if e.CorrelationID == "" {
			t.Errorf("attempt %d (%s) has no correlation", e.SeqID, e.Meta.Request)
			continue
		}
		if parent, ok := bySeq[e.ParentSeqID]; !ok || parent.Type != session.EventPhase {
			t.Errorf("attempt %d parent %d is not a phase event", e.SeqID, e.ParentSeqID)
		}
		if !factionRequests[e.Meta.Request] {
			if e.Faction != "" {
				t.Errorf("speaker ruling %s attributed to %q", e.Meta.Request, e.Faction)
			}
			continue
		}
		if e.Faction == "" {
			t.Errorf("%s attempt %d has no faction", e.Meta.Request, e.SeqID)
			continue
		}
		if l, ok := linked[e.CorrelationID]; !ok || l.Faction != e.Faction {
			t.Errorf("%s attempt by %s links to %+v", e.Meta.Request, e.Faction, l)
		}
		if e.Meta.Request == "vote" {
			if prev, ok := voteCorrelations[e.Faction]; ok && prev != e.CorrelationID {
				t.Errorf("%s vote retries split across correlations %s and %s", e.Faction, prev, e.CorrelationID)
			}
			voteCorrelations[e.Faction] = e.CorrelationID
			if e.Faction == "Safety" {
				safetyVoteAttempts++
			}
		}
	}
	if attempts == 0 {
		t.Fatal("no gateway attempts journaled")
	}
	if safetyVoteAttempts != 2 {
		t.Errorf("expected 2 Safety vote attempts, got %d", safetyVoteAttempts)
	}
	if len(voteCorrelations) != 5 {
		t.Errorf("expected a vote correlation per faction, got %v", voteCorrelations)
	}
	seen := make(map[string]bool)
	for name, corr := range voteCorrelations {
		if seen[corr] {
			t.Errorf("%s shares a vote correlation with another faction", name)
		}
		seen[corr] = true
	}

	// Safety's ballot is the abstention its failed attempts produced.
	var safetyVote *session.Event
	for i := range events {
		if events[i].Type == session.EventVote && events[i].Faction == "Safety" {
			safetyVote = &events[i]
		}
	}
	if safetyVote == nil || safetyVote.Meta == nil || safetyVote.CorrelationID != voteCorrelations["Safety"] || safetyVote.Meta.Choice != "ABSTAIN" {
		t.Errorf("Safety vote = %+v", safetyVote)
	}
}

func TestRun_PhaseGatesContributions(t *testing.T) {
	fs := chamber()
	r, err := New(baseConfig(), participants(fs))
	if err != nil {
		t.Fatal(err)
	}
	b := testBill(t)
	authority, err := speaker.New(b, speaker.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := &run{Runner: r, ctx: context.Background(), bill: b, authority: authority, journal: &journal{}, corr: make(map[string]string)}

	// The chamber is still in INTRODUCTION.
	if err := s.statements(context.Background()); err == nil || !strings.Contains(err.Error(), "statements: not allowed") {
		t.Errorf("statements outside STATEMENTS: %v", err)
	}
	if err := s.amendments(context.Background()); err == nil || !strings.Contains(err.Error(), "amendments: not allowed") {
		t.Errorf("amendments outside AMENDMENTS: %v", err)
	}
	if err := s.vote(context.Background()); err == nil {
		t.Error("vote outside VOTING should fail")
	}
	if len(s.result.Statements) != 0 || len(s.result.Amendments) != 0 || len(s.result.Votes) != 0 {
		t.Errorf("contributions recorded out of phase: %+v", s.result)
	}
}
