package sitting

import (
	"fmt"

	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/session"
	"github.com/vinayprograms/parliament/internal/speaker"
	"github.com/vinayprograms/parliament/internal/structured"
)

// journal writes sitting events to a session. A nil session drops them.
type journal struct {
	sess *session.Session
}

func (j *journal) add(e session.Event) {
	if j.sess != nil {
		j.sess.AddEvent(e)
	}
}

// correlate returns a new correlation ID, or "" when nothing is journaled.
func (j *journal) correlate() string {
	if j.sess == nil {
		return ""
	}
	return j.sess.StartCorrelation()
}

func (j *journal) phase(from, to speaker.Phase, forced bool) {
	j.add(session.Event{
		Type:  session.EventPhase,
		Phase: string(to),
		Meta:  &session.EventMeta{From: string(from), To: string(to), Forced: forced},
	})
}

func (j *journal) escalation(round, budget int, skipped []speaker.Phase) {
	names := make([]string, len(skipped))
	for i, p := range skipped {
		names[i] = string(p)
	}
	j.add(session.Event{
		Type:    session.EventEscalation,
		Phase:   string(speaker.PhaseVoting),
		Round:   round,
		Content: fmt.Sprintf("statement round %d exceeds budget of %d", round, budget),
		Meta:    &session.EventMeta{Skipped: names},
	})
}

func (j *journal) veto(faction, corr string) {
	j.add(session.Event{
		Type:          session.EventVeto,
		CorrelationID: corr,
		Phase:         string(speaker.PhaseIntroduction),
		Faction:       faction,
	})
}

func (j *journal) order(order []string, corr string) {
	j.add(session.Event{
		Type:          session.EventOrder,
		CorrelationID: corr,
		Phase:         string(speaker.PhaseDebate),
		Meta:          &session.EventMeta{Order: order},
	})
}

func (j *journal) statement(kind string, s *bill.Statement, corr string) {
	phase := speaker.PhaseDebate
	if kind == session.EventStatement {
		phase = speaker.PhaseFactionStatements
	}
	e := session.Event{
		Type:          kind,
		CorrelationID: corr,
		Phase:         string(phase),
		Faction:       s.Speaker(),
		Round:         s.Round(),
		Content:       s.Argument(),
	}
	if !s.AddressesAll() {
		e.Meta = &session.EventMeta{Targets: s.Targets()}
	}
	j.add(e)
}

func (j *journal) pass(faction string, round int, corr string) {
	j.add(session.Event{
		Type:          session.EventPass,
		CorrelationID: corr,
		Phase:         string(speaker.PhaseDebate),
		Faction:       faction,
		Round:         round,
	})
}

func (j *journal) amendment(a *bill.Amendment, corr string) {
	j.add(session.Event{
		Type:          session.EventAmendment,
		CorrelationID: corr,
		Phase:         string(speaker.PhaseAmendments),
		Faction:       a.Proposer(),
		Content:       a.Summary(),
		Meta:          &session.EventMeta{Rationale: a.Rationale()},
	})
}

func (j *journal) vote(v *bill.Vote, corr string) {
	j.add(session.Event{
		Type:          session.EventVote,
		CorrelationID: corr,
		Phase:         string(speaker.PhaseVoting),
		Faction:       v.Faction(),
		Content:       v.Justification(),
		Meta:          &session.EventMeta{Choice: string(v.Choice()), Weight: v.Weight()},
	})
}

func (j *journal) decision(d *bill.Decision) {
	passed := d.Passed()
	j.add(session.Event{
		Type:    session.EventDecision,
		Phase:   string(speaker.PhaseDecision),
		Content: d.Summary(),
		Meta: &session.EventMeta{
			Passed:   &passed,
			Approve:  d.Approve(),
			Reject:   d.Reject(),
			Abstain:  d.Abstain(),
			VetoedBy: d.VetoedBy(),
		},
	})
}

func (j *journal) degradation(d Degradation, corr string) {
	j.add(session.Event{
		Type:          session.EventDegradation,
		CorrelationID: corr,
		Faction:       d.Faction,
		Content:       d.String(),
		Error:         d.Reason,
		Meta:          &session.EventMeta{Stage: d.Stage},
	})
}

// RecordAttempts returns a gateway hook that journals every backend call.
// Attempts carry the faction and correlation of the operation they served
// and point at the phase event they happened under.
func RecordAttempts(sess *session.Session, model string) func(structured.Attempt) {
	return func(a structured.Attempt) {
		e := session.Event{
			Type:          session.EventGatewayAttempt,
			CorrelationID: a.Caller.CorrelationID,
			ParentSeqID:   sess.LastSeqOf(session.EventPhase),
			Faction:       a.Caller.Faction,
			DurationMs:    a.Latency.Milliseconds(),
			Meta: &session.EventMeta{
				Request:   a.Name,
				Attempt:   a.Number,
				Model:     model,
				LatencyMs: a.Latency.Milliseconds(),
				System:    a.System,
				Prompt:    a.User,
				Response:  a.Response,
			},
		}
		if a.Err != nil {
			e.Error = a.Err.Error()
		}
		sess.AddEvent(e)
	}
}
