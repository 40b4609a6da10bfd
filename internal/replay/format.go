package replay

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vinayprograms/parliament/internal/session"
)

// formatEvent formats a single journal event.
func (r *Replayer) formatEvent(event *session.Event) {
	seq := seqStyle.Render(fmt.Sprintf("%d", event.SeqID))
	ts := timeStyle.Render(event.Timestamp.Format("15:04:05"))

	switch event.Type {
	case session.EventPhase:
		r.fmtPhase(seq, ts, event)
	case session.EventEscalation:
		r.fmtEscalation(seq, ts, event)
	case session.EventVeto:
		r.line(seq, ts, speakerStyle.Render("VETO")+" "+factionStyle.Render(event.Faction))
	case session.EventOrder:
		order := ""
		if event.Meta != nil {
			order = strings.Join(event.Meta.Order, " → ")
		}
		r.line(seq, ts, speakerStyle.Render("ORDER")+" "+valueStyle.Render(order))
	case session.EventStatement, session.EventDebate:
		r.fmtStatement(seq, ts, event)
	case session.EventPass:
		r.line(seq, ts, fmt.Sprintf("%s %s %s", factionStyle.Render(event.Faction),
			dimStyle.Render("passes"), dimStyle.Render(fmt.Sprintf("(round %d)", event.Round))))
	case session.EventAmendment:
		r.fmtAmendment(seq, ts, event)
	case session.EventVote:
		r.fmtVote(seq, ts, event)
	case session.EventDecision:
		r.fmtDecision(seq, ts, event)
	case session.EventDegradation:
		r.line(seq, ts, degradeStyle.Render("DEGRADED")+" "+valueStyle.Render(event.Content))
		if event.Error != "" && r.verbosity >= 1 {
			r.printError(event.Error)
		}
	case session.EventGatewayAttempt:
		r.fmtGatewayAttempt(seq, ts, event)
	default:
		r.line(seq, ts, dimStyle.Render(event.Type))
	}
}

func (r *Replayer) line(seq, ts, body string) {
	fmt.Fprintf(r.output, "%s │ %s │ %s\n", seq, ts, body)
}

func (r *Replayer) fmtPhase(seq, ts string, event *session.Event) {
	body := speakerStyle.Render("PHASE") + " " + valueStyle.Render(event.Phase)
	if event.Meta != nil {
		if event.Meta.From != "" {
			body += " " + dimStyle.Render("from "+event.Meta.From)
		}
		if event.Meta.Forced {
			body += " " + warnStyle.Render("(forced)")
		}
	}
	fmt.Fprintln(r.output)
	r.line(seq, ts, body)
}

func (r *Replayer) fmtEscalation(seq, ts string, event *session.Event) {
	r.line(seq, ts, warnStyle.Render("ESCALATION")+" "+valueStyle.Render(event.Content))
	if event.Meta != nil && len(event.Meta.Skipped) > 0 {
		r.printDetail("skipped", strings.Join(event.Meta.Skipped, ", "))
	}
}

func (r *Replayer) fmtStatement(seq, ts string, event *session.Event) {
	label := "STATEMENT"
	if event.Type == session.EventDebate {
		label = "DEBATE"
	}
	body := fmt.Sprintf("%s %s %s", factionStyle.Render(event.Faction), dimStyle.Render(label),
		dimStyle.Render(fmt.Sprintf("(round %d)", event.Round)))
	if event.Meta != nil && len(event.Meta.Targets) > 0 {
		body += " " + labelStyle.Render("to") + " " + valueStyle.Render(strings.Join(event.Meta.Targets, ", "))
	}
	r.line(seq, ts, body)
	r.printContent(event.Content)
}

func (r *Replayer) fmtAmendment(seq, ts string, event *session.Event) {
	r.line(seq, ts, fmt.Sprintf("%s %s", factionStyle.Render(event.Faction), amendmentStyle.Render("AMENDMENT")))
	r.printContent(event.Content)
	if event.Meta != nil && event.Meta.Rationale != "" && r.verbosity >= 1 {
		r.printDetail("rationale", event.Meta.Rationale)
	}
}

func (r *Replayer) fmtVote(seq, ts string, event *session.Event) {
	choice, weight := "", 0.0
	if event.Meta != nil {
		choice, weight = event.Meta.Choice, event.Meta.Weight
	}
	r.line(seq, ts, fmt.Sprintf("%s %s %s", factionStyle.Render(event.Faction),
		choiceStyle(choice).Render(choice), dimStyle.Render(fmt.Sprintf("(weight %.1f)", weight))))
	if r.verbosity >= 1 {
		r.printContent(event.Content)
	}
}

func (r *Replayer) fmtDecision(seq, ts string, event *session.Event) {
	style := errorStyle
	if event.Meta != nil && event.Meta.Passed != nil && *event.Meta.Passed {
		style = successStyle
	}
	fmt.Fprintln(r.output)
	r.line(seq, ts, titleStyle.Render("DECISION")+" "+style.Render(event.Content))
}

func (r *Replayer) fmtGatewayAttempt(seq, ts string, event *session.Event) {
	meta := event.Meta
	if meta == nil {
		meta = &session.EventMeta{}
	}
	// Successful calls are noise at normal verbosity.
	if event.Error == "" && r.verbosity < 1 {
		return
	}
	body := fmt.Sprintf("%s %s %s", gatewayStyle.Render("GATEWAY"), valueStyle.Render(meta.Request),
		dimStyle.Render(fmt.Sprintf("attempt %d, %s", meta.Attempt, formatDuration(meta.LatencyMs))))
	if meta.Model != "" {
		body += " " + dimStyle.Render(meta.Model)
	}
	r.line(seq, ts, body)
	if event.Error != "" {
		r.printError(event.Error)
	}
	if r.verbosity >= 2 {
		r.printBlock("system", meta.System)
		r.printBlock("prompt", meta.Prompt)
		r.printBlock("response", meta.Response)
	}
}

// printContent prints content with timeline indentation.
func (r *Replayer) printContent(content string) {
	if content == "" {
		return
	}
	content = r.truncate(content)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(r.output, "      │          │   %s\n", line)
	}
}

func (r *Replayer) printDetail(label, value string) {
	fmt.Fprintf(r.output, "      │          │   %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(r.truncate(value)))
}

func (r *Replayer) printBlock(name, content string) {
	if content == "" {
		return
	}
	fmt.Fprintf(r.output, "      │          │   %s\n", blockHeaderStyle.Render("── "+name+" ──"))
	r.printContent(content)
}

func (r *Replayer) printError(err string) {
	fmt.Fprintf(r.output, "      │          │   %s\n", errorStyle.Render(err))
}

func (r *Replayer) truncate(s string) string {
	if r.maxContentSize <= 0 || len(s) <= r.maxContentSize {
		return s
	}
	cut := r.maxContentSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("... (%d bytes truncated)", len(s)-cut)
}
