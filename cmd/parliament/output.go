package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/faction"
	"github.com/vinayprograms/parliament/internal/sitting"
	"github.com/vinayprograms/parliament/internal/speaker"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	abstainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// printer renders sitting progress. Safe for concurrent use.
type printer struct {
	w     io.Writer
	quiet bool
	mu    sync.Mutex
}

func (p *printer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// attach wires the printer into a runner's callbacks.
func (p *printer) attach(r *sitting.Runner) {
	r.OnDecision = p.decision
	r.OnDegradation = p.degradation
	if p.quiet {
		return
	}
	r.OnPhase = p.phase
	r.OnStatement = p.statement
	r.OnDebate = p.statement
	r.OnAmendment = p.amendment
	r.OnVote = p.vote
}

func (p *printer) bill(b *bill.Bill) {
	if p.quiet {
		return
	}
	p.printf("%s %s %s\n", headerStyle.Render("BILL"), b.Title(), dimStyle.Render(fmt.Sprintf("(%s v%d)", b.ID(), b.Version())))
}

func (p *printer) phase(from, to speaker.Phase, forced bool) {
	line := phaseStyle.Render(string(to))
	if forced {
		line += " " + warnStyle.Render(fmt.Sprintf("(forced from %s)", from))
	}
	p.printf("\n%s\n", line)
}

func (p *printer) statement(s *bill.Statement) {
	to := ""
	if !s.AddressesAll() {
		to = dimStyle.Render(" → " + strings.Join(s.Targets(), ", "))
	}
	p.printf("  %s%s: %s\n", nameStyle.Render(s.Speaker()), to, s.Argument())
}

func (p *printer) amendment(a *bill.Amendment) {
	p.printf("  %s proposes: %s\n    %s\n", nameStyle.Render(a.Proposer()), a.Summary(), dimStyle.Render(a.Rationale()))
}

func (p *printer) vote(v *bill.Vote) {
	p.printf("  %s %s %s %s\n", nameStyle.Render(v.Faction()), choiceStyle(v.Choice()).Render(string(v.Choice())),
		dimStyle.Render(fmt.Sprintf("(%.1f)", v.Weight())), v.Justification())
}

func (p *printer) degradation(d sitting.Degradation) {
	p.printf("  %s %s\n", warnStyle.Render("!"), d.String())
}

func (p *printer) decision(d *bill.Decision) {
	style := failStyle
	if d.Passed() {
		style = passStyle
	}
	p.printf("\n%s\n", style.Render(d.Summary()))
}

func (p *printer) journal(path string) {
	p.printf("%s %s\n", dimStyle.Render("Journal:"), path)
}

func choiceStyle(c bill.Choice) lipgloss.Style {
	switch c {
	case bill.Approve:
		return passStyle
	case bill.Reject:
		return failStyle
	default:
		return abstainStyle
	}
}

// printRoster lists factions with their weights and goals.
func printRoster(w io.Writer, r *faction.Roster) {
	for _, f := range r.Factions {
		fmt.Fprintf(w, "%s %s\n", nameStyle.Render(f.Name), dimStyle.Render(fmt.Sprintf("(weight %.1f)", f.Weight)))
		fmt.Fprintf(w, "  %s\n", f.Ideology.Goal)
		if len(f.Ideology.RedLines) > 0 {
			fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("Red lines:"), strings.Join(f.Ideology.RedLines, "; "))
		}
	}
}
