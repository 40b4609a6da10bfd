package replay

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vinayprograms/parliament/internal/session"
)

// Stats holds aggregate statistics for a sitting.
type Stats struct {
	TotalDurationMs int64

	// Contributions
	Statements  int
	DebateTurns int
	Passes      int
	Amendments  int
	Votes       map[string]int // by choice

	// Structured-output gateway
	GatewayCalls    int
	GatewayFailures int
	GatewayTotalMs  int64
	GatewayAvgMs    int64
	GatewayByName   map[string]int

	Degradations []string
	Escalated    bool
	Decision     string
}

// ComputeStats calculates aggregate statistics from journal events.
func ComputeStats(sess *session.Session) *Stats {
	stats := &Stats{
		Votes:         make(map[string]int),
		GatewayByName: make(map[string]int),
	}

	var first, last time.Time
	for _, event := range sess.Events {
		if first.IsZero() || event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if event.Timestamp.After(last) {
			last = event.Timestamp
		}

		switch event.Type {
		case session.EventStatement:
			stats.Statements++
		case session.EventDebate:
			stats.DebateTurns++
		case session.EventPass:
			stats.Passes++
		case session.EventAmendment:
			stats.Amendments++
		case session.EventVote:
			if event.Meta != nil {
				stats.Votes[event.Meta.Choice]++
			}
		case session.EventEscalation:
			stats.Escalated = true
		case session.EventDecision:
			stats.Decision = event.Content
		case session.EventDegradation:
			stats.Degradations = append(stats.Degradations, event.Content)
		case session.EventGatewayAttempt:
			stats.GatewayCalls++
			stats.GatewayTotalMs += event.DurationMs
			if event.Error != "" {
				stats.GatewayFailures++
			}
			if event.Meta != nil {
				stats.GatewayByName[event.Meta.Request]++
			}
		}
	}

	if !first.IsZero() {
		stats.TotalDurationMs = last.Sub(first).Milliseconds()
	}
	if stats.GatewayCalls > 0 {
		stats.GatewayAvgMs = stats.GatewayTotalMs / int64(stats.GatewayCalls)
	}
	return stats
}

// PrintStats writes the statistics to w.
func PrintStats(w io.Writer, stats *Stats) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("═══════════════════════════════════════════════════════════════════"))
	fmt.Fprintln(w, headerStyle.Render("                         SITTING STATISTICS                         "))
	fmt.Fprintln(w, headerStyle.Render("═══════════════════════════════════════════════════════════════════"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Total Duration:"), valueStyle.Render(formatDuration(stats.TotalDurationMs)))
	if stats.Escalated {
		fmt.Fprintln(w, warnStyle.Render("Escalated straight to voting"))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("Contributions:"))
	printCount(w, "Statements:", stats.Statements)
	printCount(w, "Debate turns:", stats.DebateTurns)
	printCount(w, "Passes:", stats.Passes)
	printCount(w, "Amendments:", stats.Amendments)
	fmt.Fprintln(w)

	if len(stats.Votes) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Votes:"))
		for _, choice := range sortedKeys(stats.Votes) {
			fmt.Fprintf(w, "  %s %s\n", choiceStyle(choice).Render(choice+":"), valueStyle.Render(fmt.Sprintf("%d", stats.Votes[choice])))
		}
		fmt.Fprintln(w)
	}

	if stats.GatewayCalls > 0 {
		fmt.Fprintln(w, headerStyle.Render("Gateway Calls:"))
		printCount(w, "Calls:", stats.GatewayCalls)
		printCount(w, "Failures:", stats.GatewayFailures)
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Total:"), valueStyle.Render(formatDuration(stats.GatewayTotalMs)))
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Average:"), valueStyle.Render(formatDuration(stats.GatewayAvgMs)))
		for _, name := range sortedKeys(stats.GatewayByName) {
			fmt.Fprintf(w, "    %s %s\n", labelStyle.Render(name+":"), valueStyle.Render(fmt.Sprintf("%d", stats.GatewayByName[name])))
		}
		fmt.Fprintln(w)
	}

	if len(stats.Degradations) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Degradations:"))
		for _, d := range stats.Degradations {
			fmt.Fprintf(w, "  %s\n", degradeStyle.Render(d))
		}
		fmt.Fprintln(w)
	}
}

func printCount(w io.Writer, label string, n int) {
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label), valueStyle.Render(fmt.Sprintf("%d", n)))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDuration formats milliseconds as human-readable duration.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm%ds", mins, secs)
}
