package speaker

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinayprograms/parliament/internal/structured"
)

const speakerSystemPrompt = `You are the Speaker of a deliberative parliament.
You enforce procedure. You have authority but no opinion on the bill itself.
Your rulings must be fair to every faction and must be justified briefly.`

type orderRuling struct {
	FactionOrder []string `json:"faction_order"`
	Reasoning    string   `json:"reasoning"`
}

type vetoRuling struct {
	FactionsWithVeto []string `json:"factions_with_veto"`
	Reasoning        string   `json:"reasoning"`
}

// DetermineDebateOrder asks the gateway for a speaking order based on each
// faction's opening statement. The ruling is used only if it is a permutation
// of names. Any failure, or no gateway, returns names unchanged.
func (a *Authority) DetermineDebateOrder(ctx context.Context, names []string, statements map[string]string) []string {
	fallback := append([]string(nil), names...)
	if a.gateway == nil || len(names) < 2 {
		return fallback
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Bill: %s\n\n%s\n\n", a.bill.Title(), a.bill.Body())
	sb.WriteString("Opening statements:\n")
	for _, n := range names {
		fmt.Fprintf(&sb, "- %s: %s\n", n, statements[n])
	}
	sb.WriteString("\nDecide the order in which the factions speak during debate. ")
	sb.WriteString("Let the factions with the strongest disagreement engage early. ")
	fmt.Fprintf(&sb, "faction_order must list every one of these factions exactly once: %s.\n", strings.Join(names, ", "))

	res, err := a.gateway.Generate(ctx, structured.Request{
		Name:   "debate_order",
		System: speakerSystemPrompt,
		User:   sb.String(),
		Schema: structured.DebateOrderSchema,
		Policy: structured.FailOpen,
	})
	if err != nil {
		a.logger.Warn("debate order delegation failed, using roster order", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}

	var ruling orderRuling
	if err := res.Decode(&ruling); err != nil || !isPermutation(ruling.FactionOrder, names) {
		a.logger.Warn("debate order rejected, using roster order", map[string]interface{}{
			"proposed": ruling.FactionOrder,
		})
		return fallback
	}

	a.logger.Info("debate order determined", map[string]interface{}{
		"order":     ruling.FactionOrder,
		"reasoning": ruling.Reasoning,
	})
	return append([]string(nil), ruling.FactionOrder...)
}

// DetermineVetoGrants asks the gateway which factions should hold a veto on
// this bill, given its risks and unknowns and each faction's digest. Names
// outside names are discarded. Surviving grants are applied and returned in
// roster order. On failure nothing is granted.
func (a *Authority) DetermineVetoGrants(ctx context.Context, names []string, digests map[string]string) []string {
	if a.gateway == nil || len(names) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Bill: %s\n\n%s\n\n", a.bill.Title(), a.bill.Body())
	writeList(&sb, "Known risks", a.bill.KnownRisks())
	writeList(&sb, "Unknowns", a.bill.Unknowns())
	sb.WriteString("Factions:\n")
	for _, n := range names {
		fmt.Fprintf(&sb, "- %s: %s\n", n, digests[n])
	}
	sb.WriteString("\nA veto lets a faction reject the bill outright regardless of vote weights. ")
	sb.WriteString("Grant veto power only to factions whose red lines are directly threatened by this bill's risks. ")
	sb.WriteString("An empty list is a valid ruling.\n")

	res, err := a.gateway.Generate(ctx, structured.Request{
		Name:   "veto_grants",
		System: speakerSystemPrompt,
		User:   sb.String(),
		Schema: structured.VetoGrantsSchema,
		Policy: structured.FailOpen,
	})
	if err != nil {
		a.logger.Warn("veto delegation failed, granting none", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	var ruling vetoRuling
	if err := res.Decode(&ruling); err != nil {
		a.logger.Warn("veto ruling unreadable, granting none", map[string]interface{}{"error": err.Error()})
		return nil
	}

	requested := make(map[string]bool, len(ruling.FactionsWithVeto))
	for _, f := range ruling.FactionsWithVeto {
		requested[f] = true
	}
	var granted []string
	for _, n := range names {
		if requested[n] {
			granted = append(granted, n)
			a.AssignVeto(n)
		}
	}
	for f := range requested {
		if !contains(names, f) {
			a.logger.Warn("veto ruling named unknown faction", map[string]interface{}{"faction": f})
		}
	}

	a.logger.Info("veto powers granted", map[string]interface{}{
		"factions":  granted,
		"reasoning": ruling.Reasoning,
	})
	return granted
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
	sb.WriteString("\n")
}

// isPermutation reports whether got holds exactly the elements of want.
func isPermutation(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	counts := make(map[string]int, len(want))
	for _, w := range want {
		counts[w]++
	}
	for _, g := range got {
		counts[g]--
		if counts[g] < 0 {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
