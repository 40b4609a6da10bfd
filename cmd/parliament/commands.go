package main

import (
	"fmt"
	"io"

	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/faction"
	"github.com/vinayprograms/parliament/internal/replay"
)

// validateBill checks the bill, the config and the configured roster.
func validateBill(cmd ValidateCmd, w io.Writer) error {
	b, err := bill.LoadFile(cmd.Bill)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		return err
	}
	roster := faction.DefaultRoster()
	if cfg.Factions.File != "" {
		if roster, err = faction.LoadRoster(cfg.Factions.File); err != nil {
			return err
		}
	}
	known := make(map[string]bool)
	for _, name := range roster.Names() {
		known[name] = true
	}
	for _, v := range cfg.Speaker.Veto {
		if !known[v] {
			return fmt.Errorf("speaker.veto names unknown faction %q", v)
		}
	}

	fmt.Fprintf(w, "✓ %s (v%d) is valid\n", b.Title(), b.Version())
	fmt.Fprintf(w, "  Status:   %s\n", b.Status())
	fmt.Fprintf(w, "  Factions: %d\n", len(roster.Factions))
	fmt.Fprintf(w, "  Rounds:   %d statement, %d debate\n", cfg.Procedure.StatementRounds, cfg.Procedure.DebateRounds)
	return nil
}

// runReplay replays a sitting journal for forensic analysis.
func runReplay(cmd ReplayCmd, w io.Writer) error {
	r := replay.New(w, cmd.Verbose, replay.WithMaxContentSize(cmd.MaxContent))
	return r.ReplayFile(cmd.Session)
}

// listFactions prints a roster, the built-in one when path is empty.
func listFactions(path string, w io.Writer) error {
	roster := faction.DefaultRoster()
	if path != "" {
		var err error
		if roster, err = faction.LoadRoster(path); err != nil {
			return err
		}
	}
	printRoster(w, roster)
	return nil
}
