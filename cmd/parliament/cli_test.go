package main

import (
	"testing"

	"github.com/alecthomas/kong"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		t.Fatal(err)
	}
	return &cli, ctx
}

func TestRunCmd_Defaults(t *testing.T) {
	cli, ctx := parse(t, "run", "bill.yaml")

	if ctx.Command() != "run <bill>" {
		t.Errorf("command = %q", ctx.Command())
	}
	if cli.Run.Bill != "bill.yaml" {
		t.Errorf("expected bill 'bill.yaml', got %q", cli.Run.Bill)
	}
	if cli.Run.StatementRounds != -1 || cli.Run.DebateRounds != -1 {
		t.Errorf("round overrides should default to -1, got %d/%d", cli.Run.StatementRounds, cli.Run.DebateRounds)
	}
	if cli.Run.Sequential || cli.Run.NoRecord || cli.Run.Quiet {
		t.Error("boolean flags should default to false")
	}
}

func TestRunCmd_Flags(t *testing.T) {
	cli, _ := parse(t, "run", "-c", "p.toml", "-f", "roster.yaml",
		"--statement-rounds", "0", "--debate-rounds", "4", "--sequential", "--no-record", "-q", "bill.yaml")

	if cli.Run.Config != "p.toml" {
		t.Errorf("config = %q", cli.Run.Config)
	}
	if cli.Run.Factions != "roster.yaml" {
		t.Errorf("factions = %q", cli.Run.Factions)
	}
	if cli.Run.StatementRounds != 0 || cli.Run.DebateRounds != 4 {
		t.Errorf("rounds = %d/%d", cli.Run.StatementRounds, cli.Run.DebateRounds)
	}
	if !cli.Run.Sequential || !cli.Run.NoRecord || !cli.Run.Quiet {
		t.Error("expected boolean flags to be set")
	}
}

func TestRunCmd_RequiresBill(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"run"}); err == nil {
		t.Error("expected error without a bill")
	}
}

func TestReplayCmd_Verbose(t *testing.T) {
	cli, ctx := parse(t, "replay", "-vv", "sitting.jsonl")

	if ctx.Command() != "replay <session>" {
		t.Errorf("command = %q", ctx.Command())
	}
	if cli.Replay.Session != "sitting.jsonl" {
		t.Errorf("session = %q", cli.Replay.Session)
	}
	if cli.Replay.Verbose != 2 {
		t.Errorf("expected verbose=2, got %d", cli.Replay.Verbose)
	}
	if cli.Replay.MaxContent != 51200 {
		t.Errorf("max content = %d", cli.Replay.MaxContent)
	}
}

func TestFactionsCmd_OptionalFile(t *testing.T) {
	cli, ctx := parse(t, "factions")
	if ctx.Command() != "factions" || cli.Factions.File != "" {
		t.Errorf("command = %q file = %q", ctx.Command(), cli.Factions.File)
	}

	cli, ctx = parse(t, "factions", "roster.yaml")
	if ctx.Command() != "factions <file>" || cli.Factions.File != "roster.yaml" {
		t.Errorf("command = %q file = %q", ctx.Command(), cli.Factions.File)
	}
}

func TestValidateCmd(t *testing.T) {
	cli, _ := parse(t, "validate", "--config", "p.toml", "bill.yaml")
	if cli.Validate.Bill != "bill.yaml" || cli.Validate.Config != "p.toml" {
		t.Errorf("validate = %+v", cli.Validate)
	}
}
