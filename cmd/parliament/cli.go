// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run a bill through a parliamentary sitting"`
	Validate ValidateCmd `cmd:"" help:"Validate a bill and the configuration"`
	Replay   ReplayCmd   `cmd:"" help:"Replay a sitting journal for forensic analysis"`
	Factions FactionsCmd `cmd:"" help:"List the factions of a roster"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// RunCmd deliberates a bill.
type RunCmd struct {
	Bill            string `arg:"" help:"Bill YAML file"`
	Config          string `short:"c" help:"Config file path (default: ./parliament.toml)"`
	Factions        string `short:"f" help:"Faction roster YAML (overrides config)"`
	StatementRounds int    `default:"-1" help:"Statement round budget (overrides config)"`
	DebateRounds    int    `default:"-1" help:"Debate round budget (overrides config)"`
	Sequential      bool   `help:"Consult factions one at a time"`
	NoRecord        bool   `help:"Do not write a session journal"`
	Quiet           bool   `short:"q" help:"Only print the decision"`
}

// ValidateCmd checks a bill without convening the chamber.
type ValidateCmd struct {
	Bill   string `arg:"" help:"Bill YAML file"`
	Config string `short:"c" help:"Config file path (default: ./parliament.toml)"`
}

// ReplayCmd replays a sitting journal.
type ReplayCmd struct {
	Session    string `arg:"" help:"Session journal (.jsonl) to replay"`
	Verbose    int    `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	MaxContent int    `default:"51200" help:"Maximum bytes printed per content field (0 = unlimited)"`
}

// FactionsCmd lists a roster.
type FactionsCmd struct {
	File string `arg:"" optional:"" help:"Roster YAML (default: built-in roster)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
