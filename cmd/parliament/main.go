// Package main is the entry point for the parliament CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/vinayprograms/agentkit/credentials"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// globalCreds holds loaded credentials (file > env fallback happens in apiKey)
var globalCreds *credentials.Credentials

func init() {
	// Priority: credentials.toml > env vars
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		globalCreds = creds
	}

	// Load .env for any additional env vars
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("parliament"),
		kong.Description("Deliberate a bill through a chamber of model-backed factions."),
		kong.UsageOnError(),
		kongVars(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch kctx.Command() {
	case "run <bill>":
		err = runBill(ctx, cli.Run, os.Stdout)
	case "validate <bill>":
		err = validateBill(cli.Validate, os.Stdout)
	case "replay <session>":
		err = runReplay(cli.Replay, os.Stdout)
	case "factions", "factions <file>":
		err = listFactions(cli.Factions.File, os.Stdout)
	case "version":
		fmt.Printf("parliament version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	default:
		err = fmt.Errorf("unknown command: %s", kctx.Command())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
