// Package main provides runtime execution for sittings.
package main

import (
	"context"
	"fmt"
	"io"

	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/config"
	"github.com/vinayprograms/parliament/internal/faction"
	"github.com/vinayprograms/parliament/internal/session"
	"github.com/vinayprograms/parliament/internal/sitting"
	"github.com/vinayprograms/parliament/internal/speaker"
	"github.com/vinayprograms/parliament/internal/structured"
	"github.com/vinayprograms/parliament/internal/telemetry"
)

// runtime holds everything one sitting needs.
type runtime struct {
	cfg    *config.Config
	roster *faction.Roster
	out    *printer
	logger *logging.Logger

	// Components
	provider        llm.Provider // factions
	speakerProvider llm.Provider // Speaker rulings
	store           *session.FileStore
	sessions        *session.Manager
}

// newRuntime loads the roster and opens the journal store. Providers are
// attached separately so tests can substitute them.
func newRuntime(cfg *config.Config, rosterFile string, w io.Writer, quiet bool) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		out:    &printer{w: w, quiet: quiet},
		logger: logging.New().WithComponent("runtime"),
	}

	if rosterFile == "" {
		rosterFile = cfg.Factions.File
	}
	if rosterFile == "" {
		rt.roster = faction.DefaultRoster()
	} else {
		r, err := faction.LoadRoster(rosterFile)
		if err != nil {
			return nil, err
		}
		rt.roster = r
	}

	if cfg.Storage.Record {
		store, err := session.NewFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		rt.store = store
		rt.sessions = session.NewManager(store)
	}
	return rt, nil
}

// initProviders creates the faction and Speaker backends from config.
func (rt *runtime) initProviders(creds *credentials.Credentials) error {
	var err error
	rt.provider, err = newProvider(rt.cfg.LLM, creds)
	if err != nil {
		return err
	}
	if rt.cfg.SpeakerLLM.Model == "" {
		rt.speakerProvider = rt.provider
		return nil
	}
	rt.speakerProvider, err = newProvider(rt.cfg.SpeakerModel(), creds)
	return err
}

func (rt *runtime) gateway(p llm.Provider, model string, sess *session.Session) *structured.Gateway {
	gc := structured.Config{
		Provider:       p,
		MaxAttempts:    rt.cfg.Gateway.MaxAttempts,
		AttemptTimeout: rt.cfg.Gateway.AttemptTimeout.Duration,
		BackOff:        gatewayBackOff(rt.cfg.Gateway.Backoff),
	}
	if sess != nil {
		gc.OnAttempt = sitting.RecordAttempts(sess, model)
	}
	return structured.New(gc)
}

// sit deliberates b and persists the journal whatever the outcome.
func (rt *runtime) sit(ctx context.Context, b *bill.Bill) (*sitting.Result, *session.Session, error) {
	var sess *session.Session
	if rt.sessions != nil {
		var err error
		if sess, err = rt.sessions.Create(b.ID().String(), b.Version(), b.Title()); err != nil {
			return nil, nil, fmt.Errorf("create journal: %w", err)
		}
	}

	factionGateway := rt.gateway(rt.provider, rt.cfg.LLM.Model, sess)
	speakerGateway := factionGateway
	if rt.speakerProvider != nil && rt.speakerProvider != rt.provider {
		speakerGateway = rt.gateway(rt.speakerProvider, rt.cfg.SpeakerModel().Model, sess)
	}

	factions, err := faction.Build(rt.roster, factionGateway)
	if err != nil {
		return nil, sess, err
	}
	participants := make([]faction.Participant, len(factions))
	for i, f := range factions {
		participants[i] = f
	}

	proc := rt.cfg.Procedure
	runner, err := sitting.New(sitting.Config{
		Procedure:     speaker.Config{StatementRounds: proc.StatementRounds, DebateRounds: proc.DebateRounds},
		Parallel:      proc.Parallel,
		Concurrency:   proc.Concurrency,
		DelegateOrder: rt.cfg.Speaker.DelegateOrder,
		DelegateVeto:  rt.cfg.Speaker.DelegateVeto,
		StaticVeto:    rt.cfg.Speaker.Veto,
		Gateway:       speakerGateway,
		Journal:       sess,
	}, participants)
	if err != nil {
		return nil, sess, err
	}
	rt.out.attach(runner)
	rt.out.bill(b)

	rt.logger.Info("sitting convened", map[string]interface{}{
		"bill":     b.Title(),
		"factions": runner.Names(),
	})

	result, runErr := runner.Run(ctx, b)
	if sess != nil {
		if runErr != nil {
			sess.Fail(runErr)
		} else {
			sess.Complete(result.Decision.Summary())
		}
		if err := rt.sessions.Update(sess); err != nil {
			rt.logger.Error("failed to save journal", map[string]interface{}{"error": err.Error()})
			if runErr == nil {
				runErr = fmt.Errorf("save journal: %w", err)
			}
		} else {
			rt.out.journal(rt.store.Path(sess.ID))
		}
	}
	return result, sess, runErr
}

// runBill is the run command.
func runBill(ctx context.Context, cmd RunCmd, w io.Writer) error {
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		return err
	}
	applyOverrides(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	b, err := bill.LoadFile(cmd.Bill)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Protocol: cfg.Telemetry.Protocol,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
		Version:  version,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			fmt.Fprintf(w, "telemetry shutdown: %v\n", err)
		}
	}()

	rt, err := newRuntime(cfg, cmd.Factions, w, cmd.Quiet)
	if err != nil {
		return err
	}
	if err := rt.initProviders(globalCreds); err != nil {
		return err
	}
	_, _, err = rt.sit(ctx, b)
	return err
}

// applyOverrides folds command-line flags into cfg.
func applyOverrides(cfg *config.Config, cmd RunCmd) {
	if cmd.StatementRounds >= 0 {
		cfg.Procedure.StatementRounds = cmd.StatementRounds
	}
	if cmd.DebateRounds >= 0 {
		cfg.Procedure.DebateRounds = cmd.DebateRounds
	}
	if cmd.Sequential {
		cfg.Procedure.Parallel = false
	}
	if cmd.NoRecord {
		cfg.Storage.Record = false
	}
}
