// Package debate runs the turn-based argument rounds of a sitting.
//
// Each round walks the speaking order once. A speaker either makes a turn or
// passes. Every turn is appended to the transcript before the next speaker is
// asked, and each speaker sees the whole transcript, so later rounds can
// answer arguments made in round one.
package debate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/parliament/internal/bill"
	"github.com/vinayprograms/parliament/internal/speaker"
)

// ErrNotInDebate is returned when rounds are advanced outside the DEBATE phase.
var ErrNotInDebate = errors.New("debate rounds can only advance during debate")

// Turn is one speaker's contribution to a round.
type Turn struct {
	Argument string
	Targets  []string // empty means the whole chamber
}

// Speaker produces debate turns. A nil turn means the speaker passes.
type Speaker interface {
	Name() string
	DebateTurn(ctx context.Context, b *bill.Bill, round int, participants []string, transcript []*bill.Statement) *Turn
}

// PhaseReader exposes the current procedure phase.
type PhaseReader interface {
	Phase() speaker.Phase
}

// Coordinator tracks rounds and the transcript for one debate.
type Coordinator struct {
	mu         sync.Mutex
	authority  PhaseReader
	maxRounds  int
	round      int
	transcript []*bill.Statement
	logger     *logging.Logger

	// OnStatement is called after a turn is recorded.
	OnStatement func(*bill.Statement)
	// OnPass is called when a speaker declines to speak.
	OnPass func(name string, round int)
}

// New creates a coordinator gated by authority's phase.
func New(authority PhaseReader, maxRounds int) *Coordinator {
	return &Coordinator{
		authority: authority,
		maxRounds: maxRounds,
		logger:    logging.New().WithComponent("debate"),
	}
}

// MaxRounds returns the configured round limit.
func (c *Coordinator) MaxRounds() int { return c.maxRounds }

// Round returns the current round number. Zero before the first round.
func (c *Coordinator) Round() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

// Transcript returns a copy of every statement made so far, in order.
func (c *Coordinator) Transcript() []*bill.Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*bill.Statement(nil), c.transcript...)
}

// NextRound increments the round counter. It returns false once the counter
// reaches the maximum, meaning the round just started is the last one.
func (c *Coordinator) NextRound() (bool, error) {
	if p := c.authority.Phase(); p != speaker.PhaseDebate {
		return false, fmt.Errorf("%w: phase is %s", ErrNotInDebate, p)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.round++
	return c.round < c.maxRounds, nil
}

// Run plays the remaining rounds using order. Names in order with no entry in
// speakers are skipped. Run stops early with ctx.Err() if ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, b *bill.Bill, order []string, speakers map[string]Speaker) error {
	if c.Round() >= c.maxRounds {
		return nil
	}
	participants := append([]string(nil), order...)

	for {
		more, err := c.NextRound()
		if err != nil {
			return err
		}
		round := c.Round()
		c.logger.Info("debate round started", map[string]interface{}{
			"round": round,
			"of":    c.maxRounds,
		})

		for _, name := range order {
			if err := ctx.Err(); err != nil {
				return err
			}
			sp, ok := speakers[name]
			if !ok {
				c.logger.Warn("no speaker for name in debate order", map[string]interface{}{"name": name})
				continue
			}
			if err := c.take(ctx, b, sp, round, participants); err != nil {
				return err
			}
		}

		if !more {
			break
		}
	}

	c.logger.Info("debate closed", map[string]interface{}{
		"rounds":     c.Round(),
		"statements": len(c.Transcript()),
	})
	return nil
}

// take asks one speaker for a turn and records it.
func (c *Coordinator) take(ctx context.Context, b *bill.Bill, sp Speaker, round int, participants []string) error {
	turn := sp.DebateTurn(ctx, b, round, participants, c.Transcript())
	if err := ctx.Err(); err != nil {
		return err
	}
	if turn == nil {
		c.pass(sp.Name(), round)
		return nil
	}

	stmt, err := bill.NewStatement(b.Ref(), sp.Name(), round, turn.Argument, knownTargets(turn.Targets, participants, sp.Name()))
	if err != nil {
		c.logger.Warn("discarding malformed debate turn", map[string]interface{}{
			"speaker": sp.Name(),
			"round":   round,
			"error":   err.Error(),
		})
		c.pass(sp.Name(), round)
		return nil
	}

	c.mu.Lock()
	c.transcript = append(c.transcript, stmt)
	c.mu.Unlock()

	if c.OnStatement != nil {
		c.OnStatement(stmt)
	}
	return nil
}

func (c *Coordinator) pass(name string, round int) {
	c.logger.Debug("speaker passed", map[string]interface{}{"speaker": name, "round": round})
	if c.OnPass != nil {
		c.OnPass(name, round)
	}
}

// knownTargets keeps targets that are participants other than the speaker.
func knownTargets(targets, participants []string, self string) []string {
	known := make(map[string]bool, len(participants))
	for _, p := range participants {
		known[p] = true
	}
	var out []string
	for _, t := range targets {
		if known[t] && t != self {
			out = append(out, t)
		}
	}
	return out
}
