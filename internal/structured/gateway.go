// Package structured coerces free-text model output into schema-valid JSON.
//
// A Gateway sends one chat request per attempt, unwraps any fenced block,
// parses the payload and validates it against a JSON Schema. Failed attempts
// are retried with the error fed back to the model until the attempt budget
// runs out.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
)

const (
	DefaultMaxAttempts    = 4
	DefaultAttemptTimeout = 60 * time.Second
)

// Generator is the contract callers depend on. *Gateway implements it.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Request describes one structured generation.
type Request struct {
	Name        string  // label for logs, spans and errors
	System      string  // system instructions
	User        string  // user instructions
	Schema      *Schema // expected output shape
	MaxAttempts int     // 0 uses the gateway default
	Policy      Degrade // how the caller absorbs exhaustion
}

// Result is a schema-valid value and the raw text it came from.
type Result struct {
	Value    interface{}
	Raw      string
	Attempts int
}

// Decode converts the validated value into dst.
func (r *Result) Decode(dst interface{}) error {
	data, err := json.Marshal(r.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Caller identifies who a generation is made for. It travels in the
// context so attempts can be attributed without widening Generator.
type Caller struct {
	Faction       string // empty for the Speaker's own rulings
	CorrelationID string
}

type callerKey struct{}

// WithCaller returns a context that attributes generations to c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller attached to ctx, or the zero Caller.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// Attempt is reported to Config.OnAttempt after every backend call.
type Attempt struct {
	Name     string
	Number   int
	Caller   Caller
	System   string
	User     string
	Response string
	Err      error
	Latency  time.Duration
}

// Config holds gateway configuration.
type Config struct {
	Provider       llm.Provider
	MaxAttempts    int
	AttemptTimeout time.Duration

	// BackOff paces retries. Nil uses an exponential policy.
	BackOff func() backoff.BackOff

	OnAttempt func(Attempt)
}

// Gateway is the resilient structured-output client.
type Gateway struct {
	provider       llm.Provider
	maxAttempts    int
	attemptTimeout time.Duration
	newBackOff     func() backoff.BackOff
	onAttempt      func(Attempt)
	logger         *logging.Logger
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	g := &Gateway{
		provider:       cfg.Provider,
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: cfg.AttemptTimeout,
		newBackOff:     cfg.BackOff,
		onAttempt:      cfg.OnAttempt,
		logger:         logging.New().WithComponent("gateway"),
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.attemptTimeout <= 0 {
		g.attemptTimeout = DefaultAttemptTimeout
	}
	if g.newBackOff == nil {
		g.newBackOff = DefaultBackOff
	}
	return g
}

// DefaultBackOff is a short exponential policy suited to chat backends.
func DefaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 8 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// ZeroBackOff retries immediately.
func ZeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

// Generate runs attempts until one yields schema-valid output, the attempt
// budget is spent, or ctx is done. Cancellation returns ctx.Err() without
// further attempts. Exhaustion returns *ExhaustedError.
func (g *Gateway) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("%s: no provider configured", req.Name)
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = g.maxAttempts
	}

	ctx, span := startGenerateSpan(ctx, req.Name, maxAttempts)
	system := withSchema(req.System, req.Schema)
	user := req.User

	var (
		result  *Result
		lastErr error
		attempt int
	)

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		value, raw, err := g.attempt(ctx, req.Name, attempt, system, user, req.Schema)
		if err == nil {
			result = &Result{Value: value, Raw: raw, Attempts: attempt}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		lastErr = err
		user = reinforce(req.User, err)
		return err
	}

	notify := func(err error, wait time.Duration) {
		g.logger.Warn("structured output rejected, retrying", map[string]interface{}{
			"name":    req.Name,
			"attempt": attempt,
			"error":   err.Error(),
			"wait_ms": wait.Milliseconds(),
		})
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), uint64(maxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, bo, notify)

	if err == nil {
		endGenerateSpan(span, attempt, nil)
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		endGenerateSpan(span, attempt, ctxErr)
		return nil, ctxErr
	}

	exhausted := &ExhaustedError{Name: req.Name, Attempts: attempt, Policy: req.Policy, Last: lastErr}
	recordExhausted(ctx, req.Name)
	g.logger.Error("structured output exhausted", map[string]interface{}{
		"name":     req.Name,
		"attempts": attempt,
		"policy":   string(req.Policy),
		"error":    fmt.Sprint(lastErr),
	})
	endGenerateSpan(span, attempt, exhausted)
	return nil, exhausted
}

// attempt performs one bounded backend call and validates the response.
func (g *Gateway) attempt(ctx context.Context, name string, n int, system, user string, schema *Schema) (interface{}, string, error) {
	actx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	actx, span := startAttemptSpan(actx, name, n)
	start := time.Now()

	resp, err := g.provider.Chat(actx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})

	var raw string
	var value interface{}
	if err == nil && actx.Err() != nil {
		err = actx.Err()
	}
	if err != nil {
		err = fmt.Errorf("backend call failed: %w", err)
	} else {
		raw = resp.Content
		value, err = parse(raw, schema)
	}

	latency := time.Since(start)
	recordAttempt(ctx, name, err == nil)
	endAttemptSpan(span, err)

	if g.onAttempt != nil {
		g.onAttempt(Attempt{
			Name:     name,
			Number:   n,
			Caller:   CallerFrom(ctx),
			System:   system,
			User:     user,
			Response: raw,
			Err:      err,
			Latency:  latency,
		})
	}
	g.logger.Debug("structured attempt", map[string]interface{}{
		"name":       name,
		"attempt":    n,
		"ok":         err == nil,
		"latency_ms": latency.Milliseconds(),
	})

	return value, raw, err
}

// withSchema appends the expected shape to the system instructions.
func withSchema(system string, schema *Schema) string {
	if schema == nil {
		return system
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(system))
	sb.WriteString("\n\nRespond with a single JSON value that satisfies this JSON Schema:\n")
	sb.WriteString(schema.Source())
	return sb.String()
}

// reinforce rewrites the user instructions after a failed attempt.
func reinforce(original string, err error) string {
	return fmt.Sprintf(`Your previous response was INVALID.

Error:
%v

You must now respond with ONLY valid JSON.
No backticks. No markdown. No explanation.

Original task:
%s`, err, original)
}
