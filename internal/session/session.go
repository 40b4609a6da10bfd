// Package session records the forensic journal of a sitting and persists it.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status constants for sessions.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Event types for the session journal.
const (
	// Procedure
	EventPhase      = "phase"      // Authority moved to a new phase
	EventEscalation = "escalation" // Statement budget exceeded, jumped to voting
	EventOrder      = "order"      // Debate speaking order fixed
	EventVeto       = "veto"       // Veto granted

	// Faction contributions
	EventStatement = "statement" // Opening position
	EventDebate    = "debate"    // Debate turn
	EventPass      = "pass"      // Faction declined to speak
	EventAmendment = "amendment" // Proposed change
	EventVote      = "vote"      // Weighted vote

	// Outcome
	EventDecision    = "decision"    // Final decision
	EventDegradation = "degradation" // Faction fell back to a neutral outcome

	// Structured-output gateway
	EventGatewayAttempt = "gateway_attempt" // One backend call
)

// Session is the journal of one sitting.
type Session struct {
	ID          string    `json:"id"`
	BillID      string    `json:"bill_id"`
	BillVersion int       `json:"bill_version"`
	BillTitle   string    `json:"bill_title"`
	Status      string    `json:"status"`
	Result      string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	Events      []Event   `json:"events"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	seqCounter uint64
	mu         sync.Mutex
}

// Event is a single journal entry.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Correlation links related events, e.g. a vote and its gateway attempts.
	CorrelationID string `json:"corr_id,omitempty"`
	ParentSeqID   uint64 `json:"parent,omitempty"`

	Phase   string `json:"phase,omitempty"`
	Faction string `json:"faction,omitempty"`
	Round   int    `json:"round,omitempty"`

	Content    string `json:"content,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`

	Meta *EventMeta `json:"meta,omitempty"`
}

// EventMeta holds type-specific detail.
type EventMeta struct {
	// Phase changes
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Forced bool   `json:"forced,omitempty"`

	// Escalation
	Skipped []string `json:"skipped,omitempty"`

	// Debate
	Targets []string `json:"targets,omitempty"`
	Order   []string `json:"order,omitempty"`

	// Amendments
	Rationale string `json:"rationale,omitempty"`

	// Votes and decision
	Choice   string   `json:"choice,omitempty"`
	Weight   float64  `json:"weight,omitempty"`
	Passed   *bool    `json:"passed,omitempty"`
	Approve  float64  `json:"approve,omitempty"`
	Reject   float64  `json:"reject,omitempty"`
	Abstain  float64  `json:"abstain,omitempty"`
	VetoedBy []string `json:"vetoed_by,omitempty"`

	// Degradation
	Stage string `json:"stage,omitempty"`

	// Gateway attempts
	Request   string `json:"request,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Model     string `json:"model,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	System    string `json:"system,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Response  string `json:"response,omitempty"`
}

// New starts a running session for a bill.
func New(billID string, billVersion int, billTitle string) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.NewString(),
		BillID:      billID,
		BillVersion: billVersion,
		BillTitle:   billTitle,
		Status:      StatusRunning,
		Events:      []Event{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Session) nextSeqID() uint64 {
	return atomic.AddUint64(&s.seqCounter, 1)
}

// CurrentSeqID returns the last used sequence ID, or 0 before any event.
func (s *Session) CurrentSeqID() uint64 {
	return atomic.LoadUint64(&s.seqCounter)
}

// AddEvent appends an event with the next sequence ID and returns that ID.
// Safe for concurrent use.
func (s *Session) AddEvent(event Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.SeqID = s.nextSeqID()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.Events = append(s.Events, event)
	s.UpdatedAt = time.Now()
	return event.SeqID
}

// Snapshot returns a copy of the events recorded so far.
func (s *Session) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.Events...)
}

// Complete marks the session finished with result.
func (s *Session) Complete(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusComplete
	s.Result = result
	s.UpdatedAt = time.Now()
}

// Fail marks the session failed with err.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusFailed
	if err != nil {
		s.Error = err.Error()
	}
	s.UpdatedAt = time.Now()
}

// StartCorrelation generates a new correlation ID for linking related events.
func (s *Session) StartCorrelation() string {
	return uuid.NewString()[:8]
}

// LastSeqOf returns the sequence ID of the latest event of type t, or 0.
func (s *Session) LastSeqOf(t string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].Type == t {
			return s.Events[i].SeqID
		}
	}
	return 0
}

// Store is the interface for session persistence.
type Store interface {
	Save(sess *Session) error
	Load(id string) (*Session, error)
}

// Manager creates and persists sessions.
type Manager struct {
	store Store
	mu    sync.Mutex
}

// NewManager creates a new session manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create starts and saves a session for a bill.
func (m *Manager) Create(billID string, billVersion int, billTitle string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := New(billID, billVersion, billTitle)
	if err := m.store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	return m.store.Load(id)
}

// Update saves changes to a session.
func (m *Manager) Update(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess.mu.Lock()
	sess.UpdatedAt = time.Now()
	sess.mu.Unlock()
	return m.store.Save(sess)
}
