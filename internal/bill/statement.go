package bill

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Statement is one argument made during debate.
type Statement struct {
	id       uuid.UUID
	bill     Ref
	speaker  string
	round    int
	argument string
	targets  []string
}

// NewStatement validates and returns a debate statement. An empty target
// list means the statement is addressed to the whole chamber.
func NewStatement(ref Ref, speaker string, round int, argument string, targets []string) (*Statement, error) {
	if ref.IsZero() {
		return nil, ErrMissingBillRef
	}
	sp, err := requireText("speaker", speaker)
	if err != nil {
		return nil, err
	}
	if round < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRound, round)
	}
	arg, err := requireText("argument", argument)
	if err != nil {
		return nil, err
	}

	var tg []string
	for _, t := range targets {
		if t = strings.TrimSpace(t); t != "" {
			tg = append(tg, t)
		}
	}

	return &Statement{
		id:       uuid.New(),
		bill:     ref,
		speaker:  sp,
		round:    round,
		argument: arg,
		targets:  tg,
	}, nil
}

func (s *Statement) ID() uuid.UUID     { return s.id }
func (s *Statement) Bill() Ref         { return s.bill }
func (s *Statement) Speaker() string   { return s.speaker }
func (s *Statement) Round() int        { return s.round }
func (s *Statement) Argument() string  { return s.argument }
func (s *Statement) Targets() []string { return cloneStrings(s.targets) }

// AddressesAll reports whether the statement has no specific targets.
func (s *Statement) AddressesAll() bool {
	return len(s.targets) == 0
}

type statementView struct {
	ID       uuid.UUID `json:"id"`
	Bill     Ref       `json:"bill"`
	Speaker  string    `json:"speaker"`
	Round    int       `json:"round"`
	Argument string    `json:"argument"`
	Targets  []string  `json:"targets,omitempty"`
}

func (s *Statement) MarshalJSON() ([]byte, error) {
	return json.Marshal(statementView{
		ID:       s.id,
		Bill:     s.bill,
		Speaker:  s.speaker,
		Round:    s.round,
		Argument: s.argument,
		Targets:  s.targets,
	})
}
