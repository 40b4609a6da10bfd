package structured

import (
	"errors"
	"fmt"
)

// ErrExhausted is matched by every *ExhaustedError.
var ErrExhausted = errors.New("structured output attempts exhausted")

// Degrade tells the caller how an exhausted generation should be absorbed.
type Degrade string

const (
	// FailOpen: fall back to a safe default (authority delegations).
	FailOpen Degrade = "fail_open"
	// FailSoft: substitute placeholder output (faction contributions).
	FailSoft Degrade = "fail_soft"
)

// ExhaustedError is returned when no attempt produced schema-valid output.
type ExhaustedError struct {
	Name     string
	Attempts int
	Policy   Degrade
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: no valid output after %d attempts: %v", e.Name, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}
