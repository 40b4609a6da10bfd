package bill

import "errors"

// Structural validation errors raised by the constructors in this package.
var (
	ErrEmptyText         = errors.New("field must be a non-empty string")
	ErrInvalidID         = errors.New("invalid identifier")
	ErrInvalidVersion    = errors.New("bill version must start at 1")
	ErrInvalidStatus     = errors.New("invalid bill status")
	ErrPrematureDecision = errors.New("amendment cannot be accepted or rejected at creation time")
	ErrInvalidRound      = errors.New("round number must be positive")
	ErrInvalidChoice     = errors.New("invalid vote choice")
	ErrNonPositiveWeight = errors.New("vote weight must be positive")
	ErrNegativeTotal     = errors.New("weight totals must be non-negative")
	ErrNoVotes           = errors.New("decision must reference at least one vote")
	ErrMissingBillRef    = errors.New("missing bill reference")
)
