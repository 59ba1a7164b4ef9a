package lead

import "errors"

// Sentinel errors for the lead service layer.
var (
	ErrNotFound          = errors.New("lead not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateEmail    = errors.New("lead email already exists")
	ErrTerminal          = errors.New("lead is in a terminal state")
)
