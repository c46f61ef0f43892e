package services

import "errors"

// Typed failure kinds returned by the core. All are local, synchronous and
// non-retryable; the handlers map them to HTTP statuses. The core never
// logs or formats them itself.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not in session")
	ErrInvalidTransition   = errors.New("invalid session phase transition")
	ErrInvalidSize         = errors.New("size must be non-negative")
)
