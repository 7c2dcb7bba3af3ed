package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoAPIKey        = errors.New("generation api key is not configured")
	ErrBotNotMember    = errors.New("bot is not a member of the channel")
	ErrLockHeld        = errors.New("dispatch lock is held")
)

// TransportError wraps a network-level failure (connection refused,
// timeout) talking to an upstream service. It is never retried by the
// dispatch engine; the failed attempt is recorded and the next scheduled
// mark gets a fresh try.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError carries a structured failure returned by a remote
// service. Description is surfaced verbatim in outcome log entries.
type UpstreamError struct {
	Op          string
	Description string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream error: %s", e.Op, e.Description)
}
