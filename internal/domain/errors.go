package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound       = errors.New("domain: not found")
	ErrConflict       = errors.New("domain: conflict")
	ErrInvalidCommand = errors.New("domain: invalid command")
	ErrInvalidEvent   = errors.New("domain: invalid event")
	ErrUnknownEvent   = errors.New("domain: unknown event type")
	ErrUnknownCommand = errors.New("domain: unknown command type")
)
