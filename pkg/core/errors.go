package core

import "errors"

// Enqueue validation errors. These are caller bugs, not transient
// failures; the enqueue path rejects and logs them without persisting.
var (
	ErrEmptyTenant     = errors.New("hookq: tenant id must not be empty")
	ErrEmptyTopic      = errors.New("hookq: topic must not be empty")
	ErrInvalidIntent   = errors.New("hookq: invalid intent name")
	ErrInvalidPayload  = errors.New("hookq: payload must be a JSON object")
	ErrPayloadTooLarge = errors.New("hookq: payload exceeds size ceiling")
)

// ErrNoHandler is recorded on jobs dead-lettered because no handler
// was registered for their intent at dequeue time.
var ErrNoHandler = errors.New("hookq: no handler registered for intent")
