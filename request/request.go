// Package request defines the queued request entity, its priority tiers,
// and the Handle a producer waits on for the request's outcome.
package request

import (
	"time"

	"github.com/aidlink/triage/id"
)

// State represents the lifecycle state of a queued request.
type State string

const (
	// StatePending means the request is waiting in the queue.
	StatePending State = "pending"
	// StateActive means the scheduler has launched the request's handler.
	StateActive State = "active"
	// StateCompleted means the handler finished successfully.
	StateCompleted State = "completed"
	// StateErrored means the handler returned an error.
	StateErrored State = "errored"
	// StateEvicted means an overflow policy displaced the request before execution.
	StateEvicted State = "evicted"
	// StateCancelled means the producer cancelled the request before execution.
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateErrored, StateEvicted, StateCancelled:
		return true
	default:
		return false
	}
}

// Request wraps a client payload with scheduling metadata. All fields
// are set at admission and must not be mutated afterwards; the payload
// is opaque to the scheduling core.
type Request struct {
	ID         id.RequestID  `json:"id"`
	Type       string        `json:"type"`
	Priority   Priority      `json:"priority"`
	Payload    []byte        `json:"payload,omitempty"`
	ClientID   string        `json:"client_id,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}
