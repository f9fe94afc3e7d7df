package triage

import (
	"errors"

	"github.com/aidlink/triage/queue"
	"github.com/aidlink/triage/request"
)

var (
	// Admission errors.
	ErrShuttingDown = errors.New("triage: queue is shutting down")
	ErrRateLimited  = errors.New("triage: admission rate limit exceeded")
	ErrNoHandler    = errors.New("triage: no handler configured")

	// ErrQueueFull is returned by Admit when the queue is at capacity
	// and the overflow policy declined to evict an occupant.
	ErrQueueFull = queue.ErrFull

	// ErrEvicted resolves the handle of a request displaced by an
	// overflow policy.
	ErrEvicted = request.ErrEvicted

	// ErrCancelled resolves the handle of a request cancelled before it
	// was dispatched.
	ErrCancelled = request.ErrCancelled
)
