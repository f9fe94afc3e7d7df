package request

import (
	"context"
	"errors"
	"sync"

	"github.com/aidlink/triage/id"
)

var (
	// ErrEvicted resolves the handle of a request displaced by an
	// overflow policy to make room for a more urgent arrival.
	ErrEvicted = errors.New("triage: request evicted by overflow policy")

	// ErrCancelled resolves the handle of a request the producer
	// cancelled before it was dispatched.
	ErrCancelled = errors.New("triage: request cancelled")
)

// Outcome is the terminal result of a request.
type Outcome struct {
	Result map[string]any
	Err    error
}

// Handle pairs an admitted request with its dedicated result slot.
// The producer waits on the handle; the scheduler resolves it exactly
// once when the request reaches a terminal state.
//
// The handle also carries the cooperative cancellation signal: Cancel
// marks the request so a still-pending request is discarded at dispatch
// time, and an active request has its handler context cancelled.
type Handle struct {
	req *Request

	mu      sync.Mutex
	state   State
	outcome Outcome
	done    chan struct{}

	cancelOnce sync.Once
	cancelled  chan struct{}
}

// NewHandle creates a Handle in StatePending for the given request.
func NewHandle(req *Request) *Handle {
	return &Handle{
		req:       req,
		state:     StatePending,
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

// ID returns the admitted request's identifier.
func (h *Handle) ID() id.RequestID { return h.req.ID }

// Request returns the underlying request. Treat it as read-only.
func (h *Handle) Request() *Request { return h.req }

// State returns the request's current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done returns a channel closed when the request reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel requests cooperative cancellation. A pending request is
// discarded the next time the scheduler sees it; an active request has
// its handler context cancelled. Cancel never blocks and is safe to
// call multiple times.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() { close(h.cancelled) })
}

// CancelRequested returns a channel closed once Cancel has been called.
func (h *Handle) CancelRequested() <-chan struct{} { return h.cancelled }

// Cancelled reports whether Cancel has been called.
func (h *Handle) Cancelled() bool {
	select {
	case <-h.cancelled:
		return true
	default:
		return false
	}
}

// Activate transitions Pending -> Active. Returns false if the request
// is no longer pending (already dispatched or resolved).
func (h *Handle) Activate() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StatePending {
		return false
	}
	h.state = StateActive
	return true
}

// Complete transitions Active -> Completed and delivers the result.
func (h *Handle) Complete(result map[string]any) bool {
	return h.resolve(StateActive, StateCompleted, Outcome{Result: result})
}

// Fail transitions Active -> Errored and delivers the handler error.
func (h *Handle) Fail(err error) bool {
	return h.resolve(StateActive, StateErrored, Outcome{Err: err})
}

// Evict transitions Pending -> Evicted, resolving the producer's slot
// with ErrEvicted. Active requests are never evicted.
func (h *Handle) Evict() bool {
	return h.resolve(StatePending, StateEvicted, Outcome{Err: ErrEvicted})
}

// Discard transitions Pending -> Cancelled, resolving the producer's
// slot with ErrCancelled. Used when the scheduler pops a request whose
// producer gave up, and when shutdown abandons a never-run queue.
func (h *Handle) Discard() bool {
	return h.resolve(StatePending, StateCancelled, Outcome{Err: ErrCancelled})
}

// resolve performs a single from -> to terminal transition. It returns
// false without side effects when the handle is not in the expected
// state, so each terminal transition happens at most once.
func (h *Handle) resolve(from, to State, out Outcome) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != from {
		return false
	}
	h.state = to
	h.outcome = out
	close(h.done)
	return true
}

// Outcome returns the terminal outcome. The second return is false
// until the request reaches a terminal state.
func (h *Handle) Outcome() (Outcome, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.state.Terminal() {
		return Outcome{}, false
	}
	return h.outcome, true
}

// Await blocks until the request resolves or ctx is done. A ctx error
// does not cancel the underlying work; producers that want abandonment
// should also call Cancel.
func (h *Handle) Await(ctx context.Context) (map[string]any, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.outcome.Result, h.outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
