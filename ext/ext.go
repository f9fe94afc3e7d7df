// Package ext defines the extension system for triage queues.
// Extensions are notified of request lifecycle events (admitted,
// started, completed, rejected, evicted, etc.) and can react to
// them — logging, metrics, alerting.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/aidlink/triage/request"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// RequestAdmitted is called after a request is accepted into the queue.
type RequestAdmitted interface {
	OnRequestAdmitted(ctx context.Context, req *request.Request) error
}

// RequestStarted is called when the scheduler launches a request's handler.
type RequestStarted interface {
	OnRequestStarted(ctx context.Context, req *request.Request) error
}

// RequestCompleted is called after a handler finishes successfully.
type RequestCompleted interface {
	OnRequestCompleted(ctx context.Context, req *request.Request, elapsed time.Duration) error
}

// RequestFailed is called when a handler returns an error.
type RequestFailed interface {
	OnRequestFailed(ctx context.Context, req *request.Request, err error) error
}

// RequestRejected is called when admission refuses a request — queue
// full under the Reject policy, a declined eviction, an admission rate
// limit, or a queue that is shutting down. The reason error identifies
// which.
type RequestRejected interface {
	OnRequestRejected(ctx context.Context, req *request.Request, reason error) error
}

// RequestEvicted is called when an overflow policy displaces a pending
// request to make room for a more urgent arrival.
type RequestEvicted interface {
	OnRequestEvicted(ctx context.Context, req *request.Request) error
}

// RequestCancelled is called when the scheduler discards a pending
// request whose producer cancelled it.
type RequestCancelled interface {
	OnRequestCancelled(ctx context.Context, req *request.Request) error
}

// Shutdown is called during graceful shutdown, after the queue has
// fully drained.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
