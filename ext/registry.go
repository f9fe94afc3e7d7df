package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/aidlink/triage/request"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type requestAdmittedEntry struct {
	name string
	hook RequestAdmitted
}

type requestStartedEntry struct {
	name string
	hook RequestStarted
}

type requestCompletedEntry struct {
	name string
	hook RequestCompleted
}

type requestFailedEntry struct {
	name string
	hook RequestFailed
}

type requestRejectedEntry struct {
	name string
	hook RequestRejected
}

type requestEvictedEntry struct {
	name string
	hook RequestEvicted
}

type requestCancelledEntry struct {
	name string
	hook RequestCancelled
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	requestAdmitted  []requestAdmittedEntry
	requestStarted   []requestStartedEntry
	requestCompleted []requestCompletedEntry
	requestFailed    []requestFailedEntry
	requestRejected  []requestRejectedEntry
	requestEvicted   []requestEvictedEntry
	requestCancelled []requestCancelledEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(RequestAdmitted); ok {
		r.requestAdmitted = append(r.requestAdmitted, requestAdmittedEntry{name, h})
	}
	if h, ok := e.(RequestStarted); ok {
		r.requestStarted = append(r.requestStarted, requestStartedEntry{name, h})
	}
	if h, ok := e.(RequestCompleted); ok {
		r.requestCompleted = append(r.requestCompleted, requestCompletedEntry{name, h})
	}
	if h, ok := e.(RequestFailed); ok {
		r.requestFailed = append(r.requestFailed, requestFailedEntry{name, h})
	}
	if h, ok := e.(RequestRejected); ok {
		r.requestRejected = append(r.requestRejected, requestRejectedEntry{name, h})
	}
	if h, ok := e.(RequestEvicted); ok {
		r.requestEvicted = append(r.requestEvicted, requestEvictedEntry{name, h})
	}
	if h, ok := e.(RequestCancelled); ok {
		r.requestCancelled = append(r.requestCancelled, requestCancelledEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitRequestAdmitted notifies all extensions that implement RequestAdmitted.
func (r *Registry) EmitRequestAdmitted(ctx context.Context, req *request.Request) {
	for _, e := range r.requestAdmitted {
		if err := e.hook.OnRequestAdmitted(ctx, req); err != nil {
			r.logHookError("OnRequestAdmitted", e.name, err)
		}
	}
}

// EmitRequestStarted notifies all extensions that implement RequestStarted.
func (r *Registry) EmitRequestStarted(ctx context.Context, req *request.Request) {
	for _, e := range r.requestStarted {
		if err := e.hook.OnRequestStarted(ctx, req); err != nil {
			r.logHookError("OnRequestStarted", e.name, err)
		}
	}
}

// EmitRequestCompleted notifies all extensions that implement RequestCompleted.
func (r *Registry) EmitRequestCompleted(ctx context.Context, req *request.Request, elapsed time.Duration) {
	for _, e := range r.requestCompleted {
		if err := e.hook.OnRequestCompleted(ctx, req, elapsed); err != nil {
			r.logHookError("OnRequestCompleted", e.name, err)
		}
	}
}

// EmitRequestFailed notifies all extensions that implement RequestFailed.
func (r *Registry) EmitRequestFailed(ctx context.Context, req *request.Request, reqErr error) {
	for _, e := range r.requestFailed {
		if err := e.hook.OnRequestFailed(ctx, req, reqErr); err != nil {
			r.logHookError("OnRequestFailed", e.name, err)
		}
	}
}

// EmitRequestRejected notifies all extensions that implement RequestRejected.
func (r *Registry) EmitRequestRejected(ctx context.Context, req *request.Request, reason error) {
	for _, e := range r.requestRejected {
		if err := e.hook.OnRequestRejected(ctx, req, reason); err != nil {
			r.logHookError("OnRequestRejected", e.name, err)
		}
	}
}

// EmitRequestEvicted notifies all extensions that implement RequestEvicted.
func (r *Registry) EmitRequestEvicted(ctx context.Context, req *request.Request) {
	for _, e := range r.requestEvicted {
		if err := e.hook.OnRequestEvicted(ctx, req); err != nil {
			r.logHookError("OnRequestEvicted", e.name, err)
		}
	}
}

// EmitRequestCancelled notifies all extensions that implement RequestCancelled.
func (r *Registry) EmitRequestCancelled(ctx context.Context, req *request.Request) {
	for _, e := range r.requestCancelled {
		if err := e.hook.OnRequestCancelled(ctx, req); err != nil {
			r.logHookError("OnRequestCancelled", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block admission
// or execution.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
