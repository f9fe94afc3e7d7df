// Package scheduler provides the request execution engine — an Executor
// that invokes the handler through middleware and resolves the producer's
// handle, and a Scheduler that dispatches pending requests under a
// concurrency cap.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/aidlink/triage/ext"
	"github.com/aidlink/triage/middleware"
	"github.com/aidlink/triage/request"
	"github.com/aidlink/triage/stats"
)

// Handler processes a single request and returns its result.
// Implementations should honor ctx cancellation: the context is cancelled
// on producer cancellation, per-request timeout, and shutdown deadline.
type Handler func(ctx context.Context, req *request.Request) (map[string]any, error)

// Executor runs a single request through middleware and the handler,
// then resolves the handle, records statistics, and emits lifecycle
// events.
type Executor struct {
	handler    Handler
	extensions *ext.Registry
	collector  *stats.Collector
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	handler Handler,
	extensions *ext.Registry,
	collector *stats.Collector,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		handler:    handler,
		extensions: extensions,
		collector:  collector,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs an active request through the middleware chain and handler.
// On success: resolves the handle with the result, records the completion,
// emits RequestCompleted. On failure: resolves the handle with the error,
// records it, emits RequestFailed.
//
// Producer cancellation is bridged into the handler context: if the
// producer calls Cancel while the handler runs, ctx is cancelled and the
// handler's error resolves the handle.
func (e *Executor) Execute(ctx context.Context, h *request.Handle) error {
	req := h.Request()
	queueWait := time.Since(req.EnqueuedAt)

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-h.CancelRequested():
			cancel()
		case <-execCtx.Done():
		}
	}()

	var result map[string]any
	terminal := func(ctx context.Context) error {
		r, err := e.handler(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	start := time.Now()
	err := e.mw(execCtx, req, terminal)
	elapsed := time.Since(start)

	if err != nil {
		h.Fail(err)
		e.collector.RecordError()
		e.extensions.EmitRequestFailed(ctx, req, err)
		e.logger.Debug("request execution failed",
			slog.String("request_id", req.ID.String()),
			slog.String("request_type", req.Type),
			slog.String("error", err.Error()),
		)
		return err
	}

	h.Complete(result)
	e.collector.RecordCompleted(queueWait, elapsed)
	e.extensions.EmitRequestCompleted(ctx, req, elapsed)
	return nil
}
