package triage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aidlink/triage/backoff"
	"github.com/aidlink/triage/ext"
	"github.com/aidlink/triage/id"
	"github.com/aidlink/triage/middleware"
	"github.com/aidlink/triage/queue"
	"github.com/aidlink/triage/request"
	"github.com/aidlink/triage/scheduler"
	"github.com/aidlink/triage/shed"
	"github.com/aidlink/triage/stats"
)

// Handler processes a single request and returns its result. It is the
// terminal function of the middleware chain; see scheduler.Handler.
type Handler = scheduler.Handler

// Queue is the admission and scheduling facade. Producers call Admit to
// submit work and receive a Handle; Run starts the dispatcher that
// executes pending requests under the concurrency cap.
//
// Create one with New() and functional options.
type Queue struct {
	cfg        Config
	logger     *slog.Logger
	classifier request.Classifier
	idle       backoff.Strategy

	pending    *queue.Bounded
	limiter    *queue.Limiter
	collector  *stats.Collector
	extensions *ext.Registry
	drops      *shed.Log

	// Option staging, consumed by New.
	extList      []ext.Extension
	userMW       []middleware.Middleware
	limits       []queue.LimitConfig
	clientLimits []queue.ClientLimitConfig

	mu      sync.Mutex
	sched   *scheduler.Scheduler
	running bool

	shuttingDown atomic.Bool
}

// New creates a Queue with the given options.
func New(opts ...Option) (*Queue, error) {
	q := &Queue{
		cfg:        DefaultConfig(),
		logger:     slog.Default(),
		classifier: request.DefaultClassifier,
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	if err := q.cfg.Validate(); err != nil {
		return nil, err
	}

	var qopts []queue.Option
	if len(q.cfg.PriorityWeights) > 0 {
		qopts = append(qopts, queue.WithWeights(q.cfg.PriorityWeights))
	}
	q.pending = queue.New(q.cfg.MaxSize, q.cfg.OverflowPolicy, qopts...)

	q.limiter = queue.NewLimiter(q.limits...)
	for _, cl := range q.clientLimits {
		q.limiter.SetClientLimit(cl)
	}

	q.collector = stats.NewCollector()
	q.drops = shed.NewLog(q.cfg.ShedCapacity)

	q.extensions = ext.NewRegistry(q.logger)
	for _, e := range q.extList {
		q.extensions.Register(e)
	}

	if q.idle == nil {
		q.idle = backoff.DefaultIdle(q.cfg.PollInterval)
	}

	return q, nil
}

// Config returns a copy of the queue's configuration.
func (q *Queue) Config() Config { return q.cfg }

// Logger returns the queue's logger.
func (q *Queue) Logger() *slog.Logger { return q.logger }

// Admit submits a request for processing. It decides synchronously and
// never blocks the caller: the request is either accepted, and the
// returned Handle resolves when the request reaches a terminal state, or
// refused with ErrShuttingDown, ErrRateLimited, or ErrQueueFull.
//
// Without an explicit request.WithPriority option the priority is
// derived from the request type by the classifier.
func (q *Queue) Admit(ctx context.Context, requestType string, payload []byte, opts ...request.Option) (*request.Handle, error) {
	o := request.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	priority := o.Priority
	if !priority.Valid() {
		priority = q.classifier(requestType)
	}

	req := &request.Request{
		ID:         id.NewRequestID(),
		Type:       requestType,
		Priority:   priority,
		Payload:    payload,
		ClientID:   o.ClientID,
		EnqueuedAt: time.Now(),
		Timeout:    o.Timeout,
	}

	if q.shuttingDown.Load() {
		q.reject(ctx, req, ErrShuttingDown)
		return nil, ErrShuttingDown
	}

	if !q.limiter.Allow(requestType, o.ClientID) {
		q.reject(ctx, req, ErrRateLimited)
		return nil, ErrRateLimited
	}

	h := request.NewHandle(req)
	evicted, err := q.pending.Admit(h)
	if err != nil {
		q.reject(ctx, req, ErrQueueFull)
		return nil, ErrQueueFull
	}

	if evicted != nil && evicted.Evict() {
		victim := evicted.Request()
		q.collector.RecordEvicted()
		q.drops.Record(victim, shed.ReasonEvicted, "")
		q.extensions.EmitRequestEvicted(ctx, victim)
		q.logger.Debug("request evicted",
			slog.String("request_id", victim.ID.String()),
			slog.String("request_type", victim.Type),
			slog.String("priority", victim.Priority.String()),
			slog.String("displaced_by", req.ID.String()),
		)
	}

	q.collector.RecordAdmitted(priority)
	q.extensions.EmitRequestAdmitted(ctx, req)
	q.logger.Debug("request admitted",
		slog.String("request_id", req.ID.String()),
		slog.String("request_type", requestType),
		slog.String("priority", priority.String()),
		slog.Int("pending", q.pending.Len()),
	)

	return h, nil
}

// reject records a refused admission attempt.
func (q *Queue) reject(ctx context.Context, req *request.Request, reason error) {
	q.collector.RecordRejected()
	q.drops.Record(req, shed.ReasonRejected, reason.Error())
	q.extensions.EmitRequestRejected(ctx, req, reason)
	q.logger.Debug("request rejected",
		slog.String("request_id", req.ID.String()),
		slog.String("request_type", req.Type),
		slog.String("priority", req.Priority.String()),
		slog.String("reason", reason.Error()),
	)
}

// Run starts the dispatcher with the given handler. It returns
// immediately; subsequent calls are no-ops. A queue that has begun
// shutting down refuses to start.
func (q *Queue) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return ErrNoHandler
	}
	if q.shuttingDown.Load() {
		return ErrShuttingDown
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return nil
	}

	mws := append([]middleware.Middleware{
		middleware.Recover(q.logger),
		middleware.Tracing(),
		middleware.Metrics(),
		middleware.Logging(q.logger),
		middleware.Timeout(q.logger),
	}, q.userMW...)

	executor := scheduler.NewExecutor(handler, q.extensions, q.collector, q.logger, mws...)
	q.sched = scheduler.New(q.pending, executor, q.extensions, q.collector, q.logger,
		scheduler.WithMaxConcurrent(q.cfg.MaxConcurrent),
		scheduler.WithIdleBackoff(q.idle),
	)

	if err := q.sched.Start(ctx); err != nil {
		return err
	}
	q.running = true
	return nil
}

// Status is a point-in-time view of the queue.
type Status struct {
	Pending       int            `json:"pending"`
	Active        int            `json:"active"`
	MaxSize       int            `json:"max_size"`
	MaxConcurrent int            `json:"max_concurrent"`
	Policy        queue.Policy   `json:"overflow_policy"`
	ShuttingDown  bool           `json:"shutting_down"`
	Stats         stats.Snapshot `json:"stats"`
}

// Status reports the queue's current state and statistics.
func (q *Queue) Status() Status {
	q.mu.Lock()
	sched := q.sched
	q.mu.Unlock()

	active := 0
	if sched != nil {
		active = sched.ActiveCount()
	}

	return Status{
		Pending:       q.pending.Len(),
		Active:        active,
		MaxSize:       q.cfg.MaxSize,
		MaxConcurrent: q.cfg.MaxConcurrent,
		Policy:        q.cfg.OverflowPolicy,
		ShuttingDown:  q.shuttingDown.Load(),
		Stats:         q.collector.Snapshot(),
	}
}

// Stats returns the queue's statistics snapshot.
func (q *Queue) Stats() stats.Snapshot { return q.collector.Snapshot() }

// Shed returns recent shed entries, newest first. A non-positive limit
// returns everything retained.
func (q *Queue) Shed(limit int) []shed.Entry { return q.drops.Recent(limit) }

// Shutdown stops the queue gracefully: new admissions are refused
// immediately, pending requests are drained while ctx allows, and active
// requests get until the ctx deadline before their contexts are
// cancelled. Pending requests still queued when the drain window closes
// are discarded and their producers resolved with ErrCancelled.
//
// A nil return means a clean drain; when the deadline forces the stop,
// ctx.Err() is returned.
//
// Subsequent calls are no-ops.
func (q *Queue) Shutdown(ctx context.Context) error {
	if !q.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	q.logger.Info("shutdown initiated",
		slog.Int("pending", q.pending.Len()),
	)

	q.mu.Lock()
	sched := q.sched
	running := q.running
	q.mu.Unlock()

	var stopErr error
	if running {
	drain:
		for q.pending.Len() > 0 {
			select {
			case <-ctx.Done():
				break drain
			case <-time.After(10 * time.Millisecond):
			}
		}
		stopErr = sched.Stop(ctx)
	}

	// Anything still pending was never dispatched: a never-run queue, or
	// a drain window that closed first.
	q.discardPending(ctx)

	q.extensions.EmitShutdown(ctx)
	q.logger.Info("shutdown complete")
	return stopErr
}

// Close shuts the queue down with the configured ShutdownTimeout.
func (q *Queue) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.ShutdownTimeout)
	defer cancel()
	return q.Shutdown(ctx)
}

func (q *Queue) discardPending(ctx context.Context) {
	for {
		h, ok := q.pending.Pop()
		if !ok {
			return
		}
		if !h.Discard() {
			continue
		}
		req := h.Request()
		q.collector.RecordCancelled()
		q.drops.Record(req, shed.ReasonCancelled, "shutdown")
		q.extensions.EmitRequestCancelled(ctx, req)
	}
}
