package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aidlink/triage/backoff"
	"github.com/aidlink/triage/ext"
	"github.com/aidlink/triage/id"
	"github.com/aidlink/triage/queue"
	"github.com/aidlink/triage/stats"
)

// Scheduler runs the dispatch loop: it pops the most urgent pending
// request, reserves an execution slot, and launches the Executor in a
// goroutine. At most maxConcurrent requests execute simultaneously.
type Scheduler struct {
	queue      *queue.Bounded
	executor   *Executor
	extensions *ext.Registry
	collector  *stats.Collector
	logger     *slog.Logger
	schedID    id.SchedulerID

	maxConcurrent int64
	sem           *semaphore.Weighted
	idle          backoff.Strategy

	stopCh   chan struct{}
	loopCtx  context.Context
	loopStop context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool

	active   map[string]context.CancelFunc
	activeMu sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxConcurrent caps the number of simultaneously executing requests.
func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) { s.maxConcurrent = int64(n) }
}

// WithIdleBackoff sets the delay strategy applied between polls while
// the queue is empty.
func WithIdleBackoff(strategy backoff.Strategy) Option {
	return func(s *Scheduler) { s.idle = strategy }
}

// New creates a Scheduler draining the given queue.
func New(
	q *queue.Bounded,
	executor *Executor,
	extensions *ext.Registry,
	collector *stats.Collector,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		queue:         q,
		executor:      executor,
		extensions:    extensions,
		collector:     collector,
		logger:        logger,
		schedID:       id.NewSchedulerID(),
		maxConcurrent: 4,
		idle:          backoff.DefaultIdle(100 * time.Millisecond),
		stopCh:        make(chan struct{}),
		active:        make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sem = semaphore.NewWeighted(s.maxConcurrent)
	return s
}

// ID returns the scheduler's unique identifier.
func (s *Scheduler) ID() id.SchedulerID { return s.schedID }

// ActiveCount reports how many requests are currently executing.
func (s *Scheduler) ActiveCount() int {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return len(s.active)
}

// Start launches the dispatch loop. It returns immediately and is a
// no-op when the scheduler is already running.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.loopCtx, s.loopStop = context.WithCancel(context.Background())

	s.logger.Info("scheduler starting",
		slog.String("scheduler_id", s.schedID.String()),
		slog.Int64("max_concurrent", s.maxConcurrent),
	)

	s.wg.Add(1)
	go s.dispatchLoop()

	return nil
}

// Stop halts dispatch and waits for in-flight executions to finish.
// If the context expires first, active requests are cancelled and the
// context's error is returned; a nil return means a clean drain.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopping", slog.String("scheduler_id", s.schedID.String()))

	// Signal the loop to stop and unblock a parked slot acquisition.
	close(s.stopCh)
	s.loopStop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown timed out, cancelling active requests")
		s.cancelActive()
		s.wg.Wait()
		return ctx.Err()
	}

	return nil
}

// dispatchLoop is the single goroutine that feeds executions.
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	idleCount := 0
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		// Reserve an execution slot before popping so a dequeued request
		// is never parked behind the concurrency cap. While the cap is
		// saturated, more urgent arrivals can still overtake in the queue.
		if err := s.sem.Acquire(s.loopCtx, 1); err != nil {
			return
		}

		h, ok := s.queue.Pop()
		if !ok {
			s.sem.Release(1)
			idleCount++
			s.sleep(idleCount)
			continue
		}
		idleCount = 0

		// The producer gave up while the request was queued.
		if h.Cancelled() {
			s.sem.Release(1)
			if h.Discard() {
				s.collector.RecordCancelled()
				s.extensions.EmitRequestCancelled(context.Background(), h.Request())
			}
			continue
		}

		if !h.Activate() {
			s.sem.Release(1)
			continue
		}

		req := h.Request()
		s.extensions.EmitRequestStarted(context.Background(), req)

		ctx, cancel := context.WithCancel(context.Background())
		s.track(req.ID.String(), cancel)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			defer s.untrack(req.ID.String())
			defer cancel()
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic during %s request: %v", req.Type, r)
					h.Fail(err)
					s.collector.RecordError()
					s.logger.Error("request execution panicked",
						slog.String("request_id", req.ID.String()),
						slog.Any("panic", r),
					)
				}
			}()

			_ = s.executor.Execute(ctx, h)
		}()
	}
}

func (s *Scheduler) sleep(attempt int) {
	select {
	case <-time.After(s.idle.Delay(attempt)):
	case <-s.stopCh:
	}
}

func (s *Scheduler) track(requestID string, cancel context.CancelFunc) {
	s.activeMu.Lock()
	s.active[requestID] = cancel
	s.activeMu.Unlock()
}

func (s *Scheduler) untrack(requestID string) {
	s.activeMu.Lock()
	delete(s.active, requestID)
	s.activeMu.Unlock()
}

func (s *Scheduler) cancelActive() {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	for requestID, cancel := range s.active {
		s.logger.Warn("cancelling active request", slog.String("request_id", requestID))
		cancel()
	}
}
