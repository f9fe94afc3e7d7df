package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aidlink/triage/backoff"
	"github.com/aidlink/triage/ext"
	"github.com/aidlink/triage/id"
	"github.com/aidlink/triage/middleware"
	"github.com/aidlink/triage/queue"
	"github.com/aidlink/triage/request"
	"github.com/aidlink/triage/scheduler"
	"github.com/aidlink/triage/stats"
)

func setupTestScheduler(
	t *testing.T,
	handler scheduler.Handler,
	maxConcurrent int,
	queueSize int,
) (*scheduler.Scheduler, *queue.Bounded, *stats.Collector) {
	t.Helper()
	logger := slog.Default()
	collector := stats.NewCollector()
	extensions := ext.NewRegistry(logger)
	q := queue.New(queueSize, queue.Reject)

	executor := scheduler.NewExecutor(
		handler, extensions, collector, logger,
		middleware.Recover(logger),
	)

	sched := scheduler.New(q, executor, extensions, collector, logger,
		scheduler.WithMaxConcurrent(maxConcurrent),
		scheduler.WithIdleBackoff(backoff.NewConstant(5*time.Millisecond)),
	)

	return sched, q, collector
}

func admit(t *testing.T, q *queue.Bounded, requestType string, p request.Priority) *request.Handle {
	t.Helper()
	h := request.NewHandle(&request.Request{
		ID:         id.NewRequestID(),
		Type:       requestType,
		Priority:   p,
		EnqueuedAt: time.Now().UTC(),
	})
	if _, err := q.Admit(h); err != nil {
		t.Fatalf("admit error: %v", err)
	}
	return h
}

func TestScheduler_StartStop(t *testing.T) {
	sched, _, _ := setupTestScheduler(t, func(_ context.Context, _ *request.Request) (map[string]any, error) {
		return nil, nil
	}, 2, 10)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// Double start should be no-op.
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	// Double stop should be no-op.
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
}

func TestScheduler_ProcessesRequest(t *testing.T) {
	var processed atomic.Bool
	sched, q, _ := setupTestScheduler(t, func(_ context.Context, req *request.Request) (map[string]any, error) {
		if req.Type != "chat" {
			t.Errorf("req.Type = %q, want %q", req.Type, "chat")
		}
		processed.Store(true)
		return map[string]any{"answer": "ok"}, nil
	}, 1, 10)

	h := admit(t, q, "chat", request.PriorityNormal)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer stopScheduler(t, sched)

	awaitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := h.Await(awaitCtx)
	if err != nil {
		t.Fatalf("await error: %v", err)
	}
	if result["answer"] != "ok" {
		t.Errorf("result = %v, want answer=ok", result)
	}
	if !processed.Load() {
		t.Fatal("handler never ran")
	}
	if h.State() != request.StateCompleted {
		t.Errorf("state = %v, want completed", h.State())
	}
}

func TestScheduler_HandlerErrorResolvesHandle(t *testing.T) {
	want := errors.New("model unavailable")
	sched, q, collector := setupTestScheduler(t, func(_ context.Context, _ *request.Request) (map[string]any, error) {
		return nil, want
	}, 1, 10)

	h := admit(t, q, "ocr", request.PriorityHigh)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer stopScheduler(t, sched)

	awaitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := h.Await(awaitCtx)
	if !errors.Is(err, want) {
		t.Fatalf("await error = %v, want %v", err, want)
	}
	if h.State() != request.StateErrored {
		t.Errorf("state = %v, want errored", h.State())
	}
	if got := collector.Snapshot().TotalErrors; got != 1 {
		t.Errorf("TotalErrors = %d, want 1", got)
	}
}

func TestScheduler_ConcurrencyCapNeverExceeded(t *testing.T) {
	const maxConcurrent = 3

	var active, peak atomic.Int64
	release := make(chan struct{})

	sched, q, _ := setupTestScheduler(t, func(_ context.Context, _ *request.Request) (map[string]any, error) {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		<-release
		active.Add(-1)
		return nil, nil
	}, maxConcurrent, 100)

	handles := make([]*request.Handle, 0, 10)
	for range 10 {
		handles = append(handles, admit(t, q, "chat", request.PriorityNormal))
	}

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer stopScheduler(t, sched)

	// Wait until the cap is saturated.
	deadline := time.After(5 * time.Second)
	for active.Load() < maxConcurrent {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for saturation")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	if sched.ActiveCount() != maxConcurrent {
		t.Errorf("ActiveCount = %d, want %d", sched.ActiveCount(), maxConcurrent)
	}

	close(release)

	awaitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range handles {
		if _, err := h.Await(awaitCtx); err != nil {
			t.Fatalf("await error: %v", err)
		}
	}

	if got := peak.Load(); got > maxConcurrent {
		t.Fatalf("peak concurrency = %d, exceeds cap %d", got, maxConcurrent)
	}
}

func TestScheduler_DispatchesInPriorityOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	sched, q, _ := setupTestScheduler(t, func(_ context.Context, req *request.Request) (map[string]any, error) {
		mu.Lock()
		order = append(order, req.Type)
		mu.Unlock()
		return nil, nil
	}, 1, 10)

	// Admit before starting so the queue can order them.
	low := admit(t, q, "low-task", request.PriorityLow)
	emergency := admit(t, q, "emergency-task", request.PriorityEmergency)
	normal := admit(t, q, "normal-task", request.PriorityNormal)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer stopScheduler(t, sched)

	awaitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range []*request.Handle{low, emergency, normal} {
		if _, err := h.Await(awaitCtx); err != nil {
			t.Fatalf("await error: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"emergency-task", "normal-task", "low-task"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestScheduler_DiscardsCancelledPending(t *testing.T) {
	var ran atomic.Bool
	sched, q, collector := setupTestScheduler(t, func(_ context.Context, _ *request.Request) (map[string]any, error) {
		ran.Store(true)
		return nil, nil
	}, 1, 10)

	h := admit(t, q, "chat", request.PriorityNormal)
	h.Cancel()

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer stopScheduler(t, sched)

	awaitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := h.Await(awaitCtx)
	if !errors.Is(err, request.ErrCancelled) {
		t.Fatalf("await error = %v, want ErrCancelled", err)
	}
	if h.State() != request.StateCancelled {
		t.Errorf("state = %v, want cancelled", h.State())
	}
	if ran.Load() {
		t.Fatal("handler must not run for a cancelled pending request")
	}
	if got := collector.Snapshot().TotalCancelled; got != 1 {
		t.Errorf("TotalCancelled = %d, want 1", got)
	}
}

func TestScheduler_CancelDuringExecutionCancelsContext(t *testing.T) {
	started := make(chan struct{})
	sched, q, _ := setupTestScheduler(t, func(ctx context.Context, _ *request.Request) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, 1, 10)

	h := admit(t, q, "chat", request.PriorityNormal)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer stopScheduler(t, sched)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never started")
	}

	h.Cancel()

	awaitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := h.Await(awaitCtx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("await error = %v, want context.Canceled", err)
	}
}

func TestScheduler_StopDrainsActiveRequests(t *testing.T) {
	var finished atomic.Bool
	sched, q, _ := setupTestScheduler(t, func(_ context.Context, _ *request.Request) (map[string]any, error) {
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil, nil
	}, 1, 10)

	h := admit(t, q, "chat", request.PriorityNormal)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	// Wait for the request to go active.
	deadline := time.After(5 * time.Second)
	for sched.ActiveCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("request never went active")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	if !finished.Load() {
		t.Fatal("Stop returned before the active request finished")
	}
	if _, ok := h.Outcome(); !ok {
		t.Fatal("handle unresolved after graceful stop")
	}
}

func TestScheduler_StopDeadlineCancelsActive(t *testing.T) {
	sched, q, _ := setupTestScheduler(t, func(ctx context.Context, _ *request.Request) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 1, 10)

	h := admit(t, q, "chat", request.PriorityNormal)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for sched.ActiveCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("request never went active")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sched.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("stop error = %v, want context.DeadlineExceeded", err)
	}

	out, ok := h.Outcome()
	if !ok {
		t.Fatal("handle unresolved after deadline stop")
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("outcome error = %v, want context.Canceled", out.Err)
	}
}

// recordingHandler is a slog.Handler that captures record messages.
type recordingHandler struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (r *recordingHandler) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, rec.Message)
	r.mu.Unlock()
	return nil
}

func (r *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recordingHandler) WithGroup(string) slog.Handler      { return r }

func (r *recordingHandler) has(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func TestExecutor_LogsHandlerFailure(t *testing.T) {
	rec := &recordingHandler{}
	logger := slog.New(rec)
	collector := stats.NewCollector()
	extensions := ext.NewRegistry(logger)

	want := errors.New("model unavailable")
	exec := scheduler.NewExecutor(func(_ context.Context, _ *request.Request) (map[string]any, error) {
		return nil, want
	}, extensions, collector, logger)

	h := request.NewHandle(&request.Request{
		ID:         id.NewRequestID(),
		Type:       "ocr",
		Priority:   request.PriorityHigh,
		EnqueuedAt: time.Now(),
	})
	if !h.Activate() {
		t.Fatal("activate failed")
	}

	if err := exec.Execute(context.Background(), h); !errors.Is(err, want) {
		t.Fatalf("execute error = %v, want %v", err, want)
	}
	if !rec.has("request execution failed") {
		t.Error("missing failure log entry")
	}
}

func stopScheduler(t *testing.T, sched *scheduler.Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		t.Errorf("stop error: %v", err)
	}
}
