package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aidlink/triage/ext"
	"github.com/aidlink/triage/id"
	"github.com/aidlink/triage/request"
)

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnRequestAdmitted(_ context.Context, _ *request.Request) error {
	e.calls = append(e.calls, "OnRequestAdmitted")
	return nil
}

func (e *allHooksExt) OnRequestStarted(_ context.Context, _ *request.Request) error {
	e.calls = append(e.calls, "OnRequestStarted")
	return nil
}

func (e *allHooksExt) OnRequestCompleted(_ context.Context, _ *request.Request, _ time.Duration) error {
	e.calls = append(e.calls, "OnRequestCompleted")
	return nil
}

func (e *allHooksExt) OnRequestFailed(_ context.Context, _ *request.Request, _ error) error {
	e.calls = append(e.calls, "OnRequestFailed")
	return nil
}

func (e *allHooksExt) OnRequestRejected(_ context.Context, _ *request.Request, _ error) error {
	e.calls = append(e.calls, "OnRequestRejected")
	return nil
}

func (e *allHooksExt) OnRequestEvicted(_ context.Context, _ *request.Request) error {
	e.calls = append(e.calls, "OnRequestEvicted")
	return nil
}

func (e *allHooksExt) OnRequestCancelled(_ context.Context, _ *request.Request) error {
	e.calls = append(e.calls, "OnRequestCancelled")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// admitOnlyExt only implements admission-related hooks.
type admitOnlyExt struct {
	calls []string
}

func (e *admitOnlyExt) Name() string { return "admit-only" }

func (e *admitOnlyExt) OnRequestAdmitted(_ context.Context, _ *request.Request) error {
	e.calls = append(e.calls, "OnRequestAdmitted")
	return nil
}

func (e *admitOnlyExt) OnRequestRejected(_ context.Context, _ *request.Request, _ error) error {
	e.calls = append(e.calls, "OnRequestRejected")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnRequestAdmitted(_ context.Context, _ *request.Request) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

func newRequest() *request.Request {
	return &request.Request{
		ID:       id.NewRequestID(),
		Type:     "chat",
		Priority: request.PriorityNormal,
	}
}

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	ao := &admitOnlyExt{}
	r.Register(all)
	r.Register(ao)

	ctx := context.Background()
	req := newRequest()

	// Both implement OnRequestAdmitted → both called.
	r.EmitRequestAdmitted(ctx, req)
	if len(all.calls) != 1 || all.calls[0] != "OnRequestAdmitted" {
		t.Fatalf("all: expected [OnRequestAdmitted], got %v", all.calls)
	}
	if len(ao.calls) != 1 || ao.calls[0] != "OnRequestAdmitted" {
		t.Fatalf("ao: expected [OnRequestAdmitted], got %v", ao.calls)
	}

	// Only all implements OnRequestStarted → ao not called.
	r.EmitRequestStarted(ctx, req)
	if len(all.calls) != 2 || all.calls[1] != "OnRequestStarted" {
		t.Fatalf("all: expected OnRequestStarted as 2nd, got %v", all.calls)
	}
	if len(ao.calls) != 1 {
		t.Fatalf("ao: should still have 1 call, got %v", ao.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	req := newRequest()

	r.EmitRequestAdmitted(ctx, req)
	r.EmitRequestStarted(ctx, req)
	r.EmitRequestCompleted(ctx, req, time.Second)
	r.EmitRequestFailed(ctx, req, errors.New("fail"))
	r.EmitRequestRejected(ctx, req, errors.New("full"))
	r.EmitRequestEvicted(ctx, req)
	r.EmitRequestCancelled(ctx, req)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnRequestAdmitted", "OnRequestStarted", "OnRequestCompleted",
		"OnRequestFailed", "OnRequestRejected", "OnRequestEvicted",
		"OnRequestCancelled", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	ctx := context.Background()

	// No panic, no error propagation. allHooksExt should still fire.
	r.EmitRequestAdmitted(ctx, newRequest())

	if len(all.calls) != 1 || all.calls[0] != "OnRequestAdmitted" {
		t.Fatalf("all: expected [OnRequestAdmitted] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()
	req := newRequest()

	// None of these should panic or error.
	r.EmitRequestAdmitted(ctx, req)
	r.EmitRequestStarted(ctx, req)
	r.EmitRequestCompleted(ctx, req, time.Second)
	r.EmitRequestFailed(ctx, req, errors.New("x"))
	r.EmitRequestRejected(ctx, req, errors.New("x"))
	r.EmitRequestEvicted(ctx, req)
	r.EmitRequestCancelled(ctx, req)
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	ctx := context.Background()
	r.EmitRequestAdmitted(ctx, newRequest())

	// Both should be called.
	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
