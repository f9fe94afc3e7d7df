// Package triage provides admission control and priority scheduling for
// request processing under load. It offers a bounded priority queue with
// pluggable overflow policies, a capped-concurrency dispatcher, and
// per-request result handles.
//
// Triage is designed as a library, not a service. Import it, configure a
// capacity and overflow policy, and supply a handler as an ordinary Go
// function.
//
// # Quick Start
//
//	q, err := triage.New(
//	    triage.WithMaxSize(50),
//	    triage.WithMaxConcurrent(4),
//	    triage.WithOverflowPolicy(queue.DropLowestPriority),
//	)
//	if err != nil { ... }
//
//	_ = q.Run(ctx, func(ctx context.Context, req *request.Request) (map[string]any, error) {
//	    return process(ctx, req)
//	})
//
//	h, err := q.Admit(ctx, "document_analysis", payload)
//	if err != nil { ... }
//	result, err := h.Await(ctx)
//
// # Architecture
//
// Each subsystem lives in its own package: request (types, priorities,
// handles), queue (bounded priority queue, overflow policies, rate
// limits), scheduler (dispatch loop and executor), stats (counters),
// ext (lifecycle hooks), middleware (execution chain), shed (drop log).
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package triage
