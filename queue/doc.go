// Package queue provides the bounded priority queue at the heart of the
// admission-control core, together with the overflow policies applied
// when it is full and the per-type admission rate limiter.
//
// # Ordering
//
// Pending requests are totally ordered: priority ordinal ascending
// (lower is more urgent), then enqueue timestamp ascending (strict FIFO
// within a tier), with the admission sequence number as a final
// tie-break so equal (priority, timestamp) pairs stay stable.
//
// # Overflow policies
//
// When Admit finds the queue at capacity, the configured [Policy]
// decides what happens:
//
//   - [Reject]: the new request is refused; the queue is untouched.
//   - [DropOldest]: the pending request with the smallest enqueue
//     timestamp, regardless of priority, is evicted to make room.
//   - [DropLowestPriority]: the worst pending request (largest ordinal,
//     ties broken by latest timestamp) is evicted, but only when the
//     new arrival is strictly more urgent; otherwise the new request
//     is refused and the queue is left unchanged.
//
// Admit returns the evicted handle so the caller can resolve the
// displaced producer's result slot; an evicted request is never
// silently abandoned.
//
// # Rate limiting
//
// [Limiter] enforces per-request-type (and optionally per-client)
// token-bucket admission rates using golang.org/x/time/rate:
//
//	l := queue.NewLimiter(queue.LimitConfig{Type: "chat", Rate: 5, Burst: 10})
//	if !l.Allow("chat", clientID) {
//	    // shed the request before it reaches the queue
//	}
//
// Types without a [LimitConfig] have no admission rate limit.
package queue
