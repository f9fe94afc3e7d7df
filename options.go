package triage

import (
	"log/slog"
	"time"

	"github.com/aidlink/triage/backoff"
	"github.com/aidlink/triage/ext"
	"github.com/aidlink/triage/middleware"
	"github.com/aidlink/triage/queue"
	"github.com/aidlink/triage/request"
)

// Option configures a Queue.
type Option func(*Queue) error

// WithConfig replaces the entire configuration. Apply it before any
// option that tweaks a single field.
func WithConfig(cfg Config) Option {
	return func(q *Queue) error {
		q.cfg = cfg
		return nil
	}
}

// WithMaxSize sets the pending-request capacity.
func WithMaxSize(n int) Option {
	return func(q *Queue) error {
		q.cfg.MaxSize = n
		return nil
	}
}

// WithMaxConcurrent caps the number of simultaneously executing requests.
func WithMaxConcurrent(n int) Option {
	return func(q *Queue) error {
		q.cfg.MaxConcurrent = n
		return nil
	}
}

// WithOverflowPolicy sets the behavior when a request arrives at a full
// queue.
func WithOverflowPolicy(p queue.Policy) Option {
	return func(q *Queue) error {
		q.cfg.OverflowPolicy = p
		return nil
	}
}

// WithPollInterval sets the dispatcher's base poll delay.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) error {
		q.cfg.PollInterval = d
		return nil
	}
}

// WithShutdownTimeout bounds how long Close waits for graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(q *Queue) error {
		q.cfg.ShutdownTimeout = d
		return nil
	}
}

// WithPriorityWeights remaps priority ordinals for queue comparison.
// The mapping must cover all four tiers and preserve their urgency order.
func WithPriorityWeights(w map[request.Priority]int) Option {
	return func(q *Queue) error {
		q.cfg.PriorityWeights = w
		return nil
	}
}

// WithShedCapacity bounds the in-memory shed log.
func WithShedCapacity(n int) Option {
	return func(q *Queue) error {
		q.cfg.ShedCapacity = n
		return nil
	}
}

// WithLogger sets the structured logger for the queue.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) error {
		q.logger = l
		return nil
	}
}

// WithClassifier replaces the request-type classifier used when no
// explicit priority accompanies an admission.
func WithClassifier(c request.Classifier) Option {
	return func(q *Queue) error {
		q.classifier = c
		return nil
	}
}

// WithExtension registers a lifecycle extension. Extensions are
// notified in registration order.
func WithExtension(e ext.Extension) Option {
	return func(q *Queue) error {
		q.extList = append(q.extList, e)
		return nil
	}
}

// WithMiddleware appends middleware to the execution chain, inside the
// built-in recover/tracing/metrics/logging/timeout stack.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(q *Queue) error {
		q.userMW = append(q.userMW, mws...)
		return nil
	}
}

// WithRateLimits configures per-type admission rate limits.
func WithRateLimits(limits ...queue.LimitConfig) Option {
	return func(q *Queue) error {
		q.limits = append(q.limits, limits...)
		return nil
	}
}

// WithClientRateLimits configures per-client admission rate limits
// within a request type.
func WithClientRateLimits(limits ...queue.ClientLimitConfig) Option {
	return func(q *Queue) error {
		q.clientLimits = append(q.clientLimits, limits...)
		return nil
	}
}

// WithIdleBackoff replaces the dispatcher's idle-poll delay strategy.
func WithIdleBackoff(strategy backoff.Strategy) Option {
	return func(q *Queue) error {
		q.idle = strategy
		return nil
	}
}
