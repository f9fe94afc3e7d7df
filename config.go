package triage

import (
	"fmt"
	"time"

	"github.com/aidlink/triage/queue"
	"github.com/aidlink/triage/request"
)

// Config holds configuration for a Queue.
type Config struct {
	// MaxSize is the maximum number of pending requests. Zero means the
	// queue is permanently full and every admission is refused.
	MaxSize int

	// MaxConcurrent is the maximum number of requests executing
	// simultaneously.
	MaxConcurrent int

	// OverflowPolicy decides what happens when a request arrives at a
	// full queue.
	OverflowPolicy queue.Policy

	// PollInterval is the base delay between dispatcher polls of an
	// empty queue.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time Close waits for graceful
	// shutdown before cancelling active requests.
	ShutdownTimeout time.Duration

	// PriorityWeights optionally remaps priority ordinals for queue
	// comparison. When set it must cover all four tiers and preserve
	// their urgency order. Empty means the canonical 1..4 ordinals.
	PriorityWeights map[request.Priority]int

	// ShedCapacity bounds the in-memory log of rejected, evicted, and
	// cancelled requests. Zero disables the shed log.
	ShedCapacity int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:         20,
		MaxConcurrent:   4,
		OverflowPolicy:  queue.Reject,
		PollInterval:    100 * time.Millisecond,
		ShutdownTimeout: 30 * time.Second,
		ShedCapacity:    128,
	}
}

// DevelopmentConfig returns a preset for local development: a small
// queue with generous concurrency and hard rejection on overflow.
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxSize = 20
	cfg.MaxConcurrent = 6
	cfg.OverflowPolicy = queue.Reject
	return cfg
}

// ProductionConfig returns a preset for steady-state production: a
// larger queue, conservative concurrency, and priority-based shedding.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxSize = 50
	cfg.MaxConcurrent = 3
	cfg.OverflowPolicy = queue.DropLowestPriority
	return cfg
}

// EmergencyConfig returns a preset for crisis deployments: maximum
// capacity and concurrency, priority-based shedding, and stretched
// priority weights so urgent work dominates the queue order.
func EmergencyConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxSize = 100
	cfg.MaxConcurrent = 6
	cfg.OverflowPolicy = queue.DropLowestPriority
	cfg.PriorityWeights = map[request.Priority]int{
		request.PriorityEmergency: 1,
		request.PriorityHigh:      2,
		request.PriorityNormal:    5,
		request.PriorityLow:       10,
	}
	return cfg
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.MaxSize < 0 {
		return fmt.Errorf("triage: max size must not be negative, got %d", c.MaxSize)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("triage: max concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if !c.OverflowPolicy.Valid() {
		return fmt.Errorf("triage: unknown overflow policy %q", c.OverflowPolicy)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("triage: poll interval must be positive, got %s", c.PollInterval)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("triage: shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if len(c.PriorityWeights) > 0 {
		if err := validateWeights(c.PriorityWeights); err != nil {
			return err
		}
	}
	return nil
}

// validateWeights checks that a weight map covers every tier and keeps
// the strict urgency order intact.
func validateWeights(w map[request.Priority]int) error {
	tiers := request.Priorities()
	for _, p := range tiers {
		if _, ok := w[p]; !ok {
			return fmt.Errorf("triage: priority weights missing tier %s", p)
		}
	}
	for i := 1; i < len(tiers); i++ {
		if w[tiers[i-1]] >= w[tiers[i]] {
			return fmt.Errorf("triage: priority weights must keep %s more urgent than %s",
				tiers[i-1], tiers[i])
		}
	}
	return nil
}
