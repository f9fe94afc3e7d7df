// Package stats implements the statistics collector: running counters
// and timing aggregates describing a queue's admission and completion
// history. It is pure bookkeeping — never load-bearing for scheduling
// decisions — but forms the observability contract behind Status().
package stats

import (
	"math"
	"sync"
	"time"

	"github.com/aidlink/triage/request"
)

// Collector accumulates admission and completion events. All methods
// are safe for concurrent use: completions arrive from many
// simultaneously finishing executions. Counters are monotonic and are
// never reset for the life of the process.
//
// total_queued counts every admission attempt, accepted or refused;
// the per-priority breakdown counts accepted admissions only.
type Collector struct {
	mu sync.Mutex

	totalQueued    uint64
	totalProcessed uint64
	totalRejected  uint64
	totalErrors    uint64
	totalEvicted   uint64
	totalCancelled uint64

	byPriority map[request.Priority]uint64

	queueWaitTotal  time.Duration
	queueWaitCount  uint64
	processingTotal time.Duration
	processingCount uint64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		byPriority: make(map[request.Priority]uint64, 4),
	}
}

// RecordAdmitted counts a successful admission at the given priority.
func (c *Collector) RecordAdmitted(p request.Priority) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalQueued++
	c.byPriority[p]++
}

// RecordCompleted counts a successful handler completion together with
// the time the request spent queued and the time the handler ran.
func (c *Collector) RecordCompleted(queueWait, processing time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalProcessed++
	c.queueWaitTotal += queueWait
	c.queueWaitCount++
	c.processingTotal += processing
	c.processingCount++
}

// RecordRejected counts an admission the queue or a policy refused.
// The attempt still contributes to total_queued, so total_processed +
// total_rejected can never exceed it.
func (c *Collector) RecordRejected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalQueued++
	c.totalRejected++
}

// RecordError counts a handler failure or an internal scheduler fault.
func (c *Collector) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalErrors++
}

// RecordEvicted counts a pending request displaced by an overflow policy.
func (c *Collector) RecordEvicted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalEvicted++
}

// RecordCancelled counts a pending request discarded after its producer
// cancelled it.
func (c *Collector) RecordCancelled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalCancelled++
}

// Snapshot is a point-in-time copy of the collector's aggregates.
// Averages and the success rate are derived at snapshot time.
type Snapshot struct {
	TotalQueued    uint64 `json:"total_queued"`
	TotalProcessed uint64 `json:"total_processed"`
	TotalRejected  uint64 `json:"total_rejected"`
	TotalErrors    uint64 `json:"total_errors"`
	TotalEvicted   uint64 `json:"total_evicted"`
	TotalCancelled uint64 `json:"total_cancelled"`

	// PriorityBreakdown maps canonical tier names to admitted counts.
	PriorityBreakdown map[string]uint64 `json:"priority_breakdown"`

	AvgQueueWait      time.Duration `json:"avg_queue_wait"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`

	// SuccessRate is processed/queued as a percentage, rounded to two
	// decimals; zero when nothing has been queued yet.
	SuccessRate float64 `json:"success_rate"`
}

// Snapshot returns the current aggregates.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		TotalQueued:       c.totalQueued,
		TotalProcessed:    c.totalProcessed,
		TotalRejected:     c.totalRejected,
		TotalErrors:       c.totalErrors,
		TotalEvicted:      c.totalEvicted,
		TotalCancelled:    c.totalCancelled,
		PriorityBreakdown: make(map[string]uint64, 4),
	}

	for _, p := range request.Priorities() {
		s.PriorityBreakdown[p.String()] = c.byPriority[p]
	}

	if c.queueWaitCount > 0 {
		s.AvgQueueWait = c.queueWaitTotal / time.Duration(c.queueWaitCount)
	}
	if c.processingCount > 0 {
		s.AvgProcessingTime = c.processingTotal / time.Duration(c.processingCount)
	}
	if c.totalQueued > 0 {
		rate := float64(c.totalProcessed) / float64(c.totalQueued) * 100
		s.SuccessRate = math.Round(rate*100) / 100
	}

	return s
}
