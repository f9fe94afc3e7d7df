// Package shed records requests the queue refused to carry: rejections
// at admission, overflow evictions, and cancellations of pending work.
// Entries are kept in a bounded in-memory ring so operators can inspect
// recent shedding without an external store.
package shed

import (
	"sync"
	"time"

	"github.com/aidlink/triage/id"
	"github.com/aidlink/triage/request"
)

// Reason classifies why a request was shed.
type Reason string

const (
	// ReasonRejected means admission refused the request.
	ReasonRejected Reason = "rejected"
	// ReasonEvicted means an overflow policy displaced a pending request.
	ReasonEvicted Reason = "evicted"
	// ReasonCancelled means the producer cancelled a pending request.
	ReasonCancelled Reason = "cancelled"
)

// Entry captures one shed request. The payload is retained so a caller
// can resubmit the request after conditions improve.
type Entry struct {
	RequestID id.RequestID     `json:"request_id"`
	Type      string           `json:"type"`
	Priority  request.Priority `json:"priority"`
	ClientID  string           `json:"client_id,omitempty"`
	Payload   []byte           `json:"payload,omitempty"`
	Reason    Reason           `json:"reason"`
	Detail    string           `json:"detail,omitempty"`
	ShedAt    time.Time        `json:"shed_at"`
}

// Log is a fixed-capacity ring of shed entries. When full, the oldest
// entry is overwritten. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewLog creates a shed log holding at most capacity entries.
// A non-positive capacity disables recording.
func NewLog(capacity int) *Log {
	if capacity < 0 {
		capacity = 0
	}
	return &Log{entries: make([]Entry, capacity)}
}

// Record appends a shed entry built from the request. detail carries the
// triggering error's message, empty when there is none.
func (l *Log) Record(req *request.Request, reason Reason, detail string) {
	if len(l.entries) == 0 {
		return
	}

	e := Entry{
		RequestID: req.ID,
		Type:      req.Type,
		Priority:  req.Priority,
		ClientID:  req.ClientID,
		Payload:   req.Payload,
		Reason:    reason,
		Detail:    detail,
		ShedAt:    time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = e
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Recent returns up to limit entries, newest first. A non-positive
// limit returns everything retained.
func (l *Log) Recent(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := l.next - i
		if idx < 0 {
			idx += len(l.entries)
		}
		out = append(out, l.entries[idx])
	}
	return out
}

// Len reports how many entries are currently retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lenLocked()
}

func (l *Log) lenLocked() int {
	if l.full {
		return len(l.entries)
	}
	return l.next
}
