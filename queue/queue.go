package queue

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/aidlink/triage/request"
)

// ErrFull is returned by Admit when the queue is at capacity and the
// overflow policy declined to evict an occupant.
var ErrFull = errors.New("triage: queue full")

// entry wraps a pending handle with the heap bookkeeping needed for a
// stable total order.
type entry struct {
	h   *request.Handle
	seq uint64
	idx int
}

// Bounded is a capacity-limited priority queue of pending requests.
//
// All mutating operations (insert, evict, dequeue) share one exclusive
// critical section: eviction policies scan the full pending set and
// must see a consistent snapshot, so a concurrent eviction and a
// concurrent dequeue can never interleave. No operation blocks the
// caller.
type Bounded struct {
	mu      sync.Mutex
	maxSize int
	policy  Policy
	weights map[request.Priority]int
	items   pendingHeap
	seq     uint64
}

// Option configures a Bounded queue.
type Option func(*Bounded)

// WithWeights remaps priority ordinals for queue comparison. The
// mapping must preserve the strict urgency order of the tiers; it only
// stretches the distances between them (an emergency deployment may
// push NORMAL and LOW further down without reordering anything).
func WithWeights(w map[request.Priority]int) Option {
	return func(b *Bounded) {
		b.weights = w
	}
}

// New creates a Bounded queue holding at most maxSize pending requests.
// maxSize of zero means the queue is permanently full and every
// admission goes through the overflow policy (which finds nothing to
// evict and rejects).
func New(maxSize int, policy Policy, opts ...Option) *Bounded {
	b := &Bounded{
		maxSize: maxSize,
		policy:  policy,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.items.less = b.less
	return b
}

// MaxSize returns the configured capacity.
func (b *Bounded) MaxSize() int { return b.maxSize }

// Policy returns the configured overflow policy.
func (b *Bounded) Policy() Policy { return b.policy }

// Len returns the current number of pending requests.
func (b *Bounded) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items.entries)
}

// ordinal returns the comparison weight for a priority, honouring any
// per-deployment remapping.
func (b *Bounded) ordinal(p request.Priority) int {
	if b.weights != nil {
		if w, ok := b.weights[p]; ok {
			return w
		}
	}
	return p.Ordinal()
}

// less defines the total order: priority ordinal ascending, enqueue
// timestamp ascending, admission sequence ascending.
func (b *Bounded) less(x, y *entry) bool {
	px, py := b.ordinal(x.h.Request().Priority), b.ordinal(y.h.Request().Priority)
	if px != py {
		return px < py
	}
	tx, ty := x.h.Request().EnqueuedAt, y.h.Request().EnqueuedAt
	if !tx.Equal(ty) {
		return tx.Before(ty)
	}
	return x.seq < y.seq
}

// Admit inserts h, consulting the overflow policy when the queue is
// full. It returns the evicted handle, if the policy displaced one, so
// the caller can resolve the displaced producer's result slot. When the
// policy declines to make room, Admit returns ErrFull and the queue is
// left completely unchanged.
func (b *Bounded) Admit(h *request.Handle) (*request.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var evicted *request.Handle
	if len(b.items.entries) >= b.maxSize {
		switch b.policy {
		case DropOldest:
			evicted = b.evictOldest()
		case DropLowestPriority:
			evicted = b.evictWorseThan(h.Request().Priority)
		}
		if evicted == nil {
			return nil, ErrFull
		}
	}

	b.seq++
	heap.Push(&b.items, &entry{h: h, seq: b.seq})
	return evicted, nil
}

// Pop removes and returns the most urgent pending request per the total
// order. The second return is false when the queue is empty.
func (b *Bounded) Pop() (*request.Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items.entries) == 0 {
		return nil, false
	}
	e := heap.Pop(&b.items).(*entry)
	return e.h, true
}

// evictOldest removes the pending request with the smallest enqueue
// timestamp, regardless of priority. Returns nil when the queue is empty.
func (b *Bounded) evictOldest() *request.Handle {
	oldest := -1
	for i, e := range b.items.entries {
		if oldest == -1 {
			oldest = i
			continue
		}
		o := b.items.entries[oldest]
		if e.h.Request().EnqueuedAt.Before(o.h.Request().EnqueuedAt) ||
			(e.h.Request().EnqueuedAt.Equal(o.h.Request().EnqueuedAt) && e.seq < o.seq) {
			oldest = i
		}
	}
	if oldest == -1 {
		return nil
	}
	e := heap.Remove(&b.items, oldest).(*entry)
	return e.h
}

// evictWorseThan removes the worst pending request (largest ordinal,
// ties broken by latest enqueue timestamp), but only when the incoming
// priority is strictly more urgent than it. Returns nil when no
// occupant may be bumped.
func (b *Bounded) evictWorseThan(incoming request.Priority) *request.Handle {
	worst := -1
	for i, e := range b.items.entries {
		if worst == -1 {
			worst = i
			continue
		}
		w := b.items.entries[worst]
		eo, wo := b.ordinal(e.h.Request().Priority), b.ordinal(w.h.Request().Priority)
		if eo > wo {
			worst = i
			continue
		}
		if eo == wo {
			et, wt := e.h.Request().EnqueuedAt, w.h.Request().EnqueuedAt
			if et.After(wt) || (et.Equal(wt) && e.seq > w.seq) {
				worst = i
			}
		}
	}
	if worst == -1 {
		return nil
	}
	if b.ordinal(incoming) >= b.ordinal(b.items.entries[worst].h.Request().Priority) {
		return nil
	}
	e := heap.Remove(&b.items, worst).(*entry)
	return e.h
}

// pendingHeap implements heap.Interface over the pending entries.
type pendingHeap struct {
	entries []*entry
	less    func(x, y *entry) bool
}

func (ph *pendingHeap) Len() int { return len(ph.entries) }

func (ph *pendingHeap) Less(i, j int) bool { return ph.less(ph.entries[i], ph.entries[j]) }

func (ph *pendingHeap) Swap(i, j int) {
	ph.entries[i], ph.entries[j] = ph.entries[j], ph.entries[i]
	ph.entries[i].idx = i
	ph.entries[j].idx = j
}

func (ph *pendingHeap) Push(x any) {
	e := x.(*entry)
	e.idx = len(ph.entries)
	ph.entries = append(ph.entries, e)
}

func (ph *pendingHeap) Pop() any {
	old := ph.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	ph.entries = old[:n-1]
	return e
}
