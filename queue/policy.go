package queue

import "fmt"

// Policy selects the behaviour applied when the queue is full at
// admission time. It is configured once at queue construction.
type Policy string

const (
	// Reject refuses the new request and leaves the queue untouched.
	Reject Policy = "reject"

	// DropOldest evicts the pending request with the smallest enqueue
	// timestamp, regardless of priority, then admits the new request.
	DropOldest Policy = "drop_oldest"

	// DropLowestPriority evicts the worst pending request, but only
	// when the new arrival is strictly more urgent than it; otherwise
	// the new request is refused.
	DropLowestPriority Policy = "drop_lowest_priority"
)

// Valid reports whether p is one of the declared policies.
func (p Policy) Valid() bool {
	switch p {
	case Reject, DropOldest, DropLowestPriority:
		return true
	default:
		return false
	}
}

// ParsePolicy parses a policy name as used in configuration files.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if !p.Valid() {
		return "", fmt.Errorf("queue: unknown overflow policy %q", s)
	}
	return p, nil
}
