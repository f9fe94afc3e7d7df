package request

import "fmt"

// Priority is an ordered urgency tier. Lower ordinal is more urgent.
// The set is closed: only the four declared tiers are valid, and their
// ordinal values are stable across releases (they are used directly for
// queue ordering comparisons).
type Priority int

const (
	// PriorityEmergency is for medical emergencies and safety issues.
	PriorityEmergency Priority = 1
	// PriorityHigh is for document processing and legal matters.
	PriorityHigh Priority = 2
	// PriorityNormal is for general queries.
	PriorityNormal Priority = 3
	// PriorityLow is for background tasks and analytics.
	PriorityLow Priority = 4
)

// Valid reports whether p is one of the declared tiers.
func (p Priority) Valid() bool {
	return p >= PriorityEmergency && p <= PriorityLow
}

// Ordinal returns the comparison value for queue ordering.
// Smaller means more urgent.
func (p Priority) Ordinal() int { return int(p) }

// String returns the canonical upper-case tier name.
func (p Priority) String() string {
	switch p {
	case PriorityEmergency:
		return "EMERGENCY"
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority parses a canonical tier name into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "EMERGENCY":
		return PriorityEmergency, nil
	case "HIGH":
		return PriorityHigh, nil
	case "NORMAL":
		return PriorityNormal, nil
	case "LOW":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("request: unknown priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("request: invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(data []byte) error {
	parsed, err := ParsePriority(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Priorities returns all tiers in urgency order, most urgent first.
func Priorities() []Priority {
	return []Priority{PriorityEmergency, PriorityHigh, PriorityNormal, PriorityLow}
}
