package request

import "time"

// Options configures per-request admission metadata.
type Options struct {
	// Priority overrides the classifier-derived tier. The zero value
	// means "classify from the request type".
	Priority Priority

	// ClientID is an optional caller identifier carried for logging
	// and shed-log attribution.
	ClientID string

	// Timeout is the maximum duration the handler may run before its
	// context is cancelled. Zero means no per-request deadline.
	Timeout time.Duration
}

// DefaultOptions returns Options with no overrides set.
func DefaultOptions() Options {
	return Options{}
}

// Option is a functional option applied at admission time.
type Option func(*Options)

// WithPriority pins the request to an explicit priority tier,
// bypassing the classifier.
func WithPriority(p Priority) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithClientID attaches a caller identifier to the request.
func WithClientID(clientID string) Option {
	return func(o *Options) {
		o.ClientID = clientID
	}
}

// WithTimeout sets the maximum handler execution duration for the request.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}
