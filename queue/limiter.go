package queue

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig defines the token-bucket admission rate for one request type.
type LimitConfig struct {
	// Type is the request type this limit applies to (must match the
	// type passed to Admit).
	Type string

	// Rate is the maximum sustained admissions per second for this
	// type. Zero disables rate limiting for the type.
	Rate float64

	// Burst is the burst size for the token bucket. Defaults to 1 if
	// Rate is set but Burst is zero.
	Burst int
}

// ClientLimitConfig defines an admission rate for a specific client on
// a specific request type, identified by the request's ClientID.
type ClientLimitConfig struct {
	// Type is the request type this limit applies to.
	Type string

	// ClientID is the client identifier.
	ClientID string

	// Rate is the maximum sustained admissions per second for this
	// client on this type.
	Rate float64

	// Burst is the burst size for the client's token bucket.
	Burst int
}

// Limiter enforces per-type and per-client admission rates. It is safe
// for concurrent use. Types without a config have no limits.
type Limiter struct {
	mu      sync.Mutex
	types   map[string]*rate.Limiter
	clients map[string]*rate.Limiter
}

// NewLimiter creates a Limiter with the given per-type configurations.
func NewLimiter(configs ...LimitConfig) *Limiter {
	l := &Limiter{
		types:   make(map[string]*rate.Limiter, len(configs)),
		clients: make(map[string]*rate.Limiter),
	}
	for _, cfg := range configs {
		l.types[cfg.Type] = newBucket(cfg.Rate, cfg.Burst)
	}
	return l
}

func newBucket(r float64, burst int) *rate.Limiter {
	if r <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(r), burst)
}

// clientKey builds the map key for a type+client pair.
func clientKey(requestType, clientID string) string {
	return fmt.Sprintf("%s:%s", requestType, clientID)
}

// Allow reports whether an admission of the given type from the given
// client is within the configured rates, consuming one token from each
// applicable bucket. Unconfigured types and clients always pass.
func (l *Limiter) Allow(requestType, clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tb := l.types[requestType]; tb != nil && !tb.Allow() {
		return false
	}

	if clientID != "" {
		if cb := l.clients[clientKey(requestType, clientID)]; cb != nil && !cb.Allow() {
			return false
		}
	}

	return true
}

// SetLimit dynamically updates (or creates) the rate for a request type.
func (l *Limiter) SetLimit(cfg LimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types[cfg.Type] = newBucket(cfg.Rate, cfg.Burst)
}

// SetClientLimit configures the rate for a specific client on a
// specific request type. Calling it again for the same pair replaces
// the previous configuration.
func (l *Limiter) SetClientLimit(cfg ClientLimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients[clientKey(cfg.Type, cfg.ClientID)] = newBucket(cfg.Rate, cfg.Burst)
}
