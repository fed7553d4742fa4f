package apiclient

import (
	"sync"
	"time"
)

// breakerState represents the state of the circuit breaker.
type breakerState int

const (
	circuitClosed   breakerState = iota // normal operation
	circuitOpen                         // failing fast
	circuitHalfOpen                     // probing
)

// BreakerConfig holds circuit breaker settings. The breaker guards a single
// upstream API: only transport failures count toward the threshold; API
// errors (including rate limits) never trip it.
type BreakerConfig struct {
	FailThreshold int           // consecutive transport failures before opening
	Cooldown      time.Duration // how long to stay open before probing
	FailWindow    time.Duration // reset the counter if the last failure is older than this
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailThreshold: 5,
		Cooldown:      30 * time.Second,
		FailWindow:    60 * time.Second,
	}
}

type breaker struct {
	mu     sync.Mutex
	config BreakerConfig

	consecutiveFails int
	lastFailTime     time.Time
	openedAt         time.Time
	state            breakerState
}

func newBreaker(config BreakerConfig) *breaker {
	if config.FailThreshold <= 0 {
		config.FailThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.FailWindow <= 0 {
		config.FailWindow = 60 * time.Second
	}
	return &breaker{config: config}
}

// allow reports whether a call should proceed. Open circuits fail fast until
// the cooldown elapses, then allow a single probe.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitOpen:
		if time.Since(b.openedAt) >= b.config.Cooldown {
			b.state = circuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFails = 0
	b.state = circuitClosed
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if !b.lastFailTime.IsZero() && now.Sub(b.lastFailTime) > b.config.FailWindow {
		b.consecutiveFails = 0
	}

	b.consecutiveFails++
	b.lastFailTime = now

	if b.consecutiveFails >= b.config.FailThreshold || b.state == circuitHalfOpen {
		b.state = circuitOpen
		b.openedAt = now
	}
}
