package listing

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// circuitState represents the state of a circuit breaker
type circuitState int

const (
	stateClosed   circuitState = iota // Normal operation
	stateOpen                         // Index failing, calls skipped
	stateHalfOpen                     // One trial call allowed
)

// circuitBreaker stops calling a failing search index for a cool-down period
// so degraded search answers immediately instead of waiting on timeouts.
type circuitBreaker struct {
	lastFailure      time.Time
	logger           *slog.Logger
	failures         int
	failureThreshold int
	openDuration     time.Duration
	state            circuitState
	mu               sync.Mutex
}

func newCircuitBreaker(threshold int, openDuration time.Duration, logger *slog.Logger) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openDuration <= 0 {
		openDuration = 30 * time.Second
	}
	return &circuitBreaker{
		failureThreshold: threshold,
		openDuration:     openDuration,
		logger:           logger,
	}
}

// canAttempt reports whether the index may be called now
func (cb *circuitBreaker) canAttempt() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		if time.Since(cb.lastFailure) > cb.openDuration {
			cb.state = stateHalfOpen
			cb.logger.Info("search circuit half-open, allowing trial call")
			return true, nil
		}
		return false, fmt.Errorf("%w: circuit open after %d failures, next retry %s",
			ErrSearchUnavailable, cb.failures, cb.lastFailure.Add(cb.openDuration).Format("15:04:05"))
	default:
		return true, nil
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != stateClosed {
		cb.logger.Info("search circuit closed, index recovered")
	}
	cb.failures = 0
	cb.state = stateClosed
}

func (cb *circuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == stateHalfOpen || cb.failures >= cb.failureThreshold {
		if cb.state != stateOpen {
			cb.logger.Warn("opening search circuit",
				"failures", cb.failures,
				"error", err)
		}
		cb.state = stateOpen
		return
	}

	cb.logger.Warn("search index call failed",
		"failure", cb.failures,
		"threshold", cb.failureThreshold,
		"error", err)
}
