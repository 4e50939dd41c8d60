package infra

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ── Circuit Breaker ───────────────────────────────────────────────────────────
// Guards calls to an external dependency (Redis for event fan-out) so that a
// dead broker fails fast instead of stalling every caller.
//
// States: closed → open after MaxFailures consecutive errors → half-open after
// OpenTimeout, where a single trial request decides whether to close again.

// BreakerConfig tunes NewCircuitBreaker.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// DefaultBreakerConfig trips after 5 consecutive failures and retries after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second}
}

// NewCircuitBreaker builds a named breaker that logs every state transition.
func NewCircuitBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
}
