// Package circuitbreaker manages per-provider circuit breakers using
// sony/gobreaker.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/dzerik/oauth-service/pkg/logger"
)

// Settings holds the tuning knobs shared by all provider breakers.
type Settings struct {
	// MaxRequests is the maximum number of requests in half-open state.
	MaxRequests uint32
	// Interval is the cyclic period for clearing counts in closed state.
	Interval time.Duration
	// Timeout is the period of open state before switching to half-open.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures to open.
	FailureThreshold uint32
}

// DefaultSettings returns the default breaker settings.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Manager lazily creates one circuit breaker per identity provider, so a
// flapping provider cannot poison calls to the others.
type Manager struct {
	settings Settings

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewManager creates a circuit breaker manager.
func NewManager(settings Settings) *Manager {
	if settings.FailureThreshold == 0 {
		settings = DefaultSettings()
	}
	return &Manager{
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Get returns or creates the circuit breaker for a provider.
func (m *Manager) Get(provider string) *gobreaker.CircuitBreaker[any] {
	m.mu.RLock()
	cb, exists := m.breakers[provider]
	m.mu.RUnlock()
	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, exists = m.breakers[provider]; exists {
		return cb
	}
	cb = m.createBreaker(provider)
	m.breakers[provider] = cb
	return cb
}

func (m *Manager) createBreaker(provider string) *gobreaker.CircuitBreaker[any] {
	threshold := m.settings.FailureThreshold
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        provider,
		MaxRequests: m.settings.MaxRequests,
		Interval:    m.settings.Interval,
		Timeout:     m.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", stateToString(from)),
				zap.String("to", stateToString(to)),
			)
		},
	})
}

// State returns the current state of a provider's breaker.
func (m *Manager) State(provider string) gobreaker.State {
	return m.Get(provider).State()
}

// IsOpen reports whether a provider's breaker is open.
func (m *Manager) IsOpen(provider string) bool {
	return m.State(provider) == gobreaker.StateOpen
}

// States returns the state of every created breaker.
func (m *Manager) States() map[string]gobreaker.State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]gobreaker.State, len(m.breakers))
	for name, cb := range m.breakers {
		states[name] = cb.State()
	}
	return states
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
