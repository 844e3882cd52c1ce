package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Get(t *testing.T) {
	m := NewManager(DefaultSettings())

	cb := m.Get("google")
	require.NotNil(t, cb)
	assert.Same(t, cb, m.Get("google"), "same provider must reuse the breaker")
	assert.NotSame(t, cb, m.Get("github"), "providers get independent breakers")
}

func TestManager_OpensAfterConsecutiveFailures(t *testing.T) {
	m := NewManager(Settings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
	})

	cb := m.Get("google")
	fail := func() (any, error) { return nil, errors.New("boom") }

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(fail)
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, m.State("google"))
	assert.True(t, m.IsOpen("google"))

	_, err := cb.Execute(func() (any, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	// The other provider is unaffected.
	assert.False(t, m.IsOpen("github"))
}

func TestManager_States(t *testing.T) {
	m := NewManager(DefaultSettings())
	m.Get("google")
	m.Get("github")

	states := m.States()
	assert.Len(t, states, 2)
	assert.Equal(t, gobreaker.StateClosed, states["google"])
	assert.Equal(t, gobreaker.StateClosed, states["github"])
}

func TestNewManager_ZeroSettingsFallBack(t *testing.T) {
	m := NewManager(Settings{})
	assert.Equal(t, DefaultSettings(), m.settings)
}
