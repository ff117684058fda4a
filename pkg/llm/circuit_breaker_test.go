package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 3, ResetAfter: time.Minute})

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		allowed, err := cb.Allow()
		require.NoError(t, err)
		assert.True(t, allowed, "below threshold the circuit stays closed")
	}

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	allowed, err := cb.Allow()
	assert.False(t, allowed)
	assert.Error(t, err)
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Minute})

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State(), "success resets the consecutive count")
}

func TestCircuitBreaker_HalfOpenAfterReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1, ResetAfter: 10 * time.Millisecond})

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	allowed, err := cb.Allow()
	require.NoError(t, err)
	assert.True(t, allowed, "after the reset window one probe goes through")
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// A second caller is rejected while the probe is in flight.
	allowed, err = cb.Allow()
	assert.False(t, allowed)
	assert.Error(t, err)

	// Probe failure re-opens, probe success closes.
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(&Config{}, nil)
	assert.Error(t, err)

	c, err := NewClient(&Config{Endpoint: "http://localhost:8080/v1/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultEmbeddingModel, c.Model())
	assert.Equal(t, "http://localhost:8080/v1/", c.Endpoint())
}
