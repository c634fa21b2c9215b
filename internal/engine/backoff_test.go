package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayFor(t *testing.T) {
	b := Backoff{Delays: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, MaxRetries: 3}

	// First attempt is immediate
	assert.Equal(t, time.Duration(0), b.DelayFor(0))

	assert.Equal(t, 2*time.Second, b.DelayFor(1))
	assert.Equal(t, 4*time.Second, b.DelayFor(2))

	// Clamped at the last table entry once the count walks past it
	assert.Equal(t, 4*time.Second, b.DelayFor(3))
	assert.Equal(t, 4*time.Second, b.DelayFor(100))
}

func TestBackoffEmptyTable(t *testing.T) {
	var b Backoff
	assert.Equal(t, time.Duration(0), b.DelayFor(5))
}

func TestBackoffDefaults(t *testing.T) {
	b := DefaultBackoff()
	assert.NotEmpty(t, b.Delays)
	assert.Equal(t, 30*time.Second, b.Delays[len(b.Delays)-1])
	assert.Equal(t, 6, b.MaxRetries)

	// Delays are non-decreasing up to the ceiling
	for i := 1; i < len(b.Delays); i++ {
		assert.GreaterOrEqual(t, b.Delays[i], b.Delays[i-1])
	}
}
