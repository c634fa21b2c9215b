package engine

import (
	"time"

	"orbsync/internal/models"
)

// Backoff is a fixed lookup table indexed by retry count. Once the count
// walks past the end of the table the last entry applies — an entry that
// keeps failing server-side is retried indefinitely at the ceiling until it
// succeeds, is discarded by a 4xx, or the queue is cleared.
type Backoff struct {
	Delays     []time.Duration
	MaxRetries int
}

// DefaultBackoff grows geometrically from 1s to a 30s ceiling.
func DefaultBackoff() Backoff {
	return Backoff{
		Delays:     []time.Duration{time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second},
		MaxRetries: models.DefaultMaxRetries,
	}
}

// DelayFor returns the wait before attempting an entry with the given retry
// count. A first attempt (count 0) is immediate.
func (b Backoff) DelayFor(retryCount int) time.Duration {
	if retryCount <= 0 || len(b.Delays) == 0 {
		return 0
	}
	idx := retryCount
	if idx >= len(b.Delays) {
		idx = len(b.Delays) - 1
	}
	return b.Delays[idx]
}
