package client

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffRetryer(t *testing.T) {
	t.Run("defaults with jitter", func(t *testing.T) {
		r := NewExponentialBackoffRetryer()

		delay, ok := r.NextDelay(0, nil)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, delay, 700*time.Millisecond)
		assert.LessOrEqual(t, delay, 1300*time.Millisecond)

		delay, ok = r.NextDelay(2, errors.New("dial failed"))
		assert.True(t, ok)
		assert.GreaterOrEqual(t, delay, 2800*time.Millisecond)
		assert.LessOrEqual(t, delay, 5200*time.Millisecond)

		delay, ok = r.NextDelay(20, nil)
		assert.True(t, ok)
		assert.LessOrEqual(t, delay, 39*time.Second, "capped at max delay plus jitter")
	})

	t.Run("without jitter", func(t *testing.T) {
		r := &ExponentialBackoffRetryer{
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		}

		want := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			800 * time.Millisecond,
			time.Second,
			time.Second,
		}
		for attempt, w := range want {
			delay, ok := r.NextDelay(attempt, nil)
			assert.True(t, ok)
			assert.Equal(t, w, delay, "attempt %d", attempt)
		}
	})

	t.Run("max retries", func(t *testing.T) {
		r := &ExponentialBackoffRetryer{
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
			MaxRetries:   2,
		}

		_, ok := r.NextDelay(1, nil)
		assert.True(t, ok)
		_, ok = r.NextDelay(2, nil)
		assert.False(t, ok)

		r.Reset()
		_, ok = r.NextDelay(0, nil)
		assert.True(t, ok)
	})
}
