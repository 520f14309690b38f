// Helper functions that deal with atomic variables and their values
package atomics

import (
	"sync/atomic"
	"time"
)

// Waits until the atomic value reads 0, with backoff and timeout.
// Used to drain in-flight work counters during shutdown.
func WaitUntilZero(value *atomic.Int64, timeout time.Duration) (reachedZero bool, lastValue int64) {
	backoff := 10 * time.Millisecond
	maxBackoff := 250 * time.Millisecond

	deadline := time.Now().Add(timeout)

	for {
		lastValue = value.Load()
		if lastValue == 0 {
			reachedZero = true
			return
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}

		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)

		// Exponential backoff with cap
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
