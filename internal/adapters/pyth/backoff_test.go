package pyth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_GrowsWithJitter(t *testing.T) {
	for attempt := range maxRetries {
		base := time.Duration(1<<attempt) * baseRetryWait
		for range 50 {
			got := backoff(attempt)
			assert.GreaterOrEqual(t, got, base)
			assert.LessOrEqual(t, got, base+base/2)
		}
	}
}
