package clock_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/pricepool/internal/adapters/clock"
	"github.com/stretchr/testify/assert"
)

func TestManual_OnlyMovesForward(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Advance(-time.Hour)
	c.Set(start)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Set(start.Add(time.Hour))
	assert.Equal(t, start.Add(time.Hour), c.Now())
}

func TestSystem_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, clock.System{}.Now().Location())
}
