package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const btcFeed = "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"

func newTestMarket(t *testing.T, target int64) Market {
	t.Helper()
	m, err := NewMarket("mkt-1", MarketParams{
		Admin:       "admin",
		Question:    "Will BTC close above 100?",
		AssetSymbol: "BTC",
		FeedID:      btcFeed,
		Duration:    time.Hour,
		TargetPrice: target,
		StartPrice:  95,
		PriceConf:   2,
		FeeBps:      DefaultFeeBps,
	}, t0)
	require.NoError(t, err)
	return m
}

func TestNewMarket_Timing(t *testing.T) {
	for _, d := range []time.Duration{time.Second, time.Hour, 72 * time.Hour} {
		m, err := NewMarket("m", MarketParams{Duration: d}, t0)
		require.NoError(t, err)
		assert.Equal(t, m.StartTime.Add(d), m.EndTime)
		assert.Zero(t, m.TotalUp)
		assert.Zero(t, m.TotalDown)
		assert.Equal(t, OutcomePending, m.Outcome)
		assert.False(t, m.Resolved())
	}
}

func TestNewMarket_InvalidInputs(t *testing.T) {
	_, err := NewMarket("m", MarketParams{Duration: 0}, t0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = NewMarket("m", MarketParams{Duration: -time.Minute}, t0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = NewMarket("m", MarketParams{Duration: time.Hour, FeeBps: BasisPoints}, t0)
	assert.ErrorIs(t, err, ErrInvalidFee)

	_, err = NewMarket("m", MarketParams{Duration: time.Hour, FeedID: "0x1234"}, t0)
	assert.ErrorIs(t, err, ErrInvalidFeedID)
}

func TestNewMarket_NormalizesFeedID(t *testing.T) {
	m, err := NewMarket("m", MarketParams{Duration: time.Hour, FeedID: "E62DF6C8B4A85FE1A67DB44DC12DE5DB330F7AC66B72DC658AFEDF0F4A415B43"}, t0)
	require.NoError(t, err)
	assert.Equal(t, btcFeed, m.FeedID)
}

func TestAcceptPosition_SumsPools(t *testing.T) {
	m := newTestMarket(t, 100)

	require.NoError(t, m.AcceptPosition(DirectionUp, 300, t0))
	require.NoError(t, m.AcceptPosition(DirectionDown, 700, t0.Add(time.Minute)))
	require.NoError(t, m.AcceptPosition(DirectionUp, 50, t0.Add(59*time.Minute)))

	assert.Equal(t, uint64(350), m.TotalUp)
	assert.Equal(t, uint64(700), m.TotalDown)
}

func TestAcceptPosition_ClosedAtDeadline(t *testing.T) {
	m := newTestMarket(t, 100)
	require.NoError(t, m.AcceptPosition(DirectionUp, 10, t0))

	err := m.AcceptPosition(DirectionUp, 10, m.EndTime)
	assert.ErrorIs(t, err, ErrMarketClosed)

	err = m.AcceptPosition(DirectionDown, 10, m.EndTime.Add(time.Hour))
	assert.ErrorIs(t, err, ErrMarketClosed)

	assert.Equal(t, uint64(10), m.TotalUp)
	assert.Zero(t, m.TotalDown)
}

func TestAcceptPosition_OverflowLeavesPoolsUntouched(t *testing.T) {
	m := newTestMarket(t, 100)
	require.NoError(t, m.AcceptPosition(DirectionUp, math.MaxUint64-5, t0))

	err := m.AcceptPosition(DirectionUp, 6, t0)
	assert.ErrorIs(t, err, ErrMath)
	assert.Equal(t, uint64(math.MaxUint64-5), m.TotalUp)

	// el otro pool es independiente
	require.NoError(t, m.AcceptPosition(DirectionDown, 6, t0))
	assert.Equal(t, uint64(6), m.TotalDown)
}

// Una posición de 0 se acepta igual que en el programa de referencia.
func TestAcceptPosition_ZeroAmountIsAccepted(t *testing.T) {
	m := newTestMarket(t, 100)
	require.NoError(t, m.AcceptPosition(DirectionUp, 0, t0))
	assert.Zero(t, m.TotalUp)
}

func TestAcceptPosition_InvalidDirection(t *testing.T) {
	m := newTestMarket(t, 100)
	assert.ErrorIs(t, m.AcceptPosition(Direction(9), 10, t0), ErrInvalidDirection)
}

func TestResolve_BeforeDeadline(t *testing.T) {
	m := newTestMarket(t, 100)
	_, err := m.Resolve(150, m.EndTime.Add(-time.Nanosecond))
	assert.ErrorIs(t, err, ErrMarketNotEnded)
	assert.False(t, m.Resolved())
}

func TestResolve_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		endPrice int64
		want     Direction
	}{
		{"above target", 150, DirectionUp},
		{"tie goes up", 100, DirectionUp},
		{"below target", 99, DirectionDown},
		{"negative price", -1, DirectionDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMarket(t, 100)
			got, err := m.Resolve(tt.endPrice, m.EndTime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, OutcomeFor(tt.want), m.Outcome)
			assert.Equal(t, tt.endPrice, m.EndPrice)
			assert.True(t, m.Resolved())
		})
	}
}

func TestResolve_SecondCallRefused(t *testing.T) {
	m := newTestMarket(t, 100)
	_, err := m.Resolve(150, m.EndTime)
	require.NoError(t, err)
	resolvedAt := m.ResolvedAt

	_, err = m.Resolve(10, m.EndTime.Add(time.Hour))
	assert.True(t, errors.Is(err, ErrMarketAlreadyResolved))
	assert.Equal(t, OutcomeUp, m.Outcome)
	assert.Equal(t, int64(150), m.EndPrice)
	assert.Equal(t, resolvedAt, m.ResolvedAt)
}

func TestAcceptPosition_AfterResolve(t *testing.T) {
	m := newTestMarket(t, 100)
	_, err := m.Resolve(150, m.EndTime)
	require.NoError(t, err)

	// aunque el reloj retrocediera, un mercado resuelto no acepta más apuestas
	assert.ErrorIs(t, m.AcceptPosition(DirectionUp, 1, t0), ErrMarketClosed)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("Up")
	require.NoError(t, err)
	assert.Equal(t, DirectionUp, d)

	d, err = ParseDirection(" no ")
	require.NoError(t, err)
	assert.Equal(t, DirectionDown, d)

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestOutcome_Winner(t *testing.T) {
	_, ok := OutcomePending.Winner()
	assert.False(t, ok)

	d, ok := OutcomeDown.Winner()
	assert.True(t, ok)
	assert.Equal(t, DirectionDown, d)
}
