package domain

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bet struct {
	dir    Direction
	amount uint64
}

func placeAll(t *testing.T, m *Market, bets []bet) []Position {
	t.Helper()
	out := make([]Position, 0, len(bets))
	for i, b := range bets {
		require.NoError(t, m.AcceptPosition(b.dir, b.amount, t0))
		p, err := NewPosition(string(rune('a'+i)), "owner", *m, b.dir, b.amount, t0)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestSettle_Scenario(t *testing.T) {
	m := newTestMarket(t, 100)
	ps := placeAll(t, &m, []bet{{DirectionUp, 300}, {DirectionDown, 700}})

	winner, err := m.Resolve(150, m.EndTime)
	require.NoError(t, err)
	assert.Equal(t, DirectionUp, winner)

	// 300 × (1000 × 9800 / 10000) / 300 = 980
	payout, err := ps[0].Settle(m, m.EndTime)
	require.NoError(t, err)
	assert.Equal(t, uint64(980), payout)
	assert.True(t, ps[0].Claimed)
	assert.Equal(t, uint64(980), ps[0].Payout)

	_, err = ps[1].Settle(m, m.EndTime)
	assert.ErrorIs(t, err, ErrLostBet)
	assert.False(t, ps[1].Claimed)
}

func TestSettle_EmptyWinningPool(t *testing.T) {
	m := newTestMarket(t, 100)
	ps := placeAll(t, &m, []bet{{DirectionDown, 700}})
	_, err := m.Resolve(150, m.EndTime)
	require.NoError(t, err)

	// una posición Up de 0 gana pero el pool ganador está vacío
	zero, err := NewPosition("z", "owner", m, DirectionUp, 0, t0)
	require.NoError(t, err)
	_, err = zero.Settle(m, m.EndTime)
	assert.ErrorIs(t, err, ErrMath)
	assert.False(t, zero.Claimed)

	_, err = ps[0].Settle(m, m.EndTime)
	assert.ErrorIs(t, err, ErrLostBet)
}

func TestSettle_NotResolved(t *testing.T) {
	m := newTestMarket(t, 100)
	ps := placeAll(t, &m, []bet{{DirectionUp, 10}})
	_, err := ps[0].Settle(m, m.EndTime)
	assert.ErrorIs(t, err, ErrMarketNotResolved)
}

func TestSettle_Twice(t *testing.T) {
	m := newTestMarket(t, 100)
	ps := placeAll(t, &m, []bet{{DirectionUp, 10}, {DirectionDown, 10}})
	_, err := m.Resolve(100, m.EndTime)
	require.NoError(t, err)

	first, err := ps[0].Settle(m, m.EndTime)
	require.NoError(t, err)
	assert.Equal(t, uint64(19), first)

	_, err = ps[0].Settle(m, m.EndTime)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Equal(t, first, ps[0].Payout)
}

func TestSettle_WrongMarket(t *testing.T) {
	m := newTestMarket(t, 100)
	ps := placeAll(t, &m, []bet{{DirectionUp, 10}})
	_, err := m.Resolve(100, m.EndTime)
	require.NoError(t, err)

	other := m
	other.ID = "mkt-2"
	_, err = ps[0].Settle(other, m.EndTime)
	assert.ErrorIs(t, err, ErrWrongMarket)
}

func TestComputePayout_NoOverflowOnHugePools(t *testing.T) {
	m := newTestMarket(t, 100)
	ps := placeAll(t, &m, []bet{
		{DirectionUp, math.MaxUint64 / 2},
		{DirectionDown, math.MaxUint64 / 4},
	})
	_, err := m.Resolve(100, m.EndTime)
	require.NoError(t, err)

	payout, err := ComputePayout(m, ps[0])
	require.NoError(t, err)

	// total × 0.98 cabe en uint64 y el único ganador se lo lleva entero
	want := PoolAfterFee(m.TotalUp, m.TotalDown, m.FeeBps)
	assert.True(t, want.IsUint64())
	assert.Equal(t, want.Uint64(), payout)
}

func TestComputePayout_ResultTooLarge(t *testing.T) {
	m := newTestMarket(t, 100)
	ps := placeAll(t, &m, []bet{
		{DirectionUp, 1},
		{DirectionDown, math.MaxUint64},
	})
	m.FeeBps = 0
	_, err := m.Resolve(100, m.EndTime)
	require.NoError(t, err)

	_, err = ComputePayout(m, ps[0])
	assert.ErrorIs(t, err, ErrMath)
}

// La suma de pagos nunca supera total × (1 − fee).
func TestComputePayout_Conservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		m := newTestMarket(t, 100)
		n := 1 + rng.Intn(30)
		bets := make([]bet, n)
		for i := range bets {
			dir := DirectionUp
			if rng.Intn(2) == 0 {
				dir = DirectionDown
			}
			bets[i] = bet{dir: dir, amount: uint64(rng.Int63n(1_000_000_000))}
		}
		ps := placeAll(t, &m, bets)

		endPrice := int64(50 + rng.Intn(100))
		winner, err := m.Resolve(endPrice, m.EndTime)
		require.NoError(t, err)
		if m.Pool(winner) == 0 {
			continue
		}

		var sum uint64
		for i := range ps {
			payout, err := ps[i].Settle(m, m.EndTime.Add(time.Second))
			if ps[i].Direction != winner {
				assert.ErrorIs(t, err, ErrLostBet)
				continue
			}
			require.NoError(t, err)
			sum += payout
		}

		limit := PoolAfterFee(m.TotalUp, m.TotalDown, m.FeeBps).Uint64()
		assert.LessOrEqual(t, sum, limit, "round %d", round)
		// el polvo del redondeo es como mucho un unit por ganador
		assert.LessOrEqual(t, limit-sum, uint64(n), "round %d", round)
	}
}

func TestProjectedPayout(t *testing.T) {
	m := newTestMarket(t, 100)
	placeAll(t, &m, []bet{{DirectionDown, 700}})

	got, err := ProjectedPayout(m, DirectionUp, 300)
	require.NoError(t, err)
	assert.Equal(t, uint64(980), got)

	// no muta el mercado original
	assert.Zero(t, m.TotalUp)
	assert.Equal(t, OutcomePending, m.Outcome)
}

func TestPriceObservation_Decimal(t *testing.T) {
	o := PriceObservation{Price: 9_512_345_000_000, Expo: -8}
	assert.Equal(t, "95123.45", o.Decimal().String())
}
