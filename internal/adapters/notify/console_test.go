package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/pricepool/internal/adapters/notify"
	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeMarket() domain.Market {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Market{
		ID:          "m1",
		Question:    "Will BTC close above 95,000?",
		AssetSymbol: "BTC",
		TargetPrice: 9_500_000_000_000,
		StartPrice:  9_400_000_000_000,
		PriceConf:   3_000_000_000,
		PriceExpo:   -8,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		TotalUp:     300_000_000,
		TotalDown:   700_000_000,
		FeeBps:      domain.DefaultFeeBps,
	}
}

func TestConsole_PrintMarkets(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, 9)

	c.PrintMarkets([]domain.Market{makeMarket()})

	out := buf.String()
	assert.Contains(t, out, "Will BTC close above 95,000?")
	assert.Contains(t, out, "95000.00")
	assert.Contains(t, out, "0.3")
	assert.Contains(t, out, "0.7")
	assert.Contains(t, out, "2%")
	assert.Contains(t, out, "PENDING")
}

func TestConsole_PrintMarkets_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, 9).PrintMarkets(nil)
	assert.Contains(t, buf.String(), "no markets")
}

func TestConsole_PrintMarket_ShowsUnclaimedPayouts(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, 0)

	m := makeMarket()
	m.TotalUp, m.TotalDown = 300, 700
	_, err := m.Resolve(9_600_000_000_000, m.EndTime)
	require.NoError(t, err)

	positions := []domain.Position{
		{ID: "p1", Owner: "alice", MarketID: "m1", Amount: 300, Direction: domain.DirectionUp},
		{ID: "p2", Owner: "bob", MarketID: "m1", Amount: 700, Direction: domain.DirectionDown},
	}
	c.PrintMarket(m, positions)

	out := buf.String()
	assert.Contains(t, out, "96000.00")
	assert.Contains(t, out, "980")
	assert.Contains(t, out, "unclaimed")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "bob")
}

func TestConsole_Notifications(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, 9)
	ctx := context.Background()

	m := makeMarket()
	_, err := m.Resolve(9_500_000_000_000, m.EndTime)
	require.NoError(t, err)
	require.NoError(t, c.MarketResolved(ctx, m))

	p := domain.Position{ID: "p1", Payout: 980_000_000}
	require.NoError(t, c.PositionSettled(ctx, m, p))

	out := buf.String()
	assert.Contains(t, out, "market m1 resolved UP")
	assert.Contains(t, out, "position p1 claimed 0.98")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "95123.45", notify.FormatPrice(9_512_345_000_000, -8))
	assert.Equal(t, "100.00", notify.FormatPrice(100, 0))
}
