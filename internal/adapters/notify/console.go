package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// Console implementa ports.Notifier y además imprime tablas de mercados y posiciones.
type Console struct {
	out      io.Writer
	decimals int32 // decimales de la unidad base (9 = lamports → SOL)
	now      func() time.Time
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(decimals int32) *Console {
	return NewConsoleWriter(os.Stdout, decimals)
}

// NewConsoleWriter crea un notificador sobre w (tests).
func NewConsoleWriter(w io.Writer, decimals int32) *Console {
	return &Console{out: w, decimals: decimals, now: time.Now}
}

// MarketResolved imprime una línea con el resultado.
func (c *Console) MarketResolved(_ context.Context, m domain.Market) error {
	fmt.Fprintf(c.out, "[%s] market %s resolved %s | %s target %s end %s | pool up %s down %s\n",
		c.now().Format("15:04:05"),
		m.ID,
		m.Outcome,
		m.AssetSymbol,
		FormatPrice(m.TargetPrice, m.PriceExpo),
		FormatPrice(m.EndPrice, m.PriceExpo),
		c.amount(m.TotalUp),
		c.amount(m.TotalDown),
	)
	return nil
}

// PositionSettled imprime el cobro de una posición.
func (c *Console) PositionSettled(_ context.Context, m domain.Market, p domain.Position) error {
	fmt.Fprintf(c.out, "[%s] position %s claimed %s (fee %s%%) on market %s\n",
		c.now().Format("15:04:05"),
		p.ID,
		c.amount(p.Payout),
		feePct(m.FeeBps),
		m.ID,
	)
	return nil
}

// PrintMarkets imprime la tabla de mercados.
func (c *Console) PrintMarkets(markets []domain.Market) {
	if len(markets) == 0 {
		fmt.Fprintf(c.out, "[%s] no markets\n", c.now().Format("15:04:05"))
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Asset", "Question", "Target", "Ends", "Up", "Down", "Fee", "Outcome")
	for _, m := range markets {
		table.Append(
			m.ID,
			m.AssetSymbol,
			truncate(m.Question, 40),
			FormatPrice(m.TargetPrice, m.PriceExpo),
			m.EndTime.Format(time.RFC3339),
			c.amount(m.TotalUp),
			c.amount(m.TotalDown),
			feePct(m.FeeBps)+"%",
			m.Outcome.String(),
		)
	}
	table.Render()
}

// PrintMarket imprime el detalle de un mercado con sus posiciones y lo que
// cobraría cada una si el resultado actual (o el proyectado) se mantiene.
func (c *Console) PrintMarket(m domain.Market, positions []domain.Position) {
	fmt.Fprintf(c.out, "\nMarket %s — %s\n", m.ID, m.Question)
	fmt.Fprintf(c.out, "  asset %s feed %s\n", m.AssetSymbol, m.FeedID)
	fmt.Fprintf(c.out, "  start %s (±%s) target %s",
		FormatPrice(m.StartPrice, m.PriceExpo),
		decimal.New(int64(m.PriceConf), m.PriceExpo).String(),
		FormatPrice(m.TargetPrice, m.PriceExpo),
	)
	if m.Resolved() {
		fmt.Fprintf(c.out, " end %s → %s", FormatPrice(m.EndPrice, m.PriceExpo), m.Outcome)
	}
	fmt.Fprintf(c.out, "\n  window %s → %s | fee %s%%\n",
		m.StartTime.Format(time.RFC3339), m.EndTime.Format(time.RFC3339), feePct(m.FeeBps))

	if len(positions) == 0 {
		fmt.Fprintln(c.out, "  no positions")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Position", "Owner", "Side", "Stake", "Claimed", "Payout")
	for _, p := range positions {
		payout := "-"
		switch {
		case p.Claimed:
			payout = c.amount(p.Payout)
		case m.Resolved():
			if v, err := domain.ComputePayout(m, p); err == nil {
				payout = c.amount(v) + " (unclaimed)"
			}
		}
		table.Append(
			p.ID,
			p.Owner,
			p.Direction.String(),
			c.amount(p.Amount),
			fmt.Sprintf("%t", p.Claimed),
			payout,
		)
	}
	table.Render()
}

// PrintBalance imprime el saldo de una cuenta.
func (c *Console) PrintBalance(account string, balance uint64) {
	fmt.Fprintf(c.out, "%s: %s\n", account, c.amount(balance))
}

// amount formatea una cantidad en unidades base con los decimales configurados.
func (c *Console) amount(v uint64) string {
	return decimal.NewFromUint64(v).Shift(-c.decimals).String()
}

// FormatPrice aplica el exponente del feed: price × 10^expo.
func FormatPrice(price int64, expo int32) string {
	return decimal.New(price, expo).StringFixed(2)
}

func feePct(bps uint64) string {
	return decimal.NewFromUint64(bps).Shift(-2).String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
