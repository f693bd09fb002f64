package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/pricepool/internal/domain"
)

const marketColumns = `id, admin, question, asset_symbol, feed_id, start_price, price_conf,
	price_expo, target_price, end_price, start_time, end_time, total_up, total_down,
	fee_bps, outcome, resolved_at`

const positionColumns = `id, market_id, owner, amount, direction, claimed, payout, placed_at, claimed_at`

// reader implementa ports.Reader sobre la base o sobre una transacción abierta.
type reader struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

// GetMarket devuelve el mercado o domain.ErrNotFound.
func (r reader) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+marketColumns+" FROM markets WHERE id = ?", id)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("storage.GetMarket: %w", notFound(err, "market", id))
	}
	return m, nil
}

// GetPosition devuelve la posición o domain.ErrNotFound.
func (r reader) GetPosition(ctx context.Context, id string) (domain.Position, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+positionColumns+" FROM positions WHERE id = ?", id)
	p, err := scanPosition(row)
	if err != nil {
		return domain.Position{}, fmt.Errorf("storage.GetPosition: %w", notFound(err, "position", id))
	}
	return p, nil
}

// ListPositions devuelve las posiciones de un mercado en orden de colocación.
func (r reader) ListPositions(ctx context.Context, marketID string) ([]domain.Position, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE market_id = ? ORDER BY placed_at ASC, rowid ASC",
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ListPositions: query: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListPositions: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Balance devuelve el saldo de una cuenta (0 si nunca tuvo movimientos).
func (r reader) Balance(ctx context.Context, account string) (uint64, error) {
	var amount string
	err := r.q.QueryRowContext(ctx, `SELECT amount FROM balances WHERE account = ?`, account).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage.Balance: %w", err)
	}
	v, err := parseAmount(amount)
	if err != nil {
		return 0, fmt.Errorf("storage.Balance: %w", err)
	}
	return v, nil
}

func scanMarket(row rowScanner) (domain.Market, error) {
	var (
		m              domain.Market
		conf, up, down string
		start, end     int64
		outcome        int
		resolvedAt     sql.NullInt64
	)
	if err := row.Scan(
		&m.ID, &m.Admin, &m.Question, &m.AssetSymbol, &m.FeedID,
		&m.StartPrice, &conf, &m.PriceExpo, &m.TargetPrice, &m.EndPrice,
		&start, &end, &up, &down, &m.FeeBps, &outcome, &resolvedAt,
	); err != nil {
		return domain.Market{}, err
	}

	var err error
	if m.PriceConf, err = parseAmount(conf); err != nil {
		return domain.Market{}, err
	}
	if m.TotalUp, err = parseAmount(up); err != nil {
		return domain.Market{}, err
	}
	if m.TotalDown, err = parseAmount(down); err != nil {
		return domain.Market{}, err
	}
	m.StartTime = fromNanos(start)
	m.EndTime = fromNanos(end)
	m.Outcome = domain.Outcome(outcome)
	m.ResolvedAt = fromNullNanos(resolvedAt)
	return m, nil
}

func scanPosition(row rowScanner) (domain.Position, error) {
	var (
		p              domain.Position
		amount, payout string
		direction      int
		claimed        int
		placedAt       int64
		claimedAt      sql.NullInt64
	)
	if err := row.Scan(
		&p.ID, &p.MarketID, &p.Owner, &amount, &direction,
		&claimed, &payout, &placedAt, &claimedAt,
	); err != nil {
		return domain.Position{}, err
	}

	var err error
	if p.Amount, err = parseAmount(amount); err != nil {
		return domain.Position{}, err
	}
	if p.Payout, err = parseAmount(payout); err != nil {
		return domain.Position{}, err
	}
	p.Direction = domain.Direction(direction)
	p.Claimed = claimed == 1
	p.PlacedAt = fromNanos(placedAt)
	p.ClaimedAt = fromNullNanos(claimedAt)
	return p, nil
}
