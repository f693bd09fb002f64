package domain

import "time"

// Position es una apuesta individual sobre un mercado.
// Amount y Direction no cambian nunca; Claimed pasa a true como mucho una vez.
type Position struct {
	ID        string
	Owner     string
	MarketID  string
	Amount    uint64
	Direction Direction
	Claimed   bool
	Payout    uint64
	PlacedAt  time.Time
	ClaimedAt time.Time
}

// NewPosition crea una posición sin reclamar. No toca los pools: eso lo hace
// Market.AcceptPosition dentro de la misma transacción.
func NewPosition(id, owner string, m Market, dir Direction, amount uint64, now time.Time) (Position, error) {
	if !dir.Valid() {
		return Position{}, ErrInvalidDirection
	}
	return Position{
		ID:        id,
		Owner:     owner,
		MarketID:  m.ID,
		Amount:    amount,
		Direction: dir,
		PlacedAt:  now.UTC(),
	}, nil
}

// Settle calcula el pago y marca la posición como reclamada.
// Si devuelve error la posición no cambia.
func (p *Position) Settle(m Market, now time.Time) (uint64, error) {
	payout, err := ComputePayout(m, *p)
	if err != nil {
		return 0, err
	}
	p.Claimed = true
	p.Payout = payout
	p.ClaimedAt = now.UTC()
	return payout, nil
}
