package domain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ComputePayout calcula lo que cobra una posición ganadora:
//
//	total        = TotalUp + TotalDown
//	afterFee     = total × (10000 − fee) / 10000
//	payout       = amount × afterFee / winnerPool
//
// Todas las divisiones son enteras (floor) y se multiplica antes de dividir.
// Los intermedios se calculan en 256 bits: el mayor producto posible
// (2^64 × 2^65) cabe sin desbordar. El polvo del redondeo queda en el vault.
func ComputePayout(m Market, p Position) (uint64, error) {
	if p.MarketID != m.ID {
		return 0, ErrWrongMarket
	}
	winner, ok := m.Outcome.Winner()
	if !ok {
		return 0, ErrMarketNotResolved
	}
	if p.Claimed {
		return 0, ErrAlreadyClaimed
	}
	if p.Direction != winner {
		return 0, ErrLostBet
	}

	winnerPool := m.Pool(winner)
	if winnerPool == 0 {
		return 0, fmt.Errorf("%w: empty winning pool", ErrMath)
	}

	afterFee := PoolAfterFee(m.TotalUp, m.TotalDown, m.FeeBps)
	payout := new(uint256.Int).Mul(uint256.NewInt(p.Amount), afterFee)
	payout.Div(payout, uint256.NewInt(winnerPool))

	if !payout.IsUint64() {
		return 0, fmt.Errorf("%w: payout exceeds uint64", ErrMath)
	}
	return payout.Uint64(), nil
}

// PoolAfterFee devuelve (up + down) × (10000 − feeBps) / 10000 en 256 bits.
func PoolAfterFee(up, down, feeBps uint64) *uint256.Int {
	total := new(uint256.Int).Add(uint256.NewInt(up), uint256.NewInt(down))
	keep := uint256.NewInt(BasisPoints - feeBps)
	total.Mul(total, keep)
	return total.Div(total, uint256.NewInt(BasisPoints))
}

// ProjectedPayout estima cuánto cobraría amount en la dirección d si el mercado
// se resolviera ahora a su favor, contando amount como ya apostado.
// Sirve para mostrar cuotas; no valida el estado del mercado.
func ProjectedPayout(m Market, d Direction, amount uint64) (uint64, error) {
	if err := m.AcceptPosition(d, amount, m.StartTime); err != nil {
		return 0, err
	}
	m.Outcome = OutcomeFor(d)
	return ComputePayout(m, Position{MarketID: m.ID, Amount: amount, Direction: d})
}
