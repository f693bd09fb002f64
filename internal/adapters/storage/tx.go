package storage

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
	"github.com/google/uuid"
)

// sqliteTx implementa ports.Tx sobre una transacción abierta.
type sqliteTx struct {
	reader
}

var _ ports.Tx = (*sqliteTx)(nil)

// InsertMarket guarda un mercado recién creado.
func (t *sqliteTx) InsertMarket(ctx context.Context, m domain.Market) error {
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO markets
			(id, admin, question, asset_symbol, feed_id, start_price, price_conf,
			 price_expo, target_price, end_price, start_time, end_time, total_up,
			 total_down, fee_bps, outcome, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.Admin, m.Question, m.AssetSymbol, m.FeedID,
		m.StartPrice, formatAmount(m.PriceConf), m.PriceExpo, m.TargetPrice, m.EndPrice,
		m.StartTime.UnixNano(), m.EndTime.UnixNano(),
		formatAmount(m.TotalUp), formatAmount(m.TotalDown),
		int64(m.FeeBps), int(m.Outcome), nullNanos(m.ResolvedAt),
	); err != nil {
		return fmt.Errorf("storage.InsertMarket %s: %w", m.ID, err)
	}
	return nil
}

// UpdateMarket persiste los campos mutables (pools y resultado).
// Un mercado ya resuelto en la base no se vuelve a escribir.
func (t *sqliteTx) UpdateMarket(ctx context.Context, m domain.Market) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE markets
		SET total_up = ?, total_down = ?, end_price = ?, outcome = ?, resolved_at = ?
		WHERE id = ? AND outcome = 0
	`,
		formatAmount(m.TotalUp), formatAmount(m.TotalDown), m.EndPrice,
		int(m.Outcome), nullNanos(m.ResolvedAt), m.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateMarket %s: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.UpdateMarket %s: rows affected: %w", m.ID, err)
	}
	if n == 1 {
		return nil
	}

	// 0 filas: o no existe o ya estaba resuelto
	current, err := t.GetMarket(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("storage.UpdateMarket: %w", err)
	}
	if current.Resolved() {
		return fmt.Errorf("storage.UpdateMarket %s: %w", m.ID, domain.ErrMarketAlreadyResolved)
	}
	return fmt.Errorf("storage.UpdateMarket %s: no rows updated", m.ID)
}

// InsertPosition guarda una posición nueva.
func (t *sqliteTx) InsertPosition(ctx context.Context, p domain.Position) error {
	claimed := 0
	if p.Claimed {
		claimed = 1
	}
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO positions
			(id, market_id, owner, amount, direction, claimed, payout, placed_at, claimed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.MarketID, p.Owner, formatAmount(p.Amount), int(p.Direction),
		claimed, formatAmount(p.Payout), p.PlacedAt.UnixNano(), nullNanos(p.ClaimedAt),
	); err != nil {
		return fmt.Errorf("storage.InsertPosition %s: %w", p.ID, err)
	}
	return nil
}

// ClaimPosition hace el compare-and-set claimed 0 → 1 junto con el payout.
func (t *sqliteTx) ClaimPosition(ctx context.Context, p domain.Position) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE positions
		SET claimed = 1, payout = ?, claimed_at = ?
		WHERE id = ? AND claimed = 0
	`, formatAmount(p.Payout), nullNanos(p.ClaimedAt), p.ID)
	if err != nil {
		return fmt.Errorf("storage.ClaimPosition %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.ClaimPosition %s: rows affected: %w", p.ID, err)
	}
	if n == 1 {
		return nil
	}

	if _, err := t.GetPosition(ctx, p.ID); err != nil {
		return fmt.Errorf("storage.ClaimPosition: %w", err)
	}
	return fmt.Errorf("storage.ClaimPosition %s: %w", p.ID, domain.ErrAlreadyClaimed)
}

// Transfer mueve entry.Amount de entry.From a entry.To y registra el movimiento.
// domain.ExternalAccount no tiene saldo: los depósitos salen de ahí sin débito.
func (t *sqliteTx) Transfer(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.From == entry.To {
		return fmt.Errorf("storage.Transfer: same account %q", entry.From)
	}

	if entry.From != domain.ExternalAccount {
		from, err := t.Balance(ctx, entry.From)
		if err != nil {
			return fmt.Errorf("storage.Transfer: %w", err)
		}
		if from < entry.Amount {
			return fmt.Errorf("storage.Transfer: %s has %d, needs %d: %w",
				entry.From, from, entry.Amount, domain.ErrInsufficientFunds)
		}
		if err := t.setBalance(ctx, entry.From, from-entry.Amount); err != nil {
			return err
		}
	}

	to, err := t.Balance(ctx, entry.To)
	if err != nil {
		return fmt.Errorf("storage.Transfer: %w", err)
	}
	sum, carry := bits.Add64(to, entry.Amount, 0)
	if carry != 0 {
		return fmt.Errorf("storage.Transfer: balance of %s overflows: %w", entry.To, domain.ErrMath)
	}
	if err := t.setBalance(ctx, entry.To, sum); err != nil {
		return err
	}

	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO ledger (id, kind, from_account, to_account, amount, market_id, position_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, string(entry.Kind), entry.From, entry.To, formatAmount(entry.Amount),
		entry.MarketID, entry.PositionID, entry.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("storage.Transfer: insert ledger entry: %w", err)
	}
	return nil
}

func (t *sqliteTx) setBalance(ctx context.Context, account string, amount uint64) error {
	if account == "" {
		return errors.New("storage.Transfer: empty account")
	}
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO balances (account, amount) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET amount = excluded.amount
	`, account, formatAmount(amount)); err != nil {
		return fmt.Errorf("storage.Transfer: set balance %s: %w", account, err)
	}
	return nil
}
