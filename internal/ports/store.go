package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
)

// MarketFilter restringe ListMarkets.
type MarketFilter struct {
	// Unresolved deja solo mercados sin resultado.
	Unresolved bool
	// EndedBy, si no es cero, deja solo mercados con EndTime <= EndedBy.
	EndedBy time.Time
	Limit   int
}

// Reader expone las lecturas comunes a Store y Tx.
type Reader interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetPosition(ctx context.Context, id string) (domain.Position, error)
	ListPositions(ctx context.Context, marketID string) ([]domain.Position, error)
	Balance(ctx context.Context, account string) (uint64, error)
}

// Custodian mueve valor entre cuentas. Cada transferencia queda registrada
// como domain.LedgerEntry. Debitar más que el saldo devuelve domain.ErrInsufficientFunds
// (salvo desde domain.ExternalAccount, que no tiene saldo).
type Custodian interface {
	Transfer(ctx context.Context, entry domain.LedgerEntry) error
}

// Tx es una unidad atómica: o se aplican todas sus escrituras o ninguna.
type Tx interface {
	Reader
	Custodian

	InsertMarket(ctx context.Context, m domain.Market) error
	// UpdateMarket persiste pools y resultado. Devuelve domain.ErrNotFound si no existe.
	UpdateMarket(ctx context.Context, m domain.Market) error
	InsertPosition(ctx context.Context, p domain.Position) error
	// ClaimPosition marca la posición como cobrada solo si aún no lo estaba
	// (compare-and-set). Devuelve domain.ErrAlreadyClaimed si otro la cobró antes.
	ClaimPosition(ctx context.Context, p domain.Position) error
}

// Store persiste mercados, posiciones y el ledger del custodio.
type Store interface {
	Reader

	ListMarkets(ctx context.Context, f MarketFilter) ([]domain.Market, error)
	LedgerEntries(ctx context.Context, account string) ([]domain.LedgerEntry, error)

	// InTx ejecuta fn en una transacción serializable. Si fn devuelve error
	// se hace rollback y el error se propaga sin envolver.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}
