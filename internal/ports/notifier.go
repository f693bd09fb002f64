package ports

import (
	"context"

	"github.com/alejandrodnm/pricepool/internal/domain"
)

// Notifier informa de las transiciones de un mercado.
type Notifier interface {
	MarketResolved(ctx context.Context, m domain.Market) error
	PositionSettled(ctx context.Context, m domain.Market, p domain.Position) error
}
