package ports

import (
	"context"

	"github.com/alejandrodnm/pricepool/internal/domain"
)

// PriceSource obtiene el último precio publicado para un feed.
type PriceSource interface {
	LatestPrice(ctx context.Context, feedID string) (domain.PriceObservation, error)
}

// PriceVerifier decide si una observación es válida para resolver un mercado.
// Devuelve un error que envuelve domain.ErrPriceRejected si no lo es.
type PriceVerifier interface {
	Verify(ctx context.Context, m domain.Market, obs domain.PriceObservation) error
}
