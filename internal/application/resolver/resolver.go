package resolver

// resolver.go — bot que resuelve los mercados vencidos.
//
// En cada ciclo lista los mercados sin resolver cuyo deadline ya pasó, pide el
// último precio de su feed y llama a ResolveMarket. Los mercados se procesan en
// paralelo (son independientes entre sí) con un límite de workers. Un fallo en
// un mercado no para el ciclo: el mercado sigue abierto y se reintenta en el
// siguiente.

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
	"golang.org/x/sync/errgroup"
)

// MarketService es lo que el resolver necesita del servicio de mercados.
type MarketService interface {
	DueMarkets(ctx context.Context, limit int) ([]domain.Market, error)
	ResolveMarket(ctx context.Context, marketID string, obs domain.PriceObservation) (domain.Market, error)
}

// Config controla el loop del resolver.
type Config struct {
	Interval  time.Duration
	Workers   int // 0 = NumCPU
	BatchSize int // máximo de mercados por ciclo (0 = sin límite)
	Once      bool
}

// Result resume un ciclo.
type Result struct {
	Due      int
	Resolved int
	Skipped  int
	Failed   int
}

// Resolver orquesta el loop de resolución.
type Resolver struct {
	cfg     Config
	markets MarketService
	prices  ports.PriceSource
}

// New crea un Resolver.
func New(cfg Config, markets MarketService, prices ports.PriceSource) *Resolver {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Resolver{cfg: cfg, markets: markets, prices: prices}
}

// Run ejecuta ciclos hasta que el contexto se cancele. Con cfg.Once ejecuta uno solo.
func (r *Resolver) Run(ctx context.Context) error {
	slog.Info("resolver starting",
		"interval", r.cfg.Interval,
		"workers", r.cfg.Workers,
		"once", r.cfg.Once,
	)

	if _, err := r.RunOnce(ctx); err != nil {
		slog.Error("resolve cycle failed", "err", err)
		if r.cfg.Once {
			return err
		}
	}
	if r.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("resolver stopping")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				slog.Error("resolve cycle failed", "err", err)
			}
		}
	}
}

// RunOnce resuelve los mercados vencidos en este momento.
func (r *Resolver) RunOnce(ctx context.Context) (Result, error) {
	due, err := r.markets.DueMarkets(ctx, r.cfg.BatchSize)
	if err != nil {
		return Result{}, err
	}
	if len(due) == 0 {
		slog.Debug("no expired markets")
		return Result{}, nil
	}

	var resolved, skipped, failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, m := range due {
		g.Go(func() error {
			switch err := r.resolveOne(gctx, m); {
			case err == nil:
				resolved.Add(1)
			case errors.Is(err, domain.ErrMarketAlreadyResolved), errors.Is(err, errNoFeed):
				skipped.Add(1)
			default:
				failed.Add(1)
				slog.Warn("resolve failed", "market_id", m.ID, "asset", m.AssetSymbol, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Due:      len(due),
		Resolved: int(resolved.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
	slog.Info("resolve cycle complete",
		"due", res.Due,
		"resolved", res.Resolved,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

var errNoFeed = errors.New("market has no price feed")

func (r *Resolver) resolveOne(ctx context.Context, m domain.Market) error {
	if m.FeedID == "" {
		slog.Debug("skipping market without feed", "market_id", m.ID)
		return errNoFeed
	}

	obs, err := r.prices.LatestPrice(ctx, m.FeedID)
	if err != nil {
		return err
	}
	_, err = r.markets.ResolveMarket(ctx, m.ID, obs)
	return err
}
