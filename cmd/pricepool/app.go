package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/pricepool/config"
	"github.com/alejandrodnm/pricepool/internal/adapters/clock"
	"github.com/alejandrodnm/pricepool/internal/adapters/lock"
	"github.com/alejandrodnm/pricepool/internal/adapters/notify"
	"github.com/alejandrodnm/pricepool/internal/adapters/oracle"
	"github.com/alejandrodnm/pricepool/internal/adapters/pyth"
	"github.com/alejandrodnm/pricepool/internal/adapters/storage"
	"github.com/alejandrodnm/pricepool/internal/application/market"
	"github.com/alejandrodnm/pricepool/internal/ports"
)

// app agrupa las dependencias que comparten los subcomandos.
type app struct {
	cfg     *config.Config
	svc     *market.Service
	prices  *pyth.Client
	console *notify.Console
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		prices:  pyth.NewClient(cfg.Oracle.HermesURL),
		console: notify.NewConsole(cfg.Market.AmountDecimals),
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}
	a.closers = append(a.closers, store.Close)

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.svc = market.New(market.Config{
		Admin:   cfg.Market.Admin,
		FeeBps:  cfg.FeeBps(),
		LockTTL: cfg.LockTTL(),
	}, store, clock.System{}, locker, verifier, a.console)

	slog.Debug("pricepool ready",
		"dsn", cfg.Storage.DSN,
		"lock", cfg.Lock.Backend,
		"verifier", cfg.Oracle.Verifier,
		"fee_bps", cfg.FeeBps(),
	)
	return a, nil
}

func (a *app) newLocker(ctx context.Context) (ports.Locker, error) {
	if a.cfg.Lock.Backend != "redis" {
		return lock.NewLocal(), nil
	}
	r, err := lock.NewRedis(ctx, lock.RedisConfig{
		Addr:       a.cfg.Lock.Redis.Addr,
		Password:   a.cfg.Lock.Redis.Password,
		DB:         a.cfg.Lock.Redis.DB,
		TLSEnabled: a.cfg.Lock.Redis.TLS,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, r.Close)
	return r, nil
}

func newVerifier(cfg *config.Config) (ports.PriceVerifier, error) {
	if cfg.Oracle.Verifier != "signed" {
		return oracle.Trusted{}, nil
	}
	v, err := oracle.NewSigned(cfg.Oracle.Signers, cfg.MaxPriceAge())
	if err != nil {
		return nil, fmt.Errorf("signed verifier: %w", err)
	}
	return v, nil
}

// Close libera las conexiones en orden inverso.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}
