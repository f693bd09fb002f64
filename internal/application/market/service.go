package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
	"github.com/google/uuid"
)

// Config contiene los parámetros fijos del servicio.
type Config struct {
	Admin   string        // identidad que figura como creador de los mercados
	FeeBps  uint64        // comisión aplicada a los mercados nuevos
	LockTTL time.Duration // TTL del lock por mercado
}

// DefaultConfig devuelve la configuración por defecto (fee 2%).
func DefaultConfig() Config {
	return Config{
		Admin:   "admin",
		FeeBps:  domain.DefaultFeeBps,
		LockTTL: 10 * time.Second,
	}
}

// Service expone las operaciones del mercado: crear, apostar, resolver y cobrar.
// Cada operación es una única transacción del Store; si falla no deja nada escrito.
type Service struct {
	cfg      Config
	store    ports.Store
	clock    ports.Clock
	locker   ports.Locker
	verifier ports.PriceVerifier
	notifier ports.Notifier
	newID    func() string
}

// New crea un Service con todas las dependencias inyectadas.
// notifier puede ser nil.
func New(
	cfg Config,
	store ports.Store,
	clock ports.Clock,
	locker ports.Locker,
	verifier ports.PriceVerifier,
	notifier ports.Notifier,
) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultConfig().LockTTL
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		clock:    clock,
		locker:   locker,
		verifier: verifier,
		notifier: notifier,
		newID:    func() string { return uuid.New().String() },
	}
}

// CreateRequest son los datos del mercado que aporta quien lo crea.
type CreateRequest struct {
	Question    string
	AssetSymbol string
	FeedID      string
	Duration    time.Duration
	TargetPrice int64
	StartPrice  int64
	PriceConf   uint64
	PriceExpo   int32
}

// CreateMarket abre un mercado nuevo que acepta posiciones durante req.Duration.
func (s *Service) CreateMarket(ctx context.Context, req CreateRequest) (domain.Market, error) {
	m, err := domain.NewMarket(s.newID(), domain.MarketParams{
		Admin:       s.cfg.Admin,
		Question:    req.Question,
		AssetSymbol: req.AssetSymbol,
		FeedID:      req.FeedID,
		Duration:    req.Duration,
		TargetPrice: req.TargetPrice,
		StartPrice:  req.StartPrice,
		PriceConf:   req.PriceConf,
		PriceExpo:   req.PriceExpo,
		FeeBps:      s.cfg.FeeBps,
	}, s.clock.Now())
	if err != nil {
		return domain.Market{}, fmt.Errorf("market.CreateMarket: %w", err)
	}

	if err := s.store.InTx(ctx, func(tx ports.Tx) error {
		return tx.InsertMarket(ctx, m)
	}); err != nil {
		return domain.Market{}, fmt.Errorf("market.CreateMarket: %w", err)
	}

	slog.Info("market created",
		"market_id", m.ID,
		"asset", m.AssetSymbol,
		"start_price", m.StartPrice,
		"price_conf", m.PriceConf,
		"target_price", m.TargetPrice,
		"end_time", m.EndTime,
	)
	return m, nil
}

// Deposit acredita amount en la cuenta de owner y devuelve el nuevo saldo.
func (s *Service) Deposit(ctx context.Context, owner string, amount uint64) (uint64, error) {
	if err := domain.ValidOwner(owner); err != nil {
		return 0, fmt.Errorf("market.Deposit: %w", err)
	}
	var balance uint64
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		if err := tx.Transfer(ctx, domain.LedgerEntry{
			ID:        s.newID(),
			Kind:      domain.EntryDeposit,
			From:      domain.ExternalAccount,
			To:        owner,
			Amount:    amount,
			CreatedAt: s.clock.Now(),
		}); err != nil {
			return err
		}
		var err error
		balance, err = tx.Balance(ctx, owner)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("market.Deposit: %w", err)
	}
	slog.Debug("deposit", "owner", owner, "amount", amount, "balance", balance)
	return balance, nil
}

// PlacePosition apuesta amount de owner en la dirección dir. El stake pasa de la
// cuenta del owner al vault del mercado en la misma transacción que suma el pool.
func (s *Service) PlacePosition(
	ctx context.Context,
	marketID, owner string,
	dir domain.Direction,
	amount uint64,
) (domain.Position, error) {
	if err := domain.ValidOwner(owner); err != nil {
		return domain.Position{}, fmt.Errorf("market.PlacePosition: %w", err)
	}
	unlock, err := s.locker.Acquire(ctx, lockKey(marketID), s.cfg.LockTTL)
	if err != nil {
		return domain.Position{}, fmt.Errorf("market.PlacePosition: %w", err)
	}
	defer unlock()

	var p domain.Position
	err = s.store.InTx(ctx, func(tx ports.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		p, err = domain.NewPosition(s.newID(), owner, m, dir, amount, now)
		if err != nil {
			return err
		}
		if err := m.AcceptPosition(dir, amount, now); err != nil {
			return err
		}

		if amount > 0 {
			if err := tx.Transfer(ctx, domain.LedgerEntry{
				ID:         s.newID(),
				Kind:       domain.EntryStake,
				From:       owner,
				To:         domain.VaultAccount(m.ID),
				Amount:     amount,
				MarketID:   m.ID,
				PositionID: p.ID,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}
		if err := tx.InsertPosition(ctx, p); err != nil {
			return err
		}
		return tx.UpdateMarket(ctx, m)
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("market.PlacePosition %s: %w", marketID, err)
	}

	slog.Info("position placed",
		"market_id", marketID,
		"position_id", p.ID,
		"owner", owner,
		"direction", dir,
		"amount", amount,
	)
	return p, nil
}

// ResolveMarket fija el resultado del mercado con el precio de obs, que antes
// pasa por el PriceVerifier. Solo la primera resolución tiene efecto; las
// siguientes devuelven domain.ErrMarketAlreadyResolved.
func (s *Service) ResolveMarket(ctx context.Context, marketID string, obs domain.PriceObservation) (domain.Market, error) {
	unlock, err := s.locker.Acquire(ctx, lockKey(marketID), s.cfg.LockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market.ResolveMarket: %w", err)
	}
	defer unlock()

	var m domain.Market
	err = s.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		if m, err = tx.GetMarket(ctx, marketID); err != nil {
			return err
		}
		now := s.clock.Now()
		// los chequeos de estado van antes que el verifier: un precio válido
		// no cambia que el mercado no haya terminado o ya esté resuelto
		if !m.Ended(now) {
			return domain.ErrMarketNotEnded
		}
		if m.Resolved() {
			return domain.ErrMarketAlreadyResolved
		}
		// precio y target se comparan como enteros: tienen que compartir escala
		if obs.Expo != m.PriceExpo {
			return fmt.Errorf("%w: price expo %d, market expo %d", domain.ErrPriceRejected, obs.Expo, m.PriceExpo)
		}
		if err := s.verifier.Verify(ctx, m, obs); err != nil {
			return err
		}
		if _, err := m.Resolve(obs.Price, now); err != nil {
			return err
		}
		return tx.UpdateMarket(ctx, m)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market.ResolveMarket %s: %w", marketID, err)
	}

	slog.Info("market resolved",
		"market_id", m.ID,
		"target_price", m.TargetPrice,
		"end_price", m.EndPrice,
		"outcome", m.Outcome,
		"total_up", m.TotalUp,
		"total_down", m.TotalDown,
	)
	if err := s.notifier.MarketResolved(ctx, m); err != nil {
		slog.Warn("notifier error", "market_id", m.ID, "err", err)
	}
	return m, nil
}

// SettlePosition paga una posición ganadora. El flip claimed=true y la
// transferencia vault → owner ocurren en la misma transacción: o las dos o ninguna.
func (s *Service) SettlePosition(ctx context.Context, positionID string) (domain.Position, error) {
	var (
		p domain.Position
		m domain.Market
	)
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		if p, err = tx.GetPosition(ctx, positionID); err != nil {
			return err
		}
		if m, err = tx.GetMarket(ctx, p.MarketID); err != nil {
			return err
		}

		now := s.clock.Now()
		payout, err := p.Settle(m, now)
		if err != nil {
			return err
		}
		if err := tx.ClaimPosition(ctx, p); err != nil {
			return err
		}
		if payout == 0 {
			return nil
		}
		return tx.Transfer(ctx, domain.LedgerEntry{
			ID:         s.newID(),
			Kind:       domain.EntryPayout,
			From:       domain.VaultAccount(m.ID),
			To:         p.Owner,
			Amount:     payout,
			MarketID:   m.ID,
			PositionID: p.ID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrLostBet) {
			slog.Debug("settle refused: losing position", "position_id", positionID)
		}
		return domain.Position{}, fmt.Errorf("market.SettlePosition %s: %w", positionID, err)
	}

	slog.Info("position settled",
		"market_id", m.ID,
		"position_id", p.ID,
		"owner", p.Owner,
		"payout", p.Payout,
		"fee_bps", m.FeeBps,
	)
	if err := s.notifier.PositionSettled(ctx, m, p); err != nil {
		slog.Warn("notifier error", "position_id", p.ID, "err", err)
	}
	return p, nil
}

// GetMarket devuelve un mercado por ID.
func (s *Service) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return s.store.GetMarket(ctx, id)
}

// ListMarkets devuelve los mercados que cumplen el filtro.
func (s *Service) ListMarkets(ctx context.Context, f ports.MarketFilter) ([]domain.Market, error) {
	return s.store.ListMarkets(ctx, f)
}

// DueMarkets devuelve los mercados sin resolver cuyo deadline ya pasó.
func (s *Service) DueMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	return s.store.ListMarkets(ctx, ports.MarketFilter{
		Unresolved: true,
		EndedBy:    s.clock.Now(),
		Limit:      limit,
	})
}

// ListPositions devuelve las posiciones de un mercado.
func (s *Service) ListPositions(ctx context.Context, marketID string) ([]domain.Position, error) {
	return s.store.ListPositions(ctx, marketID)
}

// Balance devuelve el saldo de una cuenta.
func (s *Service) Balance(ctx context.Context, account string) (uint64, error) {
	return s.store.Balance(ctx, account)
}

func lockKey(marketID string) string {
	return "market:" + marketID
}

type noopNotifier struct{}

func (noopNotifier) MarketResolved(context.Context, domain.Market) error { return nil }

func (noopNotifier) PositionSettled(context.Context, domain.Market, domain.Position) error {
	return nil
}
