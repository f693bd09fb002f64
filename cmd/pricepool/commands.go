package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/alejandrodnm/pricepool/internal/application/market"
	"github.com/alejandrodnm/pricepool/internal/application/resolver"
	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func required(name, v string) error {
	if v == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

// runCreate abre un mercado. Con --feed el exponente sale siempre del feed y,
// sin --start, también el precio de inicio.
func runCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("create")
	question := fs.String("question", "", "market question")
	asset := fs.String("asset", "", "asset symbol, e.g. SOL")
	feed := fs.String("feed", "", "Pyth price feed ID (32-byte hex)")
	duration := fs.Duration("duration", time.Hour, "time until the market closes")
	target := fs.String("target", "", "target price, e.g. 160.5")
	start := fs.String("start", "", "start price (default: latest Pyth price)")
	expo := fs.Int("expo", -8, "price exponent for markets without --feed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("target", *target); err != nil {
		return err
	}

	req := market.CreateRequest{
		Question:    *question,
		AssetSymbol: *asset,
		FeedID:      *feed,
		Duration:    *duration,
		PriceExpo:   int32(*expo),
	}

	if *start == "" && *feed == "" {
		return errors.New("--start or --feed is required")
	}
	if *feed != "" {
		obs, err := a.prices.LatestPrice(ctx, *feed)
		if err != nil {
			return err
		}
		req.StartPrice, req.PriceConf, req.PriceExpo = obs.Price, obs.Conf, obs.Expo
	}
	if *start != "" {
		p, err := parsePrice(*start, req.PriceExpo)
		if err != nil {
			return err
		}
		req.StartPrice = p
	}

	t, err := parsePrice(*target, req.PriceExpo)
	if err != nil {
		return err
	}
	req.TargetPrice = t

	m, err := a.svc.CreateMarket(ctx, req)
	if err != nil {
		return err
	}
	a.console.PrintMarket(m, nil)
	return nil
}

func runFund(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("fund")
	owner := fs.String("owner", "", "account to credit")
	amount := fs.String("amount", "", "amount to credit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("owner", *owner); err != nil {
		return err
	}
	v, err := parseAmount(*amount, a.cfg.Market.AmountDecimals)
	if err != nil {
		return err
	}
	bal, err := a.svc.Deposit(ctx, *owner, v)
	if err != nil {
		return err
	}
	a.console.PrintBalance(*owner, bal)
	return nil
}

func runBet(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("bet")
	marketID := fs.String("market", "", "market ID")
	owner := fs.String("owner", "", "account placing the position")
	side := fs.String("side", "", "up | down")
	amount := fs.String("amount", "", "stake")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, f := range []struct{ name, v string }{{"market", *marketID}, {"owner", *owner}} {
		if err := required(f.name, f.v); err != nil {
			return err
		}
	}
	dir, err := domain.ParseDirection(*side)
	if err != nil {
		return err
	}
	v, err := parseAmount(*amount, a.cfg.Market.AmountDecimals)
	if err != nil {
		return err
	}

	p, err := a.svc.PlacePosition(ctx, *marketID, *owner, dir, v)
	if err != nil {
		return err
	}
	fmt.Printf("position %s: %s %s on %s\n", p.ID, p.Direction, *amount, p.MarketID)
	return nil
}

// runResolve resuelve con el precio dado por flags o, si no hay --price, con
// el último precio de Pyth para el feed del mercado.
func runResolve(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("resolve")
	marketID := fs.String("market", "", "market ID")
	price := fs.String("price", "", "end price (default: latest Pyth price)")
	expo := fs.Int("expo", 0, "price exponent (default: the market's)")
	conf := fs.Uint64("conf", 0, "price confidence interval")
	publish := fs.Int64("publish-time", 0, "price publish time, unix seconds (default: now)")
	sig := fs.String("signature", "", "0x-prefixed 65-byte signature over the price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("market", *marketID); err != nil {
		return err
	}

	m, err := a.svc.GetMarket(ctx, *marketID)
	if err != nil {
		return err
	}

	var obs domain.PriceObservation
	if *price == "" {
		if obs, err = a.prices.LatestPrice(ctx, m.FeedID); err != nil {
			return err
		}
	} else {
		e := m.PriceExpo
		if *expo != 0 {
			e = int32(*expo)
		}
		if e != m.PriceExpo {
			return fmt.Errorf("expo %d differs from market expo %d", e, m.PriceExpo)
		}
		p, err := parsePrice(*price, e)
		if err != nil {
			return err
		}
		obs = domain.PriceObservation{FeedID: m.FeedID, Price: p, Conf: *conf, Expo: e, PublishTime: time.Now().UTC()}
		if *publish > 0 {
			obs.PublishTime = time.Unix(*publish, 0).UTC()
		}
	}
	if *sig != "" {
		if obs.Signature, err = hexutil.Decode(*sig); err != nil {
			return fmt.Errorf("signature: %w", err)
		}
	}

	_, err = a.svc.ResolveMarket(ctx, *marketID, obs)
	return err
}

func runClaim(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("claim")
	positionID := fs.String("position", "", "position ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("position", *positionID); err != nil {
		return err
	}
	_, err := a.svc.SettlePosition(ctx, *positionID)
	return err
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("list")
	open := fs.Bool("open", false, "only unresolved markets")
	due := fs.Bool("due", false, "only expired, unresolved markets")
	limit := fs.Int("limit", 50, "max markets")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		markets []domain.Market
		err     error
	)
	if *due {
		markets, err = a.svc.DueMarkets(ctx, *limit)
	} else {
		markets, err = a.svc.ListMarkets(ctx, ports.MarketFilter{Unresolved: *open, Limit: *limit})
	}
	if err != nil {
		return err
	}
	a.console.PrintMarkets(markets)
	return nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("show")
	marketID := fs.String("market", "", "market ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("market", *marketID); err != nil {
		return err
	}
	m, err := a.svc.GetMarket(ctx, *marketID)
	if err != nil {
		return err
	}
	positions, err := a.svc.ListPositions(ctx, m.ID)
	if err != nil {
		return err
	}
	a.console.PrintMarket(m, positions)
	return nil
}

func runBalance(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("balance")
	account := fs.String("account", "", "owner account, or vault:<marketID>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("account", *account); err != nil {
		return err
	}
	bal, err := a.svc.Balance(ctx, *account)
	if err != nil {
		return err
	}
	a.console.PrintBalance(*account, bal)
	return nil
}

func runResolver(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("resolver")
	once := fs.Bool("once", false, "run one resolve cycle and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r := resolver.New(resolver.Config{
		Interval:  a.cfg.ResolveInterval(),
		Workers:   a.cfg.Resolver.Workers,
		BatchSize: a.cfg.Resolver.BatchSize,
		Once:      *once,
	}, a.svc, a.prices)
	return r.Run(ctx)
}
