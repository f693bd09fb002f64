// Package pyth obtiene precios de la API Hermes de Pyth Network.
package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/alejandrodnm/pricepool/internal/ports"
	"golang.org/x/time/rate"
)

const (
	defaultHermesBase = "https://hermes.pyth.network"
	latestPricePath   = "/v2/updates/price/latest"

	// Hermes permite 30 req/10s por IP; nos quedamos en el 60%.
	hermesRatePerSec = 1.8

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client de Hermes con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

var _ ports.PriceSource = (*Client)(nil)

// NewClient crea un Client. Si base está vacío usa el endpoint público.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultHermesBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    strings.TrimRight(base, "/"),
		limiter: rate.NewLimiter(hermesRatePerSec, 3),
	}
}

// LatestPrice devuelve el último precio publicado para feedID.
func (c *Client) LatestPrice(ctx context.Context, feedID string) (domain.PriceObservation, error) {
	feedID, err := domain.NormalizeFeedID(feedID)
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("pyth.LatestPrice: %w", err)
	}
	if feedID == "" {
		return domain.PriceObservation{}, fmt.Errorf("pyth.LatestPrice: %w: empty feed id", domain.ErrInvalidFeedID)
	}

	q := url.Values{}
	q.Add("ids[]", feedID)
	q.Set("parsed", "true")

	var resp latestPriceResponse
	if err := c.get(ctx, c.base+latestPricePath+"?"+q.Encode(), &resp); err != nil {
		return domain.PriceObservation{}, fmt.Errorf("pyth.LatestPrice %s: %w", feedID, err)
	}

	for _, u := range resp.Parsed {
		if !strings.EqualFold("0x"+strings.TrimPrefix(u.ID, "0x"), feedID) {
			continue
		}
		obs, err := u.toDomain(feedID)
		if err != nil {
			return domain.PriceObservation{}, fmt.Errorf("pyth.LatestPrice %s: %w", feedID, err)
		}
		slog.Debug("hermes price",
			"feed_id", feedID,
			"price", obs.Decimal().String(),
			"conf", obs.Conf,
			"publish_time", obs.PublishTime,
		)
		return obs, nil
	}
	return domain.PriceObservation{}, fmt.Errorf("pyth.LatestPrice %s: no parsed price in response", feedID)
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial y jitter.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by hermes", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera baseRetryWait·2^attempt más hasta un 50% de jitter, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := backoff(attempt)
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func backoff(attempt int) time.Duration {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	return wait + rand.N(wait/2+1)
}

// --- tipos de la API ---

type latestPriceResponse struct {
	Parsed []parsedUpdate `json:"parsed"`
}

type parsedUpdate struct {
	ID    string    `json:"id"`
	Price pythPrice `json:"price"`
}

// pythPrice llega con price y conf como strings para no perder precisión.
type pythPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

func (u parsedUpdate) toDomain(feedID string) (domain.PriceObservation, error) {
	price, err := strconv.ParseInt(u.Price.Price, 10, 64)
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("parse price %q: %w", u.Price.Price, err)
	}
	conf, err := strconv.ParseUint(u.Price.Conf, 10, 64)
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("parse conf %q: %w", u.Price.Conf, err)
	}
	return domain.PriceObservation{
		FeedID:      feedID,
		Price:       price,
		Conf:        conf,
		Expo:        u.Price.Expo,
		PublishTime: time.Unix(u.Price.PublishTime, 0).UTC(),
	}, nil
}
