package pyth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/pricepool/internal/adapters/pyth"
	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const btcFeed = "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"

const hermesBody = `{
  "binary": {"encoding": "hex", "data": ["504e4155"]},
  "parsed": [{
    "id": "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
    "price": {"price": "9512345000000", "conf": "4123456789", "expo": -8, "publish_time": 1772370000},
    "ema_price": {"price": "9500000000000", "conf": "4000000000", "expo": -8, "publish_time": 1772370000},
    "metadata": {"slot": 1, "proof_available_time": 1772370001, "prev_publish_time": 1772369999}
  }]
}`

func TestLatestPrice_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		assert.Equal(t, []string{btcFeed}, r.URL.Query()["ids[]"])
		assert.Equal(t, "true", r.URL.Query().Get("parsed"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(hermesBody))
	}))
	defer srv.Close()

	obs, err := pyth.NewClient(srv.URL).LatestPrice(context.Background(), btcFeed)
	require.NoError(t, err)

	assert.Equal(t, btcFeed, obs.FeedID)
	assert.Equal(t, int64(9_512_345_000_000), obs.Price)
	assert.Equal(t, uint64(4_123_456_789), obs.Conf)
	assert.Equal(t, int32(-8), obs.Expo)
	assert.Equal(t, time.Unix(1772370000, 0).UTC(), obs.PublishTime)
	assert.Equal(t, "95123.45", obs.Decimal().String())
}

func TestLatestPrice_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(hermesBody))
	}))
	defer srv.Close()

	obs, err := pyth.NewClient(srv.URL).LatestPrice(context.Background(), btcFeed)
	require.NoError(t, err)
	assert.Equal(t, int64(9_512_345_000_000), obs.Price)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLatestPrice_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"price id not found"}`))
	}))
	defer srv.Close()

	_, err := pyth.NewClient(srv.URL).LatestPrice(context.Background(), btcFeed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestLatestPrice_FeedMissingFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"parsed": []}`))
	}))
	defer srv.Close()

	_, err := pyth.NewClient(srv.URL).LatestPrice(context.Background(), btcFeed)
	assert.Error(t, err)
}

func TestLatestPrice_InvalidFeedID(t *testing.T) {
	_, err := pyth.NewClient("http://127.0.0.1:1").LatestPrice(context.Background(), "0xdead")
	assert.ErrorIs(t, err, domain.ErrInvalidFeedID)

	_, err = pyth.NewClient("http://127.0.0.1:1").LatestPrice(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidFeedID)
}
