package prices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintalk-ai/chaintalk/internal/cache"
	"github.com/chaintalk-ai/chaintalk/internal/config"
)

func setupService(t *testing.T, handler http.HandlerFunc) (*Service, *miniredis.Miniredis, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	client := NewCoinGeckoClient(config.PricesConfig{BaseURL: srv.URL})
	return NewService(client, cache.New(rdb), 30*time.Second), mr, &calls
}

func quoteHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		id := r.URL.Query().Get("ids")
		json.NewEncoder(w).Encode(map[string]Quote{
			id: {USD: 43250.5, Change24h: 2.31, MarketCap: 847000000000, Volume24h: 21500000000},
		})
	}
}

func TestQuote_CachesFor30Seconds(t *testing.T) {
	svc, mr, calls := setupService(t, quoteHandler(t))
	ctx := context.Background()

	first, err := svc.Quote(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 43250.5, first.USD)
	assert.Equal(t, int64(1), calls.Load())

	second, err := svc.Quote(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, first.USD, second.USD)
	assert.Equal(t, int64(1), calls.Load(), "cached quote must not refetch")

	mr.FastForward(31 * time.Second)
	_, err = svc.Quote(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestAnswer_FormatsQuote(t *testing.T) {
	svc, _, _ := setupService(t, quoteHandler(t))

	reply := svc.Answer(context.Background(), "what is the price of bitcoin")
	assert.Contains(t, reply, "BITCOIN Price Update")
	assert.Contains(t, reply, "Current Price: $43,250.50")
	assert.Contains(t, reply, "24h Change: +2.31%")
	assert.Contains(t, reply, "Market Cap: $847,000,000,000.00")
}

func TestAnswer_DegradesWhenUpstreamDown(t *testing.T) {
	svc, _, _ := setupService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	reply := svc.Answer(context.Background(), "eth price")
	assert.Contains(t, reply, "trouble fetching price information")
}

func TestAnswer_UnknownAssetDegrades(t *testing.T) {
	svc, _, _ := setupService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]Quote{})
	})

	reply := svc.Answer(context.Background(), "price of bitcoin")
	assert.Contains(t, reply, "trouble fetching")
}

func TestFormatQuote_SubDollarPrecision(t *testing.T) {
	out := FormatQuote("dogecoin", &Quote{USD: 0.082345, Change24h: -1.2})
	assert.Contains(t, out, "$0.082345")
	assert.Contains(t, out, "-1.20%")
}

func TestTrending_CachesListing(t *testing.T) {
	svc, _, calls := setupService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/trending", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"coins": []map[string]any{
				{"item": map[string]string{"name": "Solana", "symbol": "sol"}},
				{"item": map[string]string{"name": "Chainlink", "symbol": "link"}},
			},
		})
	})
	ctx := context.Background()

	out, err := svc.Trending(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "1. Solana (SOL)")
	assert.Contains(t, out, "2. Chainlink (LINK)")

	_, err = svc.Trending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}
