// Package prices serves cryptocurrency market data from the CoinGecko API
// with a short-lived Redis cache in front of it.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chaintalk-ai/chaintalk/internal/config"
)

// Quote is a point-in-time market snapshot for one asset.
type Quote struct {
	USD       float64 `json:"usd"`
	Change24h float64 `json:"usd_24h_change"`
	MarketCap float64 `json:"usd_market_cap"`
	Volume24h float64 `json:"usd_24h_vol"`
}

// TrendingCoin is one entry of the trending listing.
type TrendingCoin struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Client is a thin CoinGecko API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewCoinGeckoClient builds a market data client from configuration.
func NewCoinGeckoClient(cfg config.PricesConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Price fetches the current quote for one asset id.
func (c *Client) Price(ctx context.Context, assetID string) (*Quote, error) {
	params := url.Values{
		"ids":                 {assetID},
		"vs_currencies":       {"usd"},
		"include_24hr_change": {"true"},
		"include_market_cap":  {"true"},
		"include_24hr_vol":    {"true"},
	}

	var result map[string]Quote
	if err := c.get(ctx, "/simple/price", params, &result); err != nil {
		return nil, err
	}
	quote, ok := result[assetID]
	if !ok {
		return nil, ErrUnknownAsset
	}
	return &quote, nil
}

// ErrUnknownAsset marks a quote request for an asset the API does not know.
var ErrUnknownAsset = fmt.Errorf("prices: unknown asset")

// Trending fetches the currently trending coins.
func (c *Client) Trending(ctx context.Context) ([]TrendingCoin, error) {
	var result struct {
		Coins []struct {
			Item TrendingCoin `json:"item"`
		} `json:"coins"`
	}
	if err := c.get(ctx, "/search/trending", nil, &result); err != nil {
		return nil, err
	}
	coins := make([]TrendingCoin, 0, len(result.Coins))
	for _, c := range result.Coins {
		coins = append(coins, c.Item)
	}
	return coins, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("prices request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prices: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
