package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chaintalk-ai/chaintalk/internal/cache"
	"github.com/chaintalk-ai/chaintalk/internal/intent"
)

const trendingCacheKey = "prices:trending"

// Service answers price questions, caching quotes briefly so bursts of
// identical queries do not hammer the upstream API.
type Service struct {
	client      *Client
	cache       *cache.Manager
	quoteTTL    time.Duration
	trendingTTL time.Duration
}

// NewService wires the market data client to the shared cache.
func NewService(client *Client, cacheManager *cache.Manager, quoteTTL time.Duration) *Service {
	if quoteTTL <= 0 {
		quoteTTL = 30 * time.Second
	}
	return &Service{
		client:      client,
		cache:       cacheManager,
		quoteTTL:    quoteTTL,
		trendingTTL: 5 * time.Minute,
	}
}

// Quote returns the current quote for an asset id, from cache when fresh.
func (s *Service) Quote(ctx context.Context, assetID string) (*Quote, error) {
	key := "prices:quote:" + assetID
	if raw, ok := s.cache.Get(ctx, key); ok {
		var quote Quote
		if err := json.Unmarshal([]byte(raw), &quote); err == nil {
			return &quote, nil
		}
	}

	quote, err := s.client.Price(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(quote); err == nil {
		s.cache.Set(ctx, key, string(data), s.quoteTTL)
	}
	return quote, nil
}

// Answer resolves a price question to a chat-ready reply. It never returns
// an error: upstream failures degrade to an apology the assistant can send.
func (s *Service) Answer(ctx context.Context, message string) string {
	assetID := intent.ExtractAsset(message)

	quote, err := s.Quote(ctx, assetID)
	if err != nil {
		slog.Warn("prices: quote lookup failed", "asset", assetID, "error", err)
		return "I'm having trouble fetching price information right now. " +
			"Please try again, or ask about a specific cryptocurrency like Bitcoin or Ethereum."
	}
	return FormatQuote(assetID, quote)
}

// FormatQuote renders a quote as a chat reply.
func FormatQuote(assetID string, q *Quote) string {
	name := strings.ToUpper(strings.ReplaceAll(assetID, "-", " "))

	var price string
	if q.USD >= 1 {
		price = fmt.Sprintf("$%s", formatThousands(q.USD))
	} else {
		price = fmt.Sprintf("$%.6f", q.USD)
	}

	var change string
	switch {
	case q.Change24h > 0:
		change = fmt.Sprintf("+%.2f%% \U0001F4C8", q.Change24h)
	case q.Change24h < 0:
		change = fmt.Sprintf("%.2f%% \U0001F4C9", q.Change24h)
	default:
		change = "0.00%"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\U0001F4B0 %s Price Update\n\n", name)
	fmt.Fprintf(&b, "Current Price: %s\n", price)
	fmt.Fprintf(&b, "24h Change: %s\n", change)
	if q.MarketCap > 0 {
		fmt.Fprintf(&b, "Market Cap: $%s\n", formatThousands(q.MarketCap))
	}
	if q.Volume24h > 0 {
		fmt.Fprintf(&b, "24h Volume: $%s\n", formatThousands(q.Volume24h))
	}
	return b.String()
}

// Trending returns a chat-ready listing of trending coins.
func (s *Service) Trending(ctx context.Context) (string, error) {
	if cached, ok := s.cache.Get(ctx, trendingCacheKey); ok {
		return cached, nil
	}

	coins, err := s.client.Trending(ctx)
	if err != nil {
		return "", err
	}
	if len(coins) > 5 {
		coins = coins[:5]
	}

	var b strings.Builder
	b.WriteString("\U0001F525 Trending Cryptocurrencies:\n\n")
	for i, coin := range coins {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, coin.Name, strings.ToUpper(coin.Symbol))
	}

	out := b.String()
	s.cache.Set(ctx, trendingCacheKey, out, s.trendingTTL)
	return out, nil
}

// formatThousands renders a value like 43250.12 as "43,250.12". Fractions
// are kept at two places; sub-dollar precision is handled by the caller.
func formatThousands(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	whole, frac, _ := strings.Cut(s, ".")

	var neg bool
	if strings.HasPrefix(whole, "-") {
		neg = true
		whole = whole[1:]
	}

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
