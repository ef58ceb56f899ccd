package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinsentinel/internal/logger"
)

type Quote struct {
	Price     float64
	Change24h float64
}

// CoinGecko quotes coins by CoinGecko id (e.g. "bitcoin") in one batched
// request.
type CoinGecko struct {
	client   *http.Client
	baseURL  string
	currency string
	log      *logger.Logger
}

func NewCoinGecko(baseURL, currency string, timeout time.Duration, log *logger.Logger) *CoinGecko {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com"
	}
	if currency == "" {
		currency = "usd"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CoinGecko{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: strings.ToLower(currency),
		log:      log,
	}
}

// Quote never fails: on any error it logs and returns whatever it has,
// usually an empty map. Coins without data are absent.
func (c *CoinGecko) Quote(ctx context.Context, coins []string) map[string]Quote {
	out := make(map[string]Quote, len(coins))
	if len(coins) == 0 {
		return out
	}

	raw, err := c.fetch(ctx, coins)
	if err != nil {
		c.log.Warn("⚠️ price lookup failed", logger.Strings("coins", coins), logger.Error(err))
		return out
	}

	changeKey := c.currency + "_24h_change"
	for _, coin := range coins {
		fields, ok := raw[coin]
		if !ok {
			continue
		}
		price, ok := fields[c.currency]
		if !ok {
			continue
		}
		out[coin] = Quote{Price: price, Change24h: fields[changeKey]}
	}
	return out
}

func (c *CoinGecko) fetch(ctx context.Context, coins []string) (map[string]map[string]float64, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(coins, ","))
	query.Set("vs_currencies", c.currency)
	query.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/simple/price?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var raw map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return raw, nil
}
