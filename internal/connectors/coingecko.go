package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"coinsage/internal/models"
)

// stablecoinSlugs lists assets excluded from the tradable universe:
// stable-value coins and wrapped/staked trackers that move with an
// underlying asset rather than trading on their own.
var stablecoinSlugs = map[string]bool{
	"usdt": true, "usdc": true, "dai": true, "busd": true, "tusd": true,
	"staked-ether": true, "wrapped-bitcoin": true, "wrapped-steth": true,
	"usds": true, "wrapped-eeth": true, "weth": true,
	"binance-bridged-usdt-bnb-smart-chain": true, "ethena-usde": true,
	"ethena-staked-usde": true, "susds": true, "usd1-wlfi": true,
	"blackrock-usd-institutional-digital-liquidity-fund": true,
	"jito-staked-sol": true, "lombard-staked-btc": true,
	"binance-peg-weth": true,
}

// CoinGeckoClient lists the tradable symbol universe from the
// CoinGecko markets API.
type CoinGeckoClient struct {
	client  *resty.Client
	apiKey  string
	policy  Policy
	limiter *rate.Limiter
}

// NewCoinGeckoClient creates a CoinGecko client. apiKey may be empty
// for the anonymous demo tier.
func NewCoinGeckoClient(baseURL, apiKey string) *CoinGeckoClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(10 * time.Second)

	return &CoinGeckoClient{
		client: client,
		apiKey: apiKey,
		policy: DefaultPolicy(),
		// Demo tier allows ~30 calls/min; one call every 2s stays under it.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

type marketListing struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// TopSymbols returns the top market-cap assets, stablecoins and ETF
// trackers excluded. The filter is a pure function of the fetched
// list, so the same upstream response always yields the same universe.
func (c *CoinGeckoClient) TopSymbols(ctx context.Context, limit int) ([]models.Symbol, error) {
	var listings []marketListing

	err := c.policy.Do(ctx, "coingecko.top_symbols", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"vs_currency": "usd",
				"order":       "market_cap_desc",
				"per_page":    fmt.Sprintf("%d", limit),
				"page":        "1",
				"sparkline":   "false",
			})
		if c.apiKey != "" {
			req.SetHeader("x-cg-demo-api-key", c.apiKey)
		}

		resp, err := req.Get("/coins/markets")
		if err != nil {
			return fmt.Errorf("coingecko request failed: %w", err)
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("coingecko API error %d: %s", resp.StatusCode(), resp.String())
		}

		// A payload that doesn't parse is a fetch failure, never a
		// silently empty universe.
		listings = listings[:0]
		if err := json.Unmarshal(resp.Body(), &listings); err != nil {
			return fmt.Errorf("coingecko response parse failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return filterTradable(listings), nil
}

// filterTradable drops stablecoins and ETF-tracking assets from the
// fetched universe. Deterministic: output order follows input order.
func filterTradable(listings []marketListing) []models.Symbol {
	symbols := make([]models.Symbol, 0, len(listings))
	for _, coin := range listings {
		if stablecoinSlugs[strings.ToLower(coin.Symbol)] || stablecoinSlugs[strings.ToLower(coin.ID)] {
			continue
		}
		if strings.Contains(strings.ToLower(coin.Name), "etf") {
			continue
		}
		symbols = append(symbols, models.Symbol{
			Ticker: strings.ToUpper(coin.Symbol),
			Slug:   coin.ID,
		})
	}
	return symbols
}
