package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"coinsage/internal/models"
)

// BinanceClient fetches OHLC candle series used as the raw technical
// indicator payload for one symbol.
type BinanceClient struct {
	client   *resty.Client
	policy   Policy
	limiter  *rate.Limiter
	interval string
	limit    int
}

// NewBinanceClient creates a Binance klines client. The public klines
// endpoint needs no authentication.
func NewBinanceClient(baseURL string) *BinanceClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(10 * time.Second)

	return &BinanceClient{
		client:   client,
		policy:   DefaultPolicy(),
		limiter:  rate.NewLimiter(rate.Limit(5), 1),
		interval: "5m",
		limit:    100,
	}
}

// Klines fetches the recent candle series for ticker (quoted against
// USDT). The payload is returned opaque; only its JSON shape is
// validated so a garbled response surfaces as a fetch failure.
func (c *BinanceClient) Klines(ctx context.Context, ticker string) (models.IndicatorSnapshot, error) {
	var snapshot models.IndicatorSnapshot

	err := c.policy.Do(ctx, "binance.klines", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":   ticker + "USDT",
				"interval": c.interval,
				"limit":    fmt.Sprintf("%d", c.limit),
			}).
			Get("/klines")
		if err != nil {
			return fmt.Errorf("binance request for %s failed: %w", ticker, err)
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("binance API error %d for %s: %s", resp.StatusCode(), ticker, resp.String())
		}

		var rows []json.RawMessage
		if err := json.Unmarshal(resp.Body(), &rows); err != nil {
			return fmt.Errorf("binance response parse failed for %s: %w", ticker, err)
		}

		snapshot = models.IndicatorSnapshot(resp.Body())
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}
