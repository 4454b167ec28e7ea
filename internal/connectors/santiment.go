package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"coinsage/internal/models"
)

const sentimentQuery = `
query {
  getMetric(metric: "sentiment_balance_total") {
    timeseriesData(
      slug: "%s"
      from: "utc_now-1d"
      to: "utc_now"
      interval: "1d"
    ) {
      datetime
      value
    }
  }
}
`

// SantimentClient fetches the daily sentiment balance for a slug from
// the Santiment GraphQL API.
type SantimentClient struct {
	client  *resty.Client
	apiKey  string
	policy  Policy
	limiter *rate.Limiter
}

// NewSantimentClient creates a Santiment client. url is the full
// GraphQL endpoint, not a base path.
func NewSantimentClient(url, apiKey string) *SantimentClient {
	client := resty.New()
	client.SetBaseURL(url)
	client.SetTimeout(10 * time.Second)

	return &SantimentClient{
		client:  client,
		apiKey:  apiKey,
		policy:  DefaultPolicy(),
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
}

type santimentResponse struct {
	Data struct {
		GetMetric struct {
			TimeseriesData []struct {
				Datetime string   `json:"datetime"`
				Value    *float64 `json:"value"`
			} `json:"timeseriesData"`
		} `json:"getMetric"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SentimentBalance returns yesterday-to-now sentiment balance for
// slug. A slug unknown upstream (GraphQL errors or an empty series)
// yields a null score, not an error: missing sentiment must not fail a
// cycle. Transport and HTTP failures are retried under the policy.
func (c *SantimentClient) SentimentBalance(ctx context.Context, slug string) (models.SentimentScore, error) {
	var score models.SentimentScore

	err := c.policy.Do(ctx, "santiment.sentiment_balance", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Apikey "+c.apiKey).
			SetBody(map[string]string{"query": fmt.Sprintf(sentimentQuery, slug)}).
			Post("")
		if err != nil {
			return fmt.Errorf("santiment request for %s failed: %w", slug, err)
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("santiment API error %d for %s: %s", resp.StatusCode(), slug, resp.String())
		}

		var out santimentResponse
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return fmt.Errorf("santiment response parse failed for %s: %w", slug, err)
		}

		if len(out.Errors) > 0 {
			slog.Warn("santiment returned errors", "slug", slug, "message", out.Errors[0].Message)
			score = models.SentimentScore{}
			return nil
		}

		series := out.Data.GetMetric.TimeseriesData
		if len(series) == 0 {
			slog.Warn("no sentiment data for slug", "slug", slug)
			score = models.SentimentScore{}
			return nil
		}

		score = models.SentimentScore{Value: series[len(series)-1].Value}
		return nil
	})
	if err != nil {
		return models.SentimentScore{}, err
	}

	return score, nil
}
