package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"coinsage/internal/logging"
)

// Alert describes a cycle that exhausted its retry budget.
type Alert struct {
	CycleID   string    `json:"cycle_id"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	DeadAt    time.Time `json:"dead_at"`
}

// WebhookAlerter posts dead-cycle alerts to an operator webhook. With
// no URL configured it degrades to a log line so dead cycles are never
// silent.
type WebhookAlerter struct {
	url    string
	client *resty.Client
}

// NewWebhookAlerter creates an alerter. url may be empty.
func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

// Notify delivers one alert.
func (a *WebhookAlerter) Notify(ctx context.Context, alert Alert) error {
	logger := logging.WithCorrelation(alert.CycleID)
	if a.url == "" {
		logger.Error("ingestion cycle dead, no alert webhook configured",
			"attempts", alert.Attempts,
			"last_error", alert.LastError)
		return nil
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(alert).
		Post(a.url)
	if err != nil {
		return fmt.Errorf("alert webhook: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("alert webhook: status %d", resp.StatusCode())
	}

	logger.Info("dead-cycle alert delivered", "attempts", alert.Attempts)
	return nil
}
