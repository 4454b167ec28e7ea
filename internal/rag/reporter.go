package rag

import (
	"github.com/getsentry/sentry-go"
)

// SentryReporter forwards pipeline errors to Sentry.
type SentryReporter struct{}

// Capture sends err to Sentry.
func (SentryReporter) Capture(err error) {
	sentry.CaptureException(err)
}
