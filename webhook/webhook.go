// Package webhook notifies an external endpoint when a batch is saved.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/use-agent/lazcrawl/models"
)

// EventBatchCompleted is sent once a batch has been persisted.
const EventBatchCompleted = "batch.completed"

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Lazcrawl-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// BatchSummary is the data of a batch.completed event.
type BatchSummary struct {
	CrawledAt      time.Time `json:"crawledAt"`
	TotalProducts  int       `json:"totalProducts"`
	SuccessfulURLs int       `json:"successfulUrls"`
	FailedURLs     int       `json:"failedUrls"`
	Location       string    `json:"location"`
	Failed         []string  `json:"failed"`
}

// BatchCompleted builds the event for a persisted batch.
func BatchCompleted(out *models.BatchOutput, location string, now time.Time) *Event {
	return &Event{
		Type:      EventBatchCompleted,
		Timestamp: now.Unix(),
		Data: BatchSummary{
			CrawledAt:      out.CrawledAt,
			TotalProducts:  out.TotalProducts,
			SuccessfulURLs: out.SuccessfulURLs,
			FailedURLs:     out.FailedURLs,
			Location:       location,
			Failed:         out.Failed,
		},
	}
}

// statusError is a non-2xx answer from the endpoint.
type statusError struct{ code int }

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook: endpoint returned status %d", e.code)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Lazcrawl-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// RetryConfig controls DeliverWithRetry.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns 3 retries starting at 1s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialInterval: time.Second, MaxInterval: 30 * time.Second}
}

// DeliverWithRetry delivers event with exponential backoff. Client errors
// other than 408 and 429 are not retried.
func DeliverWithRetry(ctx context.Context, cfg RetryConfig, url, secret string, event *Event) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	bo := backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := Deliver(ctx, url, secret, event)
		if err == nil {
			slog.Info("webhook delivered", "url", url, "event", event.Type, "attempt", attempt)
			return nil
		}
		slog.Warn("webhook delivery failed", "url", url, "event", event.Type, "attempt", attempt, "error", err)
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("webhook: gave up after %d attempts: %w", attempt, err)
	}
	return nil
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests || se.code == http.StatusRequestTimeout
	}
	return true
}
