package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/seotools/pkg/observability"
)

// Delivery headers
const (
	HeaderEvent     = "X-Seotools-Event"
	HeaderEventID   = "X-Seotools-Event-ID"
	HeaderDelivery  = "X-Seotools-Delivery"
	HeaderSignature = "X-Seotools-Signature"
)

// EventType represents the type of webhook event
type EventType string

const (
	EventAggregateMissing EventType = "aggregate.missing"
	EventSuccessRateLow   EventType = "success_rate.low"
)

// Event represents a webhook event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Notifier posts alert events to a single endpoint. Payloads are signed with
// HMAC-SHA256 when a secret is configured.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	retry  *RetryPolicy
	logger *observability.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewNotifier creates a notifier for url
func NewNotifier(url, secret string, logger *observability.Logger) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry:  NewRetryPolicy(DefaultRetryConfig()),
		logger: logger,
		sleep:  sleepContext,
	}
}

// WithRetryPolicy replaces the default retry policy
func (n *Notifier) WithRetryPolicy(policy *RetryPolicy) *Notifier {
	n.retry = policy
	return n
}

// Notify delivers one event, retrying transient failures with exponential backoff.
// A 4xx response other than 429 fails immediately.
func (n *Notifier) Notify(ctx context.Context, eventType string, data map[string]interface{}) error {
	event := &Event{
		ID:        uuid.NewString(),
		Type:      EventType(eventType),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	log := n.logger.WithFields(map[string]interface{}{
		"event_type": eventType,
		"event_id":   event.ID,
	})

	for attempt := 1; ; attempt++ {
		err = n.send(ctx, event, payload)
		if err == nil {
			log.WithField("attempts", attempt).Debug("Webhook delivered")
			return nil
		}
		if !n.retry.ShouldRetry(attempt, err) {
			return fmt.Errorf("webhook delivery failed after %d attempts: %w", attempt, err)
		}

		delay := n.retry.NextRetryDelay(attempt)
		log.WithError(err).WithField("retry_in", delay.String()).Warn("Webhook delivery failed, retrying")
		if err := n.sleep(ctx, delay); err != nil {
			return fmt.Errorf("webhook delivery abandoned: %w", err)
		}
	}
}

func (n *Notifier) send(ctx context.Context, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return &permanentError{err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(event.Type))
	req.Header.Set(HeaderEventID, event.ID)
	req.Header.Set(HeaderDelivery, time.Now().UTC().Format(time.RFC3339))
	if n.secret != "" {
		req.Header.Set(HeaderSignature, generateSignature(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return &permanentError{err: statusErr}
	}
	return statusErr
}

// VerifySignature verifies the webhook signature
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := generateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// generateSignature generates HMAC-SHA256 signature
func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
