// Package webhook delivers progress notifications to an HTTP endpoint.
// Each notification is POSTed as JSON. Transient failures are retried with
// backoff, and a circuit breaker stops the calls while the endpoint is down.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/internal/domain/notification"
	"github.com/recoverly/progress-hub/pkg/circuitbreaker"
	"github.com/recoverly/progress-hub/pkg/logger"
	"github.com/recoverly/progress-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the webhook client.
type ClientConfig struct {
	// URL receives the notifications.
	URL string

	// Timeout is the per-attempt HTTP timeout.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Retrier overrides retry.WebhookRetrier().
	Retrier *retry.Retrier

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:       url,
		Timeout:   5 * time.Second,
		UserAgent: "progress-hub-notifier/1.0",
	}
}

// ConfigFrom maps the application notification settings.
func ConfigFrom(c config.NotificationConfig) ClientConfig {
	cfg := DefaultClientConfig(c.WebhookURL)
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	return cfg
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrNoURL is returned by NewClient when the URL is empty.
var ErrNoURL = errors.New("webhook: URL is required")

// StatusError is a non-2xx answer from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// isOutage reports whether err says something about the endpoint's health.
// Rejected payloads do not trip the breaker.
func isOutage(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return err != nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements notification.Sink over HTTP.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
}

var _ notification.Sink = (*Client)(nil)

// NewClient creates a webhook client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	log := cfg.Logger.With(logger.Component("notify_webhook"))

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	retrier := cfg.Retrier
	if retrier == nil {
		retrier = retry.WebhookRetrier()
	}
	retrier = retrier.With(retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("webhook delivery failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}))

	breaker := circuitbreaker.WebhookBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}, isOutage)

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		retrier:    retrier,
		breaker:    breaker,
		logger:     log,
	}, nil
}

// Breaker exposes the circuit breaker state for health reporting.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Send delivers n. The returned error is marked permanent: the client has
// already retried, so callers should not retry again.
func (c *Client) Send(ctx context.Context, n notification.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal notification: %w", err))
	}

	err = c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.post(ctx, body)
		})
	})
	if err != nil {
		return retry.Permanent(fmt.Errorf("deliver %s notification: %w", n.Type, err))
	}
	return nil
}

// post performs a single delivery attempt.
func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	se := &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	if se.Temporary() {
		return retry.Retryable(se)
	}
	return se
}
