package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/herald/internal/types"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	defaultMaxRetries     = 2
	userAgent             = "herald/v1"
)

// WebhookOptions configures a WebhookTransport.
type WebhookOptions struct {
	URL                string
	From               string
	Timeout            time.Duration
	InsecureSkipVerify bool
	// AuthToken is sent as a bearer token when set.
	AuthToken string
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Backoff is the base of the linear backoff between attempts.
	Backoff time.Duration
}

// DefaultWebhookOptions returns sensible defaults. URL must still be set.
func DefaultWebhookOptions() WebhookOptions {
	return WebhookOptions{
		Timeout:    defaultWebhookTimeout,
		MaxRetries: defaultMaxRetries,
		Backoff:    time.Second,
	}
}

// WebhookTransport POSTs email envelopes to an HTTP mail relay.
type WebhookTransport struct {
	httpClient *http.Client
	logger     *zap.Logger
	opts       WebhookOptions
}

// relayResponse is the optional body a relay returns on success.
type relayResponse struct {
	MessageID string `json:"messageId"`
}

// NewWebhookTransport creates a WebhookTransport. Returns an error if the URL is invalid.
func NewWebhookTransport(logger *zap.Logger, opts WebhookOptions) (*WebhookTransport, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWebhookTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
		logger.Warn("Webhook TLS certificate verification is disabled, this is insecure",
			zap.String("url", RedactURL(opts.URL)))
	}

	return &WebhookTransport{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		logger: logger.Named("webhook-transport"),
		opts:   opts,
	}, nil
}

// Name implements types.Transport.
func (wt *WebhookTransport) Name() string { return "webhook" }

// Send implements types.Transport.
func (wt *WebhookTransport) Send(ctx context.Context, email types.Email) (types.SendReceipt, error) {
	start := time.Now()
	receipt, err := wt.send(ctx, email)
	observe(wt.Name(), start, err)
	return receipt, err
}

func (wt *WebhookTransport) send(ctx context.Context, email types.Email) (types.SendReceipt, error) {
	if err := validateEmail(email); err != nil {
		return types.SendReceipt{}, err
	}
	envelope := newEnvelope(wt.opts.From, email)
	body, err := json.Marshal(envelope)
	if err != nil {
		return types.SendReceipt{}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := range wt.opts.MaxRetries + 1 {
		if attempt > 0 {
			backoff := time.Duration(attempt) * wt.opts.Backoff
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return types.SendReceipt{}, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
			sendRetries.WithLabelValues(wt.Name()).Inc()
		}

		var id string
		id, lastErr = wt.doPost(ctx, body)
		if lastErr == nil {
			if id == "" {
				id = envelope.MessageID
			}
			return types.SendReceipt{MessageID: id}, nil
		}
		if !IsRetryable(lastErr) {
			return types.SendReceipt{}, lastErr
		}

		wt.logger.Debug("Webhook send transient failure, will retry",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	return types.SendReceipt{}, fmt.Errorf("webhook send failed after %d attempts: %w", wt.opts.MaxRetries+1, lastErr)
}

// doPost executes a single HTTP POST and returns the relay's message id, if any.
func (wt *WebhookTransport) doPost(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wt.opts.URL, bytes.NewReader(body))
	if err != nil {
		return "", permanent("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if wt.opts.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+wt.opts.AuthToken)
	}

	resp, err := wt.httpClient.Do(req)
	if err != nil {
		return "", &sendError{err: err, retryable: ctx.Err() == nil}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var rr relayResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&rr); err != nil {
			return "", nil
		}
		return rr.MessageID, nil
	}

	return "", &sendError{
		err:       fmt.Errorf("webhook returned HTTP %d", resp.StatusCode),
		retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
	}
}
