// Package inference holds thin clients for hosted pretrained models used by
// the response pipeline: a sentiment classifier and an extractive QA model.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single inference call.
	DefaultTimeout = 15 * time.Second
	// DefaultRPS is the client-side request rate when none is configured.
	DefaultRPS = 5.0

	maxErrorBody = 2048
)

// Options configures an inference client.
type Options struct {
	URL        string
	Token      string
	RPS        float64
	Burst      int
	HTTPClient *http.Client
}

// StatusError is a non-2xx answer from an inference endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// client is the shared rate-limited JSON transport.
type client struct {
	url     string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func newClient(opts Options) *client {
	rps := opts.RPS
	if rps <= 0 {
		rps = DefaultRPS
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &client{
		url:     strings.TrimSpace(opts.URL),
		token:   opts.Token,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *client) post(ctx context.Context, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call inference endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode inference response: %w", err)
	}
	return nil
}
