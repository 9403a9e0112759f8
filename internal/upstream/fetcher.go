package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Retry policy constants. These are load-bearing for wire compatibility with
// existing consumers: three attempts with 1s, 2s waits between them (the
// third failure is terminal).
const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 1000 * time.Millisecond

	generatePath = "/api/llm/generate"

	// How much of an error response body is preserved for diagnostics.
	maxErrorBodyBytes = 4096
)

// Fetcher performs one logical call against the upstream generation endpoint
// with bounded retries and exponential backoff. Transport failures and
// server-class statuses are retried; client-class statuses are returned
// immediately. The caller is suspended until a terminal outcome.
type Fetcher struct {
	client      *http.Client
	baseURL     string
	maxAttempts int
	backoffBase time.Duration
	logger      *slog.Logger
}

// NewFetcher creates a Fetcher for the given base URL. The timeout bounds a
// single attempt. If logger is nil, a default logger will be used.
func NewFetcher(baseURL string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		logger:      logger.With(slog.String("component", "upstream_fetcher")),
	}
}

// Do performs the upstream call for the given request. On success the
// response is returned with its body unread, so the caller can stream it;
// the caller owns closing it. On failure the last error is returned after
// the retry budget is spent.
func (f *Fetcher) Do(ctx context.Context, req GenerateRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upstream request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := f.backoffBase * (1 << (attempt - 2))
			f.logger.Info("retrying upstream call",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-timer.C:
			}
		}

		resp, err := f.attempt(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
	}

	f.logger.Error("upstream call failed after all attempts",
		slog.Int("attempts", f.maxAttempts),
		slog.String("error", lastErr.Error()))
	return nil, lastErr
}

// attempt performs a single upstream request.
func (f *Fetcher) attempt(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		f.baseURL+generatePath,
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream, application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		// Connection refused, timeout, DNS failure and friends.
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	// Drain a bounded slice of the body for diagnostics, then release the
	// connection.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()

	return nil, &StatusError{
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(snippet)),
	}
}
