package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFetcher points a fetcher at the test server with a shrunk backoff
// base so retry tests stay fast while preserving the doubling schedule.
func newTestFetcher(serverURL string) *Fetcher {
	f := NewFetcher(serverURL, 5*time.Second, nil)
	f.backoffBase = 10 * time.Millisecond
	return f
}

func TestDoSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/llm/generate", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"prompt":"hello","session_id":"s1","include_history":true}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"hi"}`))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)
	resp, err := f.Do(context.Background(), GenerateRequest{
		Prompt:         "hello",
		SessionID:      "s1",
		IncludeHistory: true,
	})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load(), "a 2xx response must not be retried")
}

func TestDoRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"response":"finally"}`))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)

	start := time.Now()
	resp, err := f.Do(context.Background(), GenerateRequest{Prompt: "hello"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, int32(3), attempts.Load())
	// Two backoff waits: base and 2*base.
	assert.GreaterOrEqual(t, elapsed, 3*f.backoffBase,
		"two failures must incur backoff waits of base and 2*base")
}

func TestDoExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "still broken", http.StatusBadGateway)
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)
	resp, err := f.Do(context.Background(), GenerateRequest{Prompt: "hello"})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(3), attempts.Load(), "retry budget is three attempts")
	assert.ErrorIs(t, err, ErrUnavailable)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "still broken")
}

func TestDoClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)

	start := time.Now()
	resp, err := f.Do(context.Background(), GenerateRequest{Prompt: "hello"})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(1), attempts.Load(), "a 4xx response must fail immediately")
	assert.Less(t, elapsed, f.backoffBase, "a 4xx response must not incur a backoff wait")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestDoTransportFailureRetried(t *testing.T) {
	// A server that is immediately closed yields connection-refused errors.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	f := newTestFetcher(server.URL)
	resp, err := f.Do(context.Background(), GenerateRequest{Prompt: "hello"})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)
	f.backoffBase = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.Do(ctx, GenerateRequest{Prompt: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), attempts.Load(), "cancelled context must abort the backoff wait")
}
