package stream

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	NewWriter(rec, nil)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

func TestWriterChunkFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec, nil)

	sw.Ping()
	sw.Data([]byte(`{"x":1}`))
	sw.Done()

	assert.Equal(t, ": ping\n\ndata: {\"x\":1}\n\ndata: [DONE]\n\n", rec.Body.String())
}

func TestWriterSentinelExactlyOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec, nil)

	sw.Done()
	sw.Done()
	sw.Data([]byte("after")) // discarded
	sw.Ping()                // discarded

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, DoneSentinel), "sentinel must be written exactly once")
	assert.True(t, strings.HasSuffix(body, DataPrefix+DoneSentinel+"\n\n"),
		"nothing may follow the sentinel")
	assert.NotContains(t, body, "after")
}

func TestWriterErrorChunk(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec, nil)

	sw.Error("something broke", true)
	sw.Done()

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, DataPrefix))
	assert.Contains(t, body, `"error":"something broke"`)
	assert.Contains(t, body, `"recoverable":true`)
	assert.Contains(t, body, `"timestamp"`)
}
