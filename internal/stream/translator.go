package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bugstars/chat-relay/internal/upstream"
)

// Pacing constants for synthesized streams. Existing consumers render chunks
// as they arrive, so these control the perceived typing speed.
const (
	// synthesizeChunkWords is how many words go into one synthesized chunk.
	synthesizeChunkWords = 3

	// synthesizeChunkDelay is the pause between synthesized chunks.
	synthesizeChunkDelay = 30 * time.Millisecond

	// passThroughBufferSize is the read buffer for forwarding a native
	// upstream stream.
	passThroughBufferSize = 4096
)

// Fetcher is the upstream dependency of the translator: one logical call
// with retries applied, returning a response whose body is still unread.
type Fetcher interface {
	Do(ctx context.Context, req upstream.GenerateRequest) (*http.Response, error)
}

// Translator converts one upstream exchange into a canonical event stream on
// the caller's connection. The upstream may answer with a native event
// stream (forwarded verbatim) or a single buffered payload (re-emitted as a
// paced sequence of synthesized chunks); callers see the same wire format
// either way.
type Translator struct {
	fetcher    Fetcher
	chunkWords int
	chunkDelay time.Duration
	logger     *slog.Logger
}

// NewTranslator creates a Translator using the given fetcher.
// If logger is nil, a default logger will be used.
func NewTranslator(fetcher Fetcher, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Translator{
		fetcher:    fetcher,
		chunkWords: synthesizeChunkWords,
		chunkDelay: synthesizeChunkDelay,
		logger:     logger.With(slog.String("component", "stream_translator")),
	}
}

// Relay runs one stream session: it fetches the upstream response and emits
// canonical chunks to sw until the exchange is finished. The terminal
// sentinel is always written, on success and failure alike. It returns the
// assistant's accumulated plain text (empty when none could be recovered)
// for the caller to persist.
func (t *Translator) Relay(
	ctx context.Context,
	sw *Writer,
	req upstream.GenerateRequest,
) (accumulated string) {
	defer sw.Done()

	resp, err := t.fetcher.Do(ctx, req)
	if err != nil {
		t.logger.Error("upstream exchange failed",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()))
		sw.Error(safeUpstreamMessage(err), errors.Is(err, upstream.ErrUnavailable))
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	// Sent before any content so intermediaries commit to forwarding the
	// stream instead of buffering it.
	sw.Ping()

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/event-stream") {
		return t.passThrough(sw, resp.Body)
	}
	return t.synthesize(ctx, sw, resp.Body)
}

// passThrough forwards the upstream byte stream verbatim, segment by
// segment, until end-of-stream or a read error. The full transcript is
// retained so the assistant text can be recovered afterwards.
func (t *Translator) passThrough(sw *Writer, body io.Reader) string {
	var transcript strings.Builder
	buf := make([]byte, passThroughBufferSize)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			sw.Raw(buf[:n])
			transcript.Write(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Error("upstream stream read failed", slog.String("error", err.Error()))
				sw.Error("Error reading upstream stream", true)
			}
			break
		}
	}

	return accumulateEventStream([]byte(transcript.String()))
}

// synthesize turns a single buffered upstream payload into a paced sequence
// of canonical chunks.
func (t *Translator) synthesize(ctx context.Context, sw *Writer, body io.Reader) string {
	payload, err := io.ReadAll(body)
	if err != nil {
		t.logger.Error("failed to read upstream payload", slog.String("error", err.Error()))
		sw.Error("Error reading upstream response", true)
		return ""
	}

	trimmed := strings.TrimSpace(string(payload))

	// Some upstreams hand back an already-formatted event-stream body under
	// a JSON content type. Detected by the leading event marker; a real
	// payload coincidentally starting with the marker would be misread, but
	// no such payload exists in practice.
	if strings.HasPrefix(trimmed, DataPrefix) {
		for _, line := range strings.Split(trimmed, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			sw.Raw([]byte(line + chunkTerminator))
		}
		return accumulateEventStream([]byte(trimmed))
	}

	text, ok := extractText(payload)
	if !ok {
		// Unparseable payload: recover locally by handing the caller the
		// raw bytes instead of failing the session.
		t.logger.Warn("upstream payload is not valid JSON, emitting raw",
			slog.Int("payload_bytes", len(payload)))
		sw.Data([]byte(trimmed))
		return ""
	}

	if text == "" {
		sw.Data(encodeContentChunk("No content received from upstream."))
		return ""
	}

	t.emitPaced(ctx, sw, text)
	return text
}

// emitPaced writes the text as groups of chunkWords words with a short delay
// between groups, emulating live delivery.
func (t *Translator) emitPaced(ctx context.Context, sw *Writer, text string) {
	words := strings.Fields(text)

	for i := 0; i < len(words); i += t.chunkWords {
		end := i + t.chunkWords
		if end > len(words) {
			end = len(words)
		}

		segment := strings.Join(words[i:end], " ")
		if end < len(words) {
			// Trailing space so concatenated chunks reconstruct the text.
			segment += " "
		}

		sw.Data(encodeContentChunk(segment))

		if end < len(words) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.chunkDelay):
			}
		}
	}
}

// contentChunk mirrors the upstream's streamed chunk structure so synthesized
// and passed-through chunks look identical to consumers.
type contentChunk struct {
	Candidates []contentCandidate `json:"candidates"`
}

type contentCandidate struct {
	Content contentBody `json:"content"`
}

type contentBody struct {
	Parts []contentPart `json:"parts"`
	Role  string        `json:"role"`
}

type contentPart struct {
	Text string `json:"text"`
}

// encodeContentChunk builds the canonical JSON payload for one piece of
// assistant text.
func encodeContentChunk(text string) []byte {
	payload, err := json.Marshal(contentChunk{
		Candidates: []contentCandidate{{
			Content: contentBody{
				Parts: []contentPart{{Text: text}},
				Role:  "model",
			},
		}},
	})
	if err != nil {
		// Cannot happen for this fixed shape; keep the stream alive anyway.
		return []byte(`{"candidates":[]}`)
	}
	return payload
}

// safeUpstreamMessage maps fetcher errors onto client-facing messages that
// do not leak internals.
func safeUpstreamMessage(err error) string {
	switch {
	case errors.Is(err, upstream.ErrRejected):
		return "The upstream service rejected the request."
	case errors.Is(err, upstream.ErrUnavailable):
		return "The upstream service is currently unavailable. Please try again."
	default:
		return "An error occurred while processing your request."
	}
}
