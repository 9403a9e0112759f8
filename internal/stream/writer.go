package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Wire format constants. These must match what existing stream consumers
// parse.
const (
	// DataPrefix starts every canonical chunk.
	DataPrefix = "data: "

	// DoneSentinel is the reserved payload of the terminal chunk.
	DoneSentinel = "[DONE]"

	// chunkTerminator ends every chunk.
	chunkTerminator = "\n\n"
)

// ErrorChunk is the JSON payload of an in-stream error chunk. Consumers use
// Recoverable to decide whether offering a retry makes sense.
type ErrorChunk struct {
	Error       string    `json:"error"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}

// Writer encodes canonical chunks onto one client connection. It owns the
// session's framing state: the sentinel is written exactly once, nothing is
// written after it, and writes after a client disconnect are discarded
// rather than surfaced as hard failures.
//
// A Writer is used by a single goroutine; sessions share no state.
type Writer struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	doneSent bool
	broken   bool
	logger   *slog.Logger
}

// NewWriter prepares the response for event streaming and returns a Writer
// over it. The headers disable caching, transformation and intermediary
// buffering.
func NewWriter(w http.ResponseWriter, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)

	return &Writer{
		w:       w,
		flusher: flusher,
		logger:  logger,
	}
}

// Ping writes a comment chunk. It carries no data but forces intermediaries
// to start forwarding the response before the first content chunk arrives.
func (sw *Writer) Ping() {
	sw.write([]byte(": ping" + chunkTerminator))
}

// Data writes one canonical chunk with the given payload.
func (sw *Writer) Data(payload []byte) {
	buf := make([]byte, 0, len(DataPrefix)+len(payload)+len(chunkTerminator))
	buf = append(buf, DataPrefix...)
	buf = append(buf, payload...)
	buf = append(buf, chunkTerminator...)
	sw.write(buf)
}

// Raw forwards bytes verbatim, used when the upstream already speaks the
// canonical protocol.
func (sw *Writer) Raw(p []byte) {
	sw.write(p)
}

// Error writes one in-stream error chunk with a human-readable message.
// The session still has to be closed with Done afterwards.
func (sw *Writer) Error(message string, recoverable bool) {
	payload, err := json.Marshal(ErrorChunk{
		Error:       message,
		Recoverable: recoverable,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		// Marshalling a flat struct of basic types cannot fail; guard anyway.
		payload = []byte(fmt.Sprintf(`{"error":%q,"recoverable":%t}`, message, recoverable))
	}
	sw.Data(payload)
}

// Done writes the terminal sentinel chunk. It is idempotent: the sentinel is
// emitted at most once, and every write after it is discarded.
func (sw *Writer) Done() {
	if sw.doneSent {
		return
	}
	sw.write([]byte(DataPrefix + DoneSentinel + chunkTerminator))
	sw.doneSent = true
}

// write sends bytes to the client, flushing immediately so chunks are not
// held back by response buffering. Once the connection errors (client gone)
// or the sentinel has been sent, writes become no-ops.
func (sw *Writer) write(p []byte) {
	if sw.doneSent || sw.broken {
		return
	}

	if _, err := sw.w.Write(p); err != nil {
		sw.broken = true
		sw.logger.Debug("client disconnected, discarding further chunks",
			slog.String("error", err.Error()))
		return
	}

	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}
