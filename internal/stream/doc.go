// Package stream implements the relay's canonical event-stream wire format
// and the translator that bridges upstream responses onto it. Upstreams that
// stream natively are forwarded verbatim; single-shot JSON responses are
// re-emitted as a paced sequence of synthesized chunks. Every session ends
// with exactly one [DONE] sentinel chunk.
package stream
