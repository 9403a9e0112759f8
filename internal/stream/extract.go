package stream

import (
	"bytes"
	"strings"

	"github.com/bytedance/sonic"
)

// upstreamPayload is the subset of the upstream's JSON body the translator
// cares about: either a plain response field or the nested multi-part
// candidate structure.
type upstreamPayload struct {
	Response   string `json:"response"`
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// extractText pulls the plain-text answer out of an upstream JSON payload.
// It returns ok=false when the payload is not valid JSON; an empty string
// with ok=true means the payload parsed but carried no text.
func extractText(payload []byte) (string, bool) {
	var parsed upstreamPayload
	if err := sonic.Unmarshal(payload, &parsed); err != nil {
		return "", false
	}

	if parsed.Response != "" {
		return parsed.Response, true
	}

	var sb strings.Builder
	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), true
}

// accumulateEventStream extracts and joins the candidate text carried by a
// complete event-stream transcript, so a pass-through session still yields
// the assistant's reply for persistence. Unparseable lines are skipped; they
// were forwarded verbatim regardless.
func accumulateEventStream(transcript []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(transcript, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte(DataPrefix)) {
			continue
		}

		data := bytes.TrimPrefix(line, []byte(DataPrefix))
		if string(data) == DoneSentinel {
			continue
		}

		if text, ok := extractText(data); ok {
			sb.WriteString(text)
		}
	}

	return sb.String()
}
