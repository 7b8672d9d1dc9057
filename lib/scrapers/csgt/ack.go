package csgt

import (
	"encoding/json"
	"strings"
)

// rejectionSentinel is the literal body the endpoint answers with
// when the challenge text is wrong. It is an application-level
// convention in the body content, not an HTTP status; an actual 404
// status surfaces as a transport error instead.
const rejectionSentinel = "404"

type ackKind int

const (
	ackRejected ackKind = iota
	ackAccepted
	ackMalformed
)

type ackOutcome struct {
	kind     ackKind
	redirect string
	// raw holds a snippet of the body for diagnostics on the
	// malformed path
	raw string
}

const ackSnippetLimit = 200

// interpretAck classifies the submission acknowledgment. Accepted
// answers are JSON carrying a redirect target; anything that is
// neither the rejection sentinel nor such JSON is malformed.
func interpretAck(body []byte) ackOutcome {
	text := strings.TrimSpace(string(body))
	if text == rejectionSentinel {
		return ackOutcome{kind: ackRejected}
	}

	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(text)
	var payload struct {
		Success bool   `json:"success"`
		Href    string `json:"href"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil &&
		payload.Success && payload.Href != "" {
		return ackOutcome{kind: ackAccepted, redirect: payload.Href}
	}

	snippet := text
	if len(snippet) > ackSnippetLimit {
		snippet = snippet[:ackSnippetLimit]
	}
	return ackOutcome{kind: ackMalformed, raw: snippet}
}
