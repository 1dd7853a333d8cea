// Package webhook verifies inbound GitHub webhook deliveries and
// classifies them into the small set of events Treliq re-scores on.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// signaturePrefix is the scheme GitHub prefixes the hex digest with in
// the x-hub-signature-256 header.
const signaturePrefix = "sha256="

// VerifySignature checks that signatureHeader is the hex-encoded
// HMAC-SHA256 of body under secret, using a constant-time comparison.
// An empty secret always fails verification rather than being treated
// as "unconfigured, allow anything".
func VerifySignature(secret string, body []byte, signatureHeader string) bool {
	if secret == "" || signatureHeader == "" {
		return false
	}
	hexDigest, ok := strings.CutPrefix(signatureHeader, signaturePrefix)
	if !ok {
		return false
	}
	want, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	got := mac.Sum(nil)

	return hmac.Equal(got, want)
}

// Event is a classified, parsed webhook delivery ready for the
// orchestrator to act on.
type Event struct {
	Type       string // "pull_request", "installation", "ping", "ignored"
	Action     string // e.g. "opened", "synchronize", "closed", "created", "suspend"
	Repo       string
	PRNumber   int
	Reply      string // literal body to send back, e.g. "pong"
	ReplyCode  int
}

var relevantPRActions = map[string]bool{
	"opened": true, "synchronize": true, "reopened": true, "closed": true,
}

var relevantInstallationActions = map[string]bool{
	"created": true, "deleted": true, "suspend": true, "unsuspend": true,
}

type pullRequestPayload struct {
	Action string `json:"action"`
	Number int    `json:"number"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

type installationPayload struct {
	Action string `json:"action"`
}

// Classify parses the payload for a given x-github-event header value
// and decides whether it's actionable. Unknown events and unrecognized
// actions within a known event are both classified as "ignored".
func Classify(eventHeader string, body []byte) (Event, error) {
	switch eventHeader {
	case "ping":
		return Event{Type: "ping", Reply: "pong", ReplyCode: 200}, nil
	case "pull_request":
		var p pullRequestPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return Event{}, fmt.Errorf("parse pull_request payload: %w", err)
		}
		if !relevantPRActions[p.Action] {
			return Event{Type: "ignored", Reply: "ignored", ReplyCode: 200}, nil
		}
		return Event{Type: "pull_request", Action: p.Action, Repo: p.Repository.FullName, PRNumber: p.Number}, nil
	case "installation":
		var p installationPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return Event{}, fmt.Errorf("parse installation payload: %w", err)
		}
		if !relevantInstallationActions[p.Action] {
			return Event{Type: "ignored", Reply: "ignored", ReplyCode: 200}, nil
		}
		return Event{Type: "installation", Action: p.Action}, nil
	default:
		return Event{Type: "ignored", Reply: "ignored", ReplyCode: 200}, nil
	}
}
