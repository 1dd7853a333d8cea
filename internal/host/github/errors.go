package github

import (
	"encoding/json"
	"strconv"

	"github.com/mahsumaktas/treliq/internal/llm/retry"
)

// apiErrorBody is GitHub's standard error envelope.
type apiErrorBody struct {
	Message string `json:"message"`
}

// mapHTTPError classifies a GitHub REST/GraphQL HTTP response into a
// retry.Error, honoring the Retry-After / X-RateLimit-Reset headers GitHub
// sends alongside 429s and secondary rate limit responses.
func mapHTTPError(statusCode int, body []byte, retryAfterHeader string) error {
	msg := parseErrorMessage(body)

	switch {
	case statusCode == 401 || statusCode == 403:
		if retryAfterHeader != "" {
			return retry.NewRateLimitError("host", msg, parseRetryAfter(retryAfterHeader))
		}
		return retry.NewAuthenticationError("host", msg)
	case statusCode == 429:
		return retry.NewRateLimitError("host", msg, parseRetryAfter(retryAfterHeader))
	case statusCode == 404:
		return retry.NewNotFoundError("host", msg)
	case statusCode == 422:
		return retry.NewInvalidRequestError("host", msg)
	case statusCode >= 500:
		return retry.NewServiceUnavailableError("host", msg)
	default:
		return &retry.Error{Type: retry.ErrTypeUnknown, Message: msg, StatusCode: statusCode, Retryable: false, Source: "host"}
	}
}

func parseErrorMessage(body []byte) string {
	var e apiErrorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	if len(body) > 0 {
		return string(body)
	}
	return "unknown error"
}

func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	n, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return n
}
