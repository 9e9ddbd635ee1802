// Package oracle provides LLM-backed implementations of the outbound Oracle
// port: an OpenAI-compatible chat client (which also serves OpenRouter), a
// direct Anthropic client, and a Gemini client on the genai SDK. Provider
// selection goes by model name.
package oracle

import (
	"errors"
	"time"
)

// ErrOracleTransport indicates the provider could not be reached or kept
// failing after retries.
var ErrOracleTransport = errors.New("oracle transport failure")

// ErrOracleJSON indicates the oracle's reply never parsed as the requested
// JSON shape, across all retry attempts.
var ErrOracleJSON = errors.New("oracle returned invalid JSON")

// maxTransportRetries is how many times a request is retried on 429 or 5xx
// before giving up. Backoff doubles per attempt starting at one second.
const maxTransportRetries = 3

// defaultTimeout bounds a single completion when the caller's context
// carries no deadline.
const defaultTimeout = 2 * time.Minute

// backoff returns the sleep before retry attempt i (1-based).
func backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * time.Second
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
