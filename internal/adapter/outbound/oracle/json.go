package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// jsonFencePattern extracts the body of a ```json fenced block.
var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// jsonRetryAttempts is how many completions are tried before giving up on a
// parseable JSON reply.
const jsonRetryAttempts = 3

// jsonRetryDelay separates JSON retry attempts.
const jsonRetryDelay = 1 * time.Second

// ExtractJSON parses the oracle's reply into out. Models often wrap JSON in
// a markdown fence; the fence body is preferred when present.
func ExtractJSON(text string, out any) error {
	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrOracleJSON, err)
	}
	return nil
}

// CompleteJSON asks the oracle for a completion and parses it into out,
// retrying the whole exchange when the reply is not valid JSON. Transport
// errors abort immediately; only malformed replies are retried.
func CompleteJSON(ctx context.Context, o outbound.Oracle, messages []outbound.Message, out any) error {
	var lastErr error
	for i := 0; i < jsonRetryAttempts; i++ {
		if i > 0 {
			select {
			case <-time.After(jsonRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		text, err := o.Complete(ctx, messages)
		if err != nil {
			return err
		}
		if err := ExtractJSON(text, out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %d attempts: %v", ErrOracleJSON, jsonRetryAttempts, lastErr)
}
