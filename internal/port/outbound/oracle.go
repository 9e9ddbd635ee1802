// Package outbound defines the narrow capabilities the guard consumes from
// the outside world: LLM oracles, the embedding function, the vector index,
// and the host's termination flag. Adapters implement these; services depend
// only on the interfaces.
package outbound

import "context"

// Role is a chat message role.
type Role string

const (
	// RoleSystem is the system prompt role.
	RoleSystem Role = "system"
	// RoleUser is the user prompt role.
	RoleUser Role = "user"
)

// Message is one chat message sent to an oracle.
type Message struct {
	// Role is system or user.
	Role Role
	// Content is the message text.
	Content string
	// Source optionally names the producing agent for providers that
	// carry it.
	Source string
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message with source "user".
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Source: "user"}
}

// Oracle is the single capability the guard needs from an LLM backend: send
// an ordered message list, get the completion text back. Implementations
// honor ctx cancellation and own their transport-level timeouts.
type Oracle interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OracleFunc adapts a function to the Oracle interface; test stubs use it.
type OracleFunc func(ctx context.Context, messages []Message) (string, error)

// Complete implements Oracle.
func (f OracleFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
