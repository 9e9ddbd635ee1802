// Package event defines the host-neutral envelope for intercepted runtime
// events and the pure classification that decides how the guard routes each
// one. The interception adapter maps host events into Envelope; nothing here
// talks to a runtime or an oracle.
package event

import "strings"

// Kind tags the host event shape. Hosts map their native event types onto
// these tags when building an Envelope.
type Kind string

const (
	// KindToolExecution is a raw tool-execution event (the call running).
	KindToolExecution Kind = "tool_execution"
	// KindToolSummary is the textual result of a finished tool call.
	KindToolSummary Kind = "tool_summary"
	// KindText is a plain text message between agents.
	KindText Kind = "text"
	// KindToolRequest carries one or more pending function calls.
	KindToolRequest Kind = "tool_request"
	// KindAgentResponse is an agent's final response wrapper.
	KindAgentResponse Kind = "agent_response"
	// KindGroupReset is a group-chat reset control event.
	KindGroupReset Kind = "group_chat_reset"
	// KindUnknown is anything the host could not map.
	KindUnknown Kind = "unknown"
)

// RefuseTerminationTool is the synthetic tool whose invocation is always a
// hard deny: an agent calling it is trying to cancel its own shutdown.
const RefuseTerminationTool = "refuse_termination"

// FactSheetPrefix marks the host workflow's fact-sheet preamble. Messages
// starting with it are exempt from refusal classification.
const FactSheetPrefix = "Here is an initial fact sheet to consider"

// FunctionCall is one pending tool invocation inside a KindToolRequest event.
type FunctionCall struct {
	// Name is the tool name.
	Name string
	// Arguments is the serialized argument payload, typically JSON.
	Arguments string
}

// Envelope is the neutral event shape the interception adapter consumes.
type Envelope struct {
	// Kind tags the host event type.
	Kind Kind
	// Source is the producing role or agent name ("user", "assistant", ...).
	Source string
	// Content is the rendered textual content, when the event has any.
	Content string
	// HasContent reports whether the event carried a content field at all.
	HasContent bool
	// Structured reports that Content was rendered from a non-string
	// payload; such messages are checked against the full predicate set.
	Structured bool
	// Calls are the pending function calls of a KindToolRequest event.
	Calls []FunctionCall
}

// Route is the dispatch decision for one envelope.
type Route int

const (
	// RouteIgnore drops the event without any check.
	RouteIgnore Route = iota
	// RouteMessage checks the content as a message with similarity-filtered
	// predicate retrieval.
	RouteMessage
	// RouteFullMessage checks the content as a message against the full
	// predicate set (tool results and structured payloads).
	RouteFullMessage
	// RouteActions checks every pending function call as an action.
	RouteActions
	// RoutePass lets the event through without a check.
	RoutePass
	// RouteUnknown passes the event through but is worth a log line.
	RouteUnknown
)

// String names the route for logging.
func (r Route) String() string {
	switch r {
	case RouteIgnore:
		return "ignore"
	case RouteMessage:
		return "message"
	case RouteFullMessage:
		return "full_message"
	case RouteActions:
		return "actions"
	case RoutePass:
		return "pass"
	default:
		return "unknown"
	}
}

// Classify maps an envelope to its dispatch route.
func Classify(e Envelope) Route {
	switch e.Kind {
	case KindToolExecution:
		return RouteIgnore
	case KindToolSummary:
		return RouteFullMessage
	case KindToolRequest:
		return RouteActions
	case KindAgentResponse, KindGroupReset:
		return RoutePass
	case KindText:
		if e.Structured {
			return RouteFullMessage
		}
		return RouteMessage
	case KindUnknown:
		return RouteUnknown
	}
	// Kinds the table does not name fall back to the content shape.
	if e.HasContent {
		if e.Structured {
			return RouteFullMessage
		}
		return RouteMessage
	}
	return RouteUnknown
}

// RefusalEligible reports whether the envelope should pass through the
// refusal classifier: a textual message from a non-user source that is not
// the workflow's fact-sheet preamble.
func (e Envelope) RefusalEligible() bool {
	if e.Kind != KindText || e.Structured {
		return false
	}
	if e.Source == "" || e.Source == "user" {
		return false
	}
	return !strings.HasPrefix(strings.TrimSpace(e.Content), FactSheetPrefix)
}
