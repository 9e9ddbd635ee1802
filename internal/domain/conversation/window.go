// Package conversation tracks what the guard has observed: the shared
// message window, the pinned initial request, per-sender histories and
// per-sender threat levels.
package conversation

import "encoding/json"

// DefaultWindowCapacity is the FIFO depth used when none is configured.
const DefaultWindowCapacity = 5

// Window is a bounded FIFO of the most recent messages. It is not
// synchronized; Log and Ledger serialize access for their windows.
type Window struct {
	capacity int
	entries  []string
}

// NewWindow returns a window holding at most capacity messages. A
// non-positive capacity falls back to DefaultWindowCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &Window{capacity: capacity, entries: make([]string, 0, capacity)}
}

// Add appends a message, evicting the oldest once the window is full.
func (w *Window) Add(message string) {
	w.entries = append(w.entries, message)
	if len(w.entries) > w.capacity {
		w.entries = w.entries[len(w.entries)-w.capacity:]
	}
}

// Messages returns a copy of the buffered messages, oldest first.
func (w *Window) Messages() []string {
	out := make([]string, len(w.entries))
	copy(out, w.entries)
	return out
}

// Len reports how many messages are buffered.
func (w *Window) Len() int { return len(w.entries) }

// Render serializes the buffered messages as a JSON array for prompt
// interpolation. Marshaling a string slice cannot fail.
func (w *Window) Render() string {
	data, _ := json.Marshal(w.entries)
	return string(data)
}
