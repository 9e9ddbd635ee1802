package conversation

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Log is the shared conversation record: a rolling window of recent
// messages, the pinned initial message, and a seen-set for de-duplication.
// The seen-set stores 64-bit content hashes rather than full texts so its
// memory stays proportional to message count, not transcript size.
type Log struct {
	mu      sync.RWMutex
	window  *Window
	seen    map[uint64]struct{}
	initial string
	started bool
}

// NewLog returns an empty log whose window holds capacity messages.
func NewLog(capacity int) *Log {
	return &Log{
		window: NewWindow(capacity),
		seen:   make(map[uint64]struct{}),
	}
}

// Observe records a message. first reports whether this was the first
// message ever observed (it becomes the pinned initial message). duplicate
// reports whether the exact text was observed before; duplicates are not
// re-recorded.
func (l *Log) Observe(message string) (first, duplicate bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := xxhash.Sum64String(message)
	if _, ok := l.seen[key]; ok {
		return false, true
	}
	l.seen[key] = struct{}{}
	l.window.Add(message)
	if !l.started {
		l.started = true
		l.initial = message
		return true, false
	}
	return false, false
}

// Initial returns the pinned first message, or "" before any observation.
func (l *Log) Initial() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initial
}

// Transcript renders the current window for prompt interpolation.
func (l *Log) Transcript() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.window.Render()
}

// Len reports how many messages the window currently buffers.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.window.Len()
}
