package conversation

import "sync"

// Ledger tracks per-sender state: a bounded history of each sender's
// messages and the current threat level per agent. Levels only move through
// Observe, SetLevel and Contaminate, so they always stay inside the scale.
type Ledger struct {
	mu        sync.RWMutex
	capacity  int
	histories map[string]*Window
	levels    map[string]ThreatLevel
}

// NewLedger returns an empty ledger whose per-sender windows hold capacity
// messages each.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &Ledger{
		capacity:  capacity,
		histories: make(map[string]*Window),
		levels:    make(map[string]ThreatLevel),
	}
}

// Observe appends a message to the sender's history, creating the sender's
// state at level Trusted on first sight, and returns the updated history
// (oldest first) together with the sender's current level.
func (l *Ledger) Observe(sender, message string) ([]string, ThreatLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.histories[sender]
	if !ok {
		w = NewWindow(l.capacity)
		l.histories[sender] = w
		l.levels[sender] = Trusted
	}
	w.Add(message)
	return w.Messages(), l.levels[sender]
}

// History returns the sender's buffered messages, oldest first.
func (l *Ledger) History(sender string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if w, ok := l.histories[sender]; ok {
		return w.Messages()
	}
	return nil
}

// Level returns the agent's current threat level, Trusted if never seen.
func (l *Ledger) Level(agent string) ThreatLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.levels[agent]
}

// SetLevel assigns the sender's threat level, clamped to the valid range.
func (l *Ledger) SetLevel(agent string, level ThreatLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels[agent] = ClampThreatLevel(int(level))
}

// Contaminate propagates a sender's new level onto the recipient: the
// recipient is raised to the sender's level but never lowered.
func (l *Ledger) Contaminate(recipient string, senderLevel ThreatLevel) ThreatLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.levels[recipient]
	if senderLevel > current {
		current = ClampThreatLevel(int(senderLevel))
		l.levels[recipient] = current
	} else if _, ok := l.levels[recipient]; !ok {
		l.levels[recipient] = current
	}
	return current
}

// Levels returns a snapshot of every known agent's threat level.
func (l *Ledger) Levels() map[string]ThreatLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]ThreatLevel, len(l.levels))
	for agent, level := range l.levels {
		out[agent] = level
	}
	return out
}
