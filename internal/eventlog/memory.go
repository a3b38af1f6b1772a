package eventlog

import "sync"

// MemoryLog records events in memory. It is safe for concurrent use and is
// the sink tests inspect.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
	errors []string
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append records one event.
func (l *MemoryLog) Append(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

// Error records one error-class entry.
func (l *MemoryLog) Error(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
	return nil
}

// Close is a no-op for the in-memory log.
func (l *MemoryLog) Close() error {
	return nil
}

// Events returns a copy of the recorded events.
func (l *MemoryLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Errors returns a copy of the recorded error entries.
func (l *MemoryLog) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.errors))
	copy(out, l.errors)
	return out
}
