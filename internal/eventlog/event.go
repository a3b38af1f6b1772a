package eventlog

import "time"

// Kind classifies an event.
type Kind string

const (
	Send     Kind = "SEND"
	Receive  Kind = "RECEIVE"
	Internal Kind = "INTERNAL"
)

// NoPeer marks an event with no associated peer (internal events, and
// receives, since the wire protocol carries no sender identity).
const NoPeer = -1

// Event records one tick's outcome. Immutable once logged.
type Event struct {
	Kind     Kind
	Wall     time.Time // wall-clock time of the event
	Clock    int64     // logical clock value after the update
	QueueLen int       // processing queue length at the time of the event
	Peer     int       // target peer id for SEND, NoPeer otherwise
}

// Log is the sink a peer appends its events and error entries to.
type Log interface {
	// Append records one event.
	Append(e Event) error
	// Error records an error-class entry (send failure, malformed payload).
	Error(msg string) error
	// Close finalizes the stream. Appends after Close fail.
	Close() error
}
