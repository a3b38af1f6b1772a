package eventlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// WallFormat is the timestamp layout used in log files.
const WallFormat = "2006-01-02 15:04:05.000000"

// FileLog writes events to a per-peer text file, one run per file. Lines are
// flushed on every append so a crashed run still leaves a usable log.
type FileLog struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	closed bool
}

// FilePath returns the log file path for a peer within a run.
func FilePath(dir, runID string, vmID int) string {
	return filepath.Join(dir, fmt.Sprintf("sim%s_vm%d_log.txt", runID, vmID))
}

// NewFileLog creates the log file for one peer and writes the run header.
// The directory is created if it does not exist.
func NewFileLog(dir, runID string, vmID, tickRate int, peers []int) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.Create(FilePath(dir, runID, vmID))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	l := &FileLog{f: f, w: bufio.NewWriter(f)}
	fmt.Fprintf(l.w, "============= VM%d LOG START =============\n", vmID)
	fmt.Fprintf(l.w, "Clock rate: %d ticks per second\n", tickRate)
	fmt.Fprintf(l.w, "Peers: %v\n\n", peers)
	if err := l.w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}
	return l, nil
}

// Append writes one event line.
func (l *FileLog) Append(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("log is closed")
	}

	switch e.Kind {
	case Send:
		fmt.Fprintf(l.w, "Sent to VM%d | ", e.Peer)
	case Receive:
		fmt.Fprintf(l.w, "Received | ")
	default:
		fmt.Fprintf(l.w, "Internal event | ")
	}
	fmt.Fprintf(l.w, "System time: %s | Logical Clock Time: %d | Message Queue Length: %d\n",
		e.Wall.Format(WallFormat), e.Clock, e.QueueLen)

	return l.w.Flush()
}

// Error writes one error-class line.
func (l *FileLog) Error(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("log is closed")
	}

	fmt.Fprintf(l.w, "Error: %s | System time: %s\n", msg, time.Now().Format(WallFormat))
	return l.w.Flush()
}

// Close writes the trailer and closes the file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	fmt.Fprintf(l.w, "\n============= VM LOG END =============\n")
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return fmt.Errorf("failed to flush log: %w", err)
	}
	return l.f.Close()
}
