package stats

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"clocksim/internal/eventlog"
)

// Entry is one parsed event line.
type Entry struct {
	Kind     eventlog.Kind
	Peer     int // target peer for SEND, eventlog.NoPeer otherwise
	Wall     time.Time
	Clock    int64
	QueueLen int
}

// RunLog is the parsed content of one peer's log file.
type RunLog struct {
	VMID     int
	TickRate int
	Entries  []Entry
	Errors   int // error-class lines
}

// ParseFile parses a peer log file produced by eventlog.FileLog.
func ParseFile(path string) (*RunLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses a peer log stream. Lines that match no known shape are
// skipped, so a truncated run still yields a usable result.
func Parse(r io.Reader) (*RunLog, error) {
	l := &RunLog{VMID: -1}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "============= VM") && strings.Contains(line, "LOG START"):
			fmt.Sscanf(line, "============= VM%d LOG START", &l.VMID)
		case strings.HasPrefix(line, "Clock rate:"):
			fmt.Sscanf(line, "Clock rate: %d ticks per second", &l.TickRate)
		case strings.HasPrefix(line, "Error:"):
			l.Errors++
		case strings.Contains(line, "Logical Clock Time:"):
			entry, err := parseEntry(line)
			if err != nil {
				continue
			}
			l.Entries = append(l.Entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return l, nil
}

func parseEntry(line string) (Entry, error) {
	e := Entry{Peer: eventlog.NoPeer}

	parts := strings.Split(line, " | ")
	if len(parts) < 3 {
		return e, fmt.Errorf("short event line: %q", line)
	}

	head := strings.TrimSpace(parts[0])
	switch {
	case strings.HasPrefix(head, "Sent to VM"):
		e.Kind = eventlog.Send
		peer, err := strconv.Atoi(strings.TrimPrefix(head, "Sent to VM"))
		if err != nil {
			return e, fmt.Errorf("bad send target in %q", head)
		}
		e.Peer = peer
	case head == "Received":
		e.Kind = eventlog.Receive
	case head == "Internal event":
		e.Kind = eventlog.Internal
	default:
		return e, fmt.Errorf("unknown event head: %q", head)
	}

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "System time: "):
			wall, err := time.Parse(eventlog.WallFormat, strings.TrimPrefix(part, "System time: "))
			if err != nil {
				return e, fmt.Errorf("bad timestamp in %q: %w", part, err)
			}
			e.Wall = wall
		case strings.HasPrefix(part, "Logical Clock Time: "):
			v, err := strconv.ParseInt(strings.TrimPrefix(part, "Logical Clock Time: "), 10, 64)
			if err != nil {
				return e, fmt.Errorf("bad clock in %q: %w", part, err)
			}
			e.Clock = v
		case strings.HasPrefix(part, "Message Queue Length: "):
			v, err := strconv.Atoi(strings.TrimPrefix(part, "Message Queue Length: "))
			if err != nil {
				return e, fmt.Errorf("bad queue length in %q: %w", part, err)
			}
			e.QueueLen = v
		}
	}
	return e, nil
}

// Summary aggregates one peer's run.
type Summary struct {
	VMID      int
	TickRate  int
	Events    int
	Sends     int
	Receives  int
	Internals int
	Errors    int

	FinalClock int64
	MaxJump    int64   // largest clock jump between consecutive events
	MeanJump   float64 // mean clock jump between consecutive events

	MaxQueueLen  int
	MeanQueueLen float64
}

// Summarize computes the summary for a parsed log.
func Summarize(l *RunLog) Summary {
	s := Summary{
		VMID:     l.VMID,
		TickRate: l.TickRate,
		Events:   len(l.Entries),
		Errors:   l.Errors,
	}

	var jumpSum int64
	var queueSum int
	for i, e := range l.Entries {
		switch e.Kind {
		case eventlog.Send:
			s.Sends++
		case eventlog.Receive:
			s.Receives++
		case eventlog.Internal:
			s.Internals++
		}
		if e.QueueLen > s.MaxQueueLen {
			s.MaxQueueLen = e.QueueLen
		}
		queueSum += e.QueueLen

		if i > 0 {
			jump := e.Clock - l.Entries[i-1].Clock
			jumpSum += jump
			if jump > s.MaxJump {
				s.MaxJump = jump
			}
		}
		s.FinalClock = e.Clock
	}

	if len(l.Entries) > 1 {
		s.MeanJump = float64(jumpSum) / float64(len(l.Entries)-1)
	}
	if len(l.Entries) > 0 {
		s.MeanQueueLen = float64(queueSum) / float64(len(l.Entries))
	}
	return s
}

// WriteCSV writes the parsed entries as CSV rows for external plotting.
func WriteCSV(w io.Writer, l *RunLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vm_id", "kind", "system_time", "logical_clock", "queue_length", "peer"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range l.Entries {
		peer := ""
		if e.Peer != eventlog.NoPeer {
			peer = strconv.Itoa(e.Peer)
		}
		row := []string{
			strconv.Itoa(l.VMID),
			string(e.Kind),
			e.Wall.Format(eventlog.WallFormat),
			strconv.FormatInt(e.Clock, 10),
			strconv.Itoa(e.QueueLen),
			peer,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
