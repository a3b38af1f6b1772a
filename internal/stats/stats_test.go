package stats

import (
	"strings"
	"testing"
	"time"

	"clocksim/internal/eventlog"
)

const sampleLog = `============= VM1 LOG START =============
Clock rate: 3 ticks per second
Peers: [0 2]

Internal event | System time: 2026-08-25 12:00:00.000000 | Logical Clock Time: 1 | Message Queue Length: 0
Sent to VM2 | System time: 2026-08-25 12:00:00.333000 | Logical Clock Time: 2 | Message Queue Length: 0
Received | System time: 2026-08-25 12:00:00.666000 | Logical Clock Time: 9 | Message Queue Length: 2
Error: failed to send to VM0 at 127.0.0.1:5000: connection refused | System time: 2026-08-25 12:00:01.000000
Received | System time: 2026-08-25 12:00:01.000000 | Logical Clock Time: 10 | Message Queue Length: 1
garbage line that matches nothing

============= VM LOG END =============
`

func TestParse(t *testing.T) {
	l, err := Parse(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if l.VMID != 1 {
		t.Errorf("VMID = %d, want 1", l.VMID)
	}
	if l.TickRate != 3 {
		t.Errorf("TickRate = %d, want 3", l.TickRate)
	}
	if l.Errors != 1 {
		t.Errorf("Errors = %d, want 1", l.Errors)
	}
	if len(l.Entries) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(l.Entries))
	}

	e := l.Entries[1]
	if e.Kind != eventlog.Send || e.Peer != 2 || e.Clock != 2 {
		t.Errorf("Entry 1 = %+v, want SEND to 2 at clock 2", e)
	}

	e = l.Entries[2]
	if e.Kind != eventlog.Receive || e.Peer != eventlog.NoPeer {
		t.Errorf("Entry 2 = %+v, want RECEIVE without peer", e)
	}
	if e.QueueLen != 2 {
		t.Errorf("Entry 2 queue length = %d, want 2", e.QueueLen)
	}
	wantWall := time.Date(2026, 8, 25, 12, 0, 0, 666000000, time.UTC)
	if !e.Wall.Equal(wantWall) {
		t.Errorf("Entry 2 wall = %s, want %s", e.Wall, wantWall)
	}
}

func TestSummarize(t *testing.T) {
	l, err := Parse(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	s := Summarize(l)
	if s.Events != 4 || s.Sends != 1 || s.Receives != 2 || s.Internals != 1 {
		t.Errorf("Counts = %d/%d/%d/%d, want 4 events, 1 send, 2 receives, 1 internal",
			s.Events, s.Sends, s.Receives, s.Internals)
	}
	if s.FinalClock != 10 {
		t.Errorf("FinalClock = %d, want 10", s.FinalClock)
	}
	// Jumps: 1->2 (1), 2->9 (7), 9->10 (1)
	if s.MaxJump != 7 {
		t.Errorf("MaxJump = %d, want 7", s.MaxJump)
	}
	if s.MeanJump != 3 {
		t.Errorf("MeanJump = %v, want 3", s.MeanJump)
	}
	if s.MaxQueueLen != 2 {
		t.Errorf("MaxQueueLen = %d, want 2", s.MaxQueueLen)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&RunLog{VMID: 0})
	if s.Events != 0 || s.FinalClock != 0 || s.MeanJump != 0 || s.MeanQueueLen != 0 {
		t.Errorf("Empty summary should be zeroed, got %+v", s)
	}
}

func TestParse_RoundTripWithFileLog(t *testing.T) {
	dir := t.TempDir()

	fl, err := eventlog.NewFileLog(dir, "x", 2, 5, []int{0, 1})
	if err != nil {
		t.Fatalf("NewFileLog() failed: %v", err)
	}
	wall := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	events := []eventlog.Event{
		{Kind: eventlog.Internal, Wall: wall, Clock: 1, QueueLen: 0, Peer: eventlog.NoPeer},
		{Kind: eventlog.Send, Wall: wall.Add(200 * time.Millisecond), Clock: 2, QueueLen: 0, Peer: 0},
		{Kind: eventlog.Receive, Wall: wall.Add(400 * time.Millisecond), Clock: 8, QueueLen: 1, Peer: eventlog.NoPeer},
	}
	for _, e := range events {
		if err := fl.Append(e); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	l, err := ParseFile(eventlog.FilePath(dir, "x", 2))
	if err != nil {
		t.Fatalf("ParseFile() failed: %v", err)
	}

	if l.VMID != 2 || l.TickRate != 5 {
		t.Errorf("Header parsed as vm %d rate %d, want vm 2 rate 5", l.VMID, l.TickRate)
	}
	if len(l.Entries) != len(events) {
		t.Fatalf("Expected %d entries, got %d", len(events), len(l.Entries))
	}
	for i, e := range l.Entries {
		if e.Kind != events[i].Kind || e.Clock != events[i].Clock || e.QueueLen != events[i].QueueLen {
			t.Errorf("Entry %d = %+v, want %+v", i, e, events[i])
		}
		if !e.Wall.Equal(events[i].Wall) {
			t.Errorf("Entry %d wall = %s, want %s", i, e.Wall, events[i].Wall)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	l, err := Parse(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, l); err != nil {
		t.Fatalf("WriteCSV() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected header + 4 rows, got %d lines", len(lines))
	}
	if lines[0] != "vm_id,kind,system_time,logical_clock,queue_length,peer" {
		t.Errorf("Unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[2], "SEND") || !strings.HasSuffix(lines[2], ",2") {
		t.Errorf("Send row should carry the peer id: %q", lines[2])
	}
}
