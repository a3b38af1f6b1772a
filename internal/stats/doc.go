// Package stats parses the per-peer log files a run leaves behind and
// computes summaries of clock progression and queue behavior: event counts,
// clock jumps between consecutive events, and processing-queue lengths.
// Summaries can be exported as CSV for external plotting.
package stats
