// Package eventlog provides the event record emitted by a peer at every tick
// and the sinks that persist it. FileLog writes one human-readable append-only
// stream per peer per run; MemoryLog records events in memory for tests.
package eventlog
