// Package monitor exposes a read-only HTTP API over a running simulation:
// health, the peer list, and per-peer snapshots (state, clock value, queue
// lengths, event counts). It only ever reads peer state; the tick loop
// remains the sole mutator.
package monitor
