// Package vm implements a single simulated peer: a TCP listener that accepts
// timestamped messages from other peers, a rate-limited tick loop that drives
// the Lamport clock, and a fire-and-forget sender. Within one peer three kinds
// of execution context run concurrently: the tick loop (the only clock
// mutator), the listener loop, and short-lived per-connection handlers. Peers
// share no memory with one another; all cross-peer interaction is a network
// message carrying the sender's clock value.
package vm
