// Package clock provides the Lamport logical clock used by each peer to
// establish a causal ordering of events. The clock is a single non-decreasing
// counter: internal and send events advance it by one, while receiving a
// remote timestamp advances it past both the local and the remote value.
package clock
