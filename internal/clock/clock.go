package clock

import "sync"

// Lamport is a Lamport logical clock. Reads and updates are guarded
// internally so concurrent readers (logging, monitoring) never observe a torn
// value; mutation is still expected to come from a single context, the peer's
// tick loop.
type Lamport struct {
	mu  sync.Mutex
	now int64
}

// New creates a clock starting at zero.
func New() *Lamport {
	return &Lamport{}
}

// Now returns the current clock value without mutating it.
func (c *Lamport) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Tick advances the clock by one and returns the new value. It is applied
// for internal events and before sending a message.
func (c *Lamport) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return c.now
}

// Observe applies the receive rule for a remote timestamp: the clock becomes
// max(local, received)+1. The result is strictly greater than both the prior
// local value and the received value.
func (c *Lamport) Observe(received int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if received > c.now {
		c.now = received
	}
	c.now++
	return c.now
}
