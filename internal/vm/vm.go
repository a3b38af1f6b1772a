package vm

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"clocksim/internal/clock"
	"clocksim/internal/config"
	"clocksim/internal/eventlog"
	"clocksim/internal/registry"
)

// State is the peer lifecycle state.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Params configures a VM.
type Params struct {
	Self     registry.PeerDescriptor
	Registry *registry.Registry
	Events   eventlog.Log
	Rand     *rand.Rand

	DrawUpperBound int
	SendTriggers   map[int]config.SendTarget

	AcceptTimeout time.Duration
	ReadTimeout   time.Duration
	DialTimeout   time.Duration

	// LogWriter receives operational log lines; defaults to stderr.
	LogWriter io.Writer
}

// VM is one simulated peer. Create it with New, then Start and Stop it.
type VM struct {
	self      registry.PeerDescriptor
	reg       *registry.Registry
	neighbors []registry.PeerDescriptor
	clock     *clock.Lamport
	events    eventlog.Log
	logs      *log.Logger
	rng       *rand.Rand

	drawUpper     int
	triggers      map[int]config.SendTarget
	acceptTimeout time.Duration
	readTimeout   time.Duration
	dialTimeout   time.Duration

	netq  *fifo // messages as they arrive off the network
	procq *fifo // messages ready for the tick loop

	sends     atomic.Uint64
	receives  atomic.Uint64
	internals atomic.Uint64

	state    atomic.Int32
	ln       *net.TCPListener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup // listener + connection handlers
	loopDone chan struct{}

	errMu  sync.Mutex
	runErr error
}

// New creates a VM in the INIT state.
func New(p Params) (*VM, error) {
	if p.Registry == nil {
		return nil, fmt.Errorf("vm %d: registry is required", p.Self.ID)
	}
	if p.Events == nil {
		return nil, fmt.Errorf("vm %d: event log is required", p.Self.ID)
	}
	if p.Rand == nil {
		return nil, fmt.Errorf("vm %d: random source is required", p.Self.ID)
	}
	if _, err := p.Registry.Lookup(p.Self.ID); err != nil {
		return nil, fmt.Errorf("vm %d not in registry: %w", p.Self.ID, err)
	}
	if p.DrawUpperBound < 1 {
		return nil, fmt.Errorf("vm %d: draw upper bound must be at least 1", p.Self.ID)
	}
	if p.AcceptTimeout <= 0 {
		p.AcceptTimeout = 1 * time.Second
	}
	if p.ReadTimeout <= 0 {
		p.ReadTimeout = 1 * time.Second
	}
	if p.DialTimeout <= 0 {
		p.DialTimeout = 1 * time.Second
	}
	if p.LogWriter == nil {
		p.LogWriter = os.Stderr
	}

	return &VM{
		self:          p.Self,
		reg:           p.Registry,
		neighbors:     p.Registry.PeersOf(p.Self.ID),
		clock:         clock.New(),
		events:        p.Events,
		logs:          log.New(p.LogWriter, "", log.LstdFlags),
		rng:           p.Rand,
		drawUpper:     p.DrawUpperBound,
		triggers:      p.SendTriggers,
		acceptTimeout: p.AcceptTimeout,
		readTimeout:   p.ReadTimeout,
		dialTimeout:   p.DialTimeout,
		netq:          &fifo{},
		procq:         &fifo{},
	}, nil
}

// ID returns the peer id.
func (v *VM) ID() int {
	return v.self.ID
}

// State returns the current lifecycle state.
func (v *VM) State() State {
	return State(v.state.Load())
}

// Start binds the listener and launches the listener loop and the tick loop.
// A bind failure (port in use) is fatal: the VM cannot start.
func (v *VM) Start() error {
	if !v.state.CompareAndSwap(int32(StateInit), int32(StateRunning)) {
		return fmt.Errorf("vm %d already started", v.self.ID)
	}

	ln, err := net.Listen("tcp", v.self.Addr)
	if err != nil {
		v.state.Store(int32(StateStopped))
		return fmt.Errorf("vm %d failed to listen on %s: %w", v.self.ID, v.self.Addr, err)
	}
	v.ln = ln.(*net.TCPListener)
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.loopDone = make(chan struct{})

	v.wg.Add(1)
	go v.listen()

	go func() {
		defer close(v.loopDone)
		v.loop()
	}()

	v.logs.Printf("[vm%d] started on %s with clock rate %d ticks/second", v.self.ID, v.self.Addr, v.self.TickRate)
	return nil
}

// Stop requests cooperative shutdown and waits for the tick loop, the
// listener and all in-flight connection handlers to finish. It returns the
// fatal error the tick loop stopped on, if any.
func (v *VM) Stop() error {
	if !v.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return v.Err()
	}

	v.cancel()
	<-v.loopDone // tick loop notices at the next tick boundary
	v.wg.Wait()  // listener notices within one accept timeout
	v.ln.Close()

	v.state.Store(int32(StateStopped))
	v.logs.Printf("[vm%d] stopped", v.self.ID)
	return v.Err()
}

// Err returns the fatal error the tick loop stopped on, or nil.
func (v *VM) Err() error {
	v.errMu.Lock()
	defer v.errMu.Unlock()
	return v.runErr
}

// fail records a fatal error and stops driving ticks. Invariant violations
// land here: continuing would invalidate the ordering guarantee.
func (v *VM) fail(err error) {
	v.errMu.Lock()
	v.runErr = err
	v.errMu.Unlock()
	v.logs.Printf("[vm%d] fatal: %v", v.self.ID, err)
}

// loop drives ticks at the configured rate until shutdown or a fatal error.
func (v *VM) loop() {
	interval := time.Second / time.Duration(v.self.TickRate)

	for {
		select {
		case <-v.ctx.Done():
			return
		default:
		}

		start := time.Now()
		if err := v.runTick(); err != nil {
			v.fail(err)
			return
		}

		// Sleep the remainder of the tick interval, but stay responsive
		// to shutdown.
		if remaining := interval - time.Since(start); remaining > 0 {
			select {
			case <-v.ctx.Done():
				return
			case <-time.After(remaining):
			}
		}
	}
}

// runTick performs one tick: transfer, then a single decision. Clock updates
// happen only here.
func (v *VM) runTick() error {
	// Transfer: everything that arrived since the last tick becomes
	// processable, before the decision looks at the queue.
	v.netq.drainInto(v.procq)

	if received, ok := v.procq.popFront(); ok {
		before := v.clock.Now()
		now := v.clock.Observe(received)
		if now <= before || now <= received {
			return fmt.Errorf("vm %d: clock %d did not advance past local %d and received %d", v.self.ID, now, before, received)
		}
		v.receives.Add(1)
		return v.events.Append(eventlog.Event{
			Kind:     eventlog.Receive,
			Wall:     time.Now(),
			Clock:    now,
			QueueLen: v.procq.len(),
			Peer:     eventlog.NoPeer,
		})
	}

	draw := 1 + v.rng.Intn(v.drawUpper)
	before := v.clock.Now()
	now := v.clock.Tick()
	if now <= before {
		return fmt.Errorf("vm %d: clock %d did not advance past %d", v.self.ID, now, before)
	}

	targets := v.sendTargets(draw)
	if len(targets) == 0 {
		v.internals.Add(1)
		return v.events.Append(eventlog.Event{
			Kind:     eventlog.Internal,
			Wall:     time.Now(),
			Clock:    now,
			QueueLen: v.procq.len(),
			Peer:     eventlog.NoPeer,
		})
	}

	for _, peer := range targets {
		if err := v.send(peer, now); err != nil {
			// Transient send failures never stop the scheduler.
			v.logs.Printf("[vm%d] %v", v.self.ID, err)
			if lerr := v.events.Error(err.Error()); lerr != nil {
				return lerr
			}
			continue
		}
		v.sends.Add(1)
		if err := v.events.Append(eventlog.Event{
			Kind:     eventlog.Send,
			Wall:     time.Now(),
			Clock:    now,
			QueueLen: v.procq.len(),
			Peer:     peer.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// sendTargets maps a draw value to the peers to send to. A draw that is not
// a trigger, or a trigger with no eligible peer, yields no targets and the
// tick becomes an internal event.
func (v *VM) sendTargets(draw int) []registry.PeerDescriptor {
	target, ok := v.triggers[draw]
	if !ok {
		return nil
	}
	switch target {
	case config.SendFirst:
		if len(v.neighbors) > 0 {
			return v.neighbors[:1]
		}
	case config.SendSecond:
		if len(v.neighbors) > 1 {
			return v.neighbors[1:2]
		}
	case config.SendAll:
		return v.neighbors
	}
	return nil
}

// Snapshot is a read-only view of the peer for logging and monitoring.
type Snapshot struct {
	ID                 int    `json:"id"`
	Addr               string `json:"addr"`
	State              string `json:"state"`
	TickRate           int    `json:"tick_rate"`
	Clock              int64  `json:"clock"`
	NetworkQueueLen    int    `json:"network_queue_len"`
	ProcessingQueueLen int    `json:"processing_queue_len"`
	Sends              uint64 `json:"sends"`
	Receives           uint64 `json:"receives"`
	Internals          uint64 `json:"internals"`
}

// Snapshot reads the peer's current state without mutating anything.
func (v *VM) Snapshot() Snapshot {
	return Snapshot{
		ID:                 v.self.ID,
		Addr:               v.self.Addr,
		State:              v.State().String(),
		TickRate:           v.self.TickRate,
		Clock:              v.clock.Now(),
		NetworkQueueLen:    v.netq.len(),
		ProcessingQueueLen: v.procq.len(),
		Sends:              v.sends.Load(),
		Receives:           v.receives.Load(),
		Internals:          v.internals.Load(),
	}
}
