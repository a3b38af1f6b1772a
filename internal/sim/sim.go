package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"clocksim/internal/config"
	"clocksim/internal/eventlog"
	"clocksim/internal/monitor"
	"clocksim/internal/registry"
	"clocksim/internal/vm"
)

// Simulation owns one run: a registry, one VM and one event log per peer,
// and optionally a monitor server.
type Simulation struct {
	cfg   *config.Config
	reg   *registry.Registry
	vms   []*vm.VM
	elogs []eventlog.Log
	mon   *monitor.Server
	logs  *log.Logger
	logw  io.Writer
	runID string
}

// New builds a simulation from configuration, drawing each peer's tick rate
// from the configured range.
func New(cfg *config.Config, logw io.Writer) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	peers := cfg.BuildPeers(rand.New(rand.NewSource(seed)))
	return build(cfg, peers, seed, logw)
}

// NewWithPeers builds a simulation over an explicit peer set, bypassing the
// tick-rate draw. The descriptors must use addresses the config would
// otherwise assign.
func NewWithPeers(cfg *config.Config, peers []registry.PeerDescriptor, logw io.Writer) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return build(cfg, peers, seed, logw)
}

func build(cfg *config.Config, peers []registry.PeerDescriptor, seed int64, logw io.Writer) (*Simulation, error) {
	if logw == nil {
		logw = os.Stderr
	}

	reg, err := registry.New(peers)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = strings.SplitN(uuid.NewString(), "-", 2)[0]
	}

	s := &Simulation{
		cfg:   cfg,
		reg:   reg,
		logs:  log.New(logw, "", log.LstdFlags),
		logw:  logw,
		runID: runID,
	}

	for _, p := range reg.All() {
		neighbors := reg.PeersOf(p.ID)
		neighborIDs := make([]int, 0, len(neighbors))
		for _, n := range neighbors {
			neighborIDs = append(neighborIDs, n.ID)
		}

		el, err := eventlog.NewFileLog(cfg.LogDir, runID, p.ID, p.TickRate, neighborIDs)
		if err != nil {
			s.closeLogs()
			return nil, fmt.Errorf("failed to create log for vm %d: %w", p.ID, err)
		}
		s.elogs = append(s.elogs, el)

		v, err := vm.New(vm.Params{
			Self:           p,
			Registry:       reg,
			Events:         el,
			Rand:           rand.New(rand.NewSource(seed + int64(p.ID) + 1)),
			DrawUpperBound: cfg.DrawUpperBound,
			SendTriggers:   cfg.SendTriggers,
			AcceptTimeout:  cfg.AcceptTimeout.Std(),
			ReadTimeout:    cfg.ReadTimeout.Std(),
			DialTimeout:    cfg.DialTimeout.Std(),
			LogWriter:      logw,
		})
		if err != nil {
			s.closeLogs()
			return nil, err
		}
		s.vms = append(s.vms, v)
	}

	return s, nil
}

// RunID returns this run's identifier, used in log file names.
func (s *Simulation) RunID() string {
	return s.runID
}

// Registry returns the peer registry for this run.
func (s *Simulation) Registry() *registry.Registry {
	return s.reg
}

// Snapshots returns a read-only snapshot of every peer, in id order.
func (s *Simulation) Snapshots() []vm.Snapshot {
	snaps := make([]vm.Snapshot, 0, len(s.vms))
	for _, v := range s.vms {
		snaps = append(snaps, v.Snapshot())
	}
	return snaps
}

// MonitorAddr returns the monitor's bound address, or empty when the monitor
// is disabled or not yet started.
func (s *Simulation) MonitorAddr() string {
	if s.mon == nil {
		return ""
	}
	return s.mon.Addr()
}

// Run starts every peer, runs for the configured duration (or until ctx is
// canceled), then stops everything cooperatively. Peer-fatal errors are
// joined into the returned error.
func (s *Simulation) Run(ctx context.Context) error {
	s.logs.Printf("[sim %s] starting %d peers", s.runID, len(s.vms))

	for i, v := range s.vms {
		if err := v.Start(); err != nil {
			for _, prev := range s.vms[:i] {
				prev.Stop()
			}
			s.closeLogs()
			return err
		}
	}

	if s.cfg.MonitorAddr != "" {
		peers := make([]monitor.Peer, 0, len(s.vms))
		for _, v := range s.vms {
			peers = append(peers, v)
		}
		s.mon = monitor.New(peers, s.logw)
		if err := s.mon.Start(s.cfg.MonitorAddr); err != nil {
			s.stopAll()
			s.closeLogs()
			return err
		}
	}

	s.logs.Printf("[sim %s] running for %s", s.runID, s.cfg.RunDuration.Std())
	select {
	case <-ctx.Done():
		s.logs.Printf("[sim %s] canceled, shutting down", s.runID)
	case <-time.After(s.cfg.RunDuration.Std()):
	}

	err := s.stopAll()

	if s.mon != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.mon.Shutdown(shutdownCtx)
		cancel()
	}
	s.closeLogs()

	s.logs.Printf("[sim %s] complete, check %s for log files", s.runID, s.cfg.LogDir)
	return err
}

func (s *Simulation) stopAll() error {
	var errs []error
	for _, v := range s.vms {
		if err := v.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("vm %d: %w", v.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Simulation) closeLogs() {
	for _, el := range s.elogs {
		el.Close()
	}
	s.elogs = nil
}
