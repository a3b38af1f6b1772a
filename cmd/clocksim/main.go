// Command clocksim runs a Lamport-clock peer simulation. By default it runs
// every peer in-process for the configured duration. With --peer-id it runs a
// single peer as its own process, which is how the process-mode harness
// launches a cluster.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clocksim/internal/config"
	"clocksim/internal/eventlog"
	"clocksim/internal/monitor"
	"clocksim/internal/registry"
	"clocksim/internal/sim"
	"clocksim/internal/vm"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML simulation config")
		peerID      = flag.Int("peer-id", -1, "run a single peer with this id (process mode)")
		peersStr    = flag.String("peers", "", "comma-separated id=addr list of all peers (process mode)")
		tickRate    = flag.Int("tick-rate", 0, "ticks per second for this peer (process mode; 0 draws from the configured range)")
		duration    = flag.Duration("duration", 0, "override run duration")
		logDir      = flag.String("log-dir", "", "override log directory")
		runID       = flag.String("run-id", "", "override run id")
		monitorAddr = flag.String("monitor", "", "serve the monitoring API on this address")
		seed        = flag.Int64("seed", 0, "random seed (0 seeds from the current time)")
	)
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("clocksim: %v", err)
		}
		cfg = loaded
	}
	if *duration > 0 {
		cfg.RunDuration = config.Duration(*duration)
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *runID != "" {
		cfg.RunID = *runID
	}
	if *monitorAddr != "" {
		cfg.MonitorAddr = *monitorAddr
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("clocksim: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if *peerID >= 0 {
		err = runPeer(ctx, cfg, *peerID, *peersStr, *tickRate)
	} else {
		err = runSim(ctx, cfg)
	}
	if err != nil {
		log.Fatalf("clocksim: %v", err)
	}
}

func runSim(ctx context.Context, cfg *config.Config) error {
	s, err := sim.New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// runPeer runs exactly one peer. The full peer list comes from --peers so
// every process shares the same registry view.
func runPeer(ctx context.Context, cfg *config.Config, id int, peersStr string, tickRate int) error {
	peerList, err := config.ParsePeers(peersStr)
	if err != nil {
		return err
	}
	if len(peerList) == 0 {
		return fmt.Errorf("process mode requires --peers")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if tickRate == 0 {
		rng := rand.New(rand.NewSource(seed))
		tickRate = cfg.TickRateMin + rng.Intn(cfg.TickRateMax-cfg.TickRateMin+1)
	}

	// Remote tick rates are not used locally; only this peer's rate drives
	// a loop in this process.
	descs := make([]registry.PeerDescriptor, 0, len(peerList))
	neighborIDs := make([]int, 0, len(peerList)-1)
	for _, p := range peerList {
		rate := 1
		if p.ID == id {
			rate = tickRate
		} else {
			neighborIDs = append(neighborIDs, p.ID)
		}
		descs = append(descs, registry.PeerDescriptor{ID: p.ID, Addr: p.Addr, TickRate: rate})
	}

	reg, err := registry.New(descs)
	if err != nil {
		return err
	}
	self, err := reg.Lookup(id)
	if err != nil {
		return fmt.Errorf("--peer-id %d not present in --peers: %w", id, err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = "local"
	}
	el, err := eventlog.NewFileLog(cfg.LogDir, runID, id, tickRate, neighborIDs)
	if err != nil {
		return err
	}
	defer el.Close()

	v, err := vm.New(vm.Params{
		Self:           self,
		Registry:       reg,
		Events:         el,
		Rand:           rand.New(rand.NewSource(seed + int64(id) + 1)),
		DrawUpperBound: cfg.DrawUpperBound,
		SendTriggers:   cfg.SendTriggers,
		AcceptTimeout:  cfg.AcceptTimeout.Std(),
		ReadTimeout:    cfg.ReadTimeout.Std(),
		DialTimeout:    cfg.DialTimeout.Std(),
		LogWriter:      os.Stderr,
	})
	if err != nil {
		return err
	}

	if err := v.Start(); err != nil {
		return err
	}

	var mon *monitor.Server
	if cfg.MonitorAddr != "" {
		mon = monitor.New([]monitor.Peer{v}, os.Stderr)
		if err := mon.Start(cfg.MonitorAddr); err != nil {
			v.Stop()
			return err
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(cfg.RunDuration.Std()):
	}

	if mon != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		mon.Shutdown(shutdownCtx)
		cancel()
	}
	return v.Stop()
}
