// Package it provides a process-mode integration harness: it launches one OS
// process per peer via the clocksim binary. Peers interact exactly as the
// in-process simulation's peers do, over loopback TCP, but share no memory.
package it

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Cluster is a set of peer processes under test.
type Cluster struct {
	peers      []*Peer
	logDir     string
	binaryPath string
	runID      string
	mu         sync.Mutex
}

// Peer is a single peer process in the cluster.
type Peer struct {
	ID          int
	Addr        string
	MonitorAddr string
	TickRate    int
	cmd         *exec.Cmd
	logFile     *os.File
}

// NewCluster creates a harness writing peer logs under dir.
func NewCluster(binaryPath, dir, runID string) (*Cluster, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Cluster{
		logDir:     dir,
		binaryPath: binaryPath,
		runID:      runID,
	}, nil
}

// LogDir returns the directory peer event logs are written to.
func (c *Cluster) LogDir() string {
	return c.logDir
}

// RunID returns the run id shared by every peer in the cluster.
func (c *Cluster) RunID() string {
	return c.runID
}

// StartPeer launches one peer process. peersStr is the full id=addr list
// shared by every peer; duration bounds how long the process runs before
// exiting on its own.
func (c *Cluster) StartPeer(ctx context.Context, id int, addr, monitorAddr, peersStr string, tickRate int, duration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	logPath := filepath.Join(c.logDir, fmt.Sprintf("peer%d.stderr.log", id))
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create process log file: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binaryPath,
		"--peer-id", strconv.Itoa(id),
		"--peers", peersStr,
		"--tick-rate", strconv.Itoa(tickRate),
		"--duration", duration.String(),
		"--log-dir", c.logDir,
		"--run-id", c.runID,
		"--monitor", monitorAddr,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start peer %d: %w", id, err)
	}

	peer := &Peer{
		ID:          id,
		Addr:        addr,
		MonitorAddr: monitorAddr,
		TickRate:    tickRate,
		cmd:         cmd,
		logFile:     logFile,
	}
	c.peers = append(c.peers, peer)

	if err := c.waitForReady(ctx, peer, 10*time.Second); err != nil {
		peer.Stop()
		return fmt.Errorf("peer %d failed to become ready: %w", id, err)
	}
	return nil
}

// waitForReady polls the peer's monitoring endpoint until it responds.
func (c *Cluster) waitForReady(ctx context.Context, peer *Peer, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	url := "http://" + peer.MonitorAddr + "/healthz"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for peer %d", peer.ID)
			}
			resp, err := http.Get(url)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
	}
}

// WaitAll waits for every peer process to exit on its own (the processes
// stop after their --duration elapses) and reports the first failure.
func (c *Cluster) WaitAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, p := range c.peers {
		if err := p.cmd.Wait(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("peer %d exited with error: %w", p.ID, err)
		}
		if p.logFile != nil {
			p.logFile.Close()
			p.logFile = nil
		}
	}
	return firstErr
}

// Stop kills every peer in the cluster.
func (c *Cluster) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.peers {
		p.Stop()
	}
	c.peers = nil
}

// Stop kills a single peer process.
func (p *Peer) Stop() {
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
		p.cmd.Wait()
	}
	if p.logFile != nil {
		p.logFile.Close()
		p.logFile = nil
	}
}

// GetPeer returns a peer by id.
func (c *Cluster) GetPeer(id int) *Peer {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.peers {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// StartCluster starts the canonical three-peer cluster with tick rates 1, 3
// and 6, running for the given duration.
func (c *Cluster) StartCluster(ctx context.Context, basePort int, duration time.Duration) error {
	rates := []int{1, 3, 6}

	peersStr := ""
	for i := range rates {
		if i > 0 {
			peersStr += ","
		}
		peersStr += fmt.Sprintf("%d=127.0.0.1:%d", i, basePort+i)
	}

	for i, rate := range rates {
		addr := fmt.Sprintf("127.0.0.1:%d", basePort+i)
		monitorAddr := fmt.Sprintf("127.0.0.1:%d", basePort+100+i)
		if err := c.StartPeer(ctx, i, addr, monitorAddr, peersStr, rate, duration); err != nil {
			c.Stop()
			return err
		}
	}
	return nil
}
