package config

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"clocksim/internal/registry"
)

// SendTarget names the peer(s) a trigger value sends to.
type SendTarget string

const (
	// SendFirst sends to the peer's first neighbor (lowest other id).
	SendFirst SendTarget = "first"
	// SendSecond sends to the peer's second neighbor; an internal event
	// happens instead when the peer has fewer than two neighbors.
	SendSecond SendTarget = "second"
	// SendAll sends to every other peer.
	SendAll SendTarget = "all"
)

// Duration wraps time.Duration so YAML configs can use values like "60s".
type Duration time.Duration

// UnmarshalYAML parses a duration string such as "500ms" or "60s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in time.Duration's string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Peer represents a peer endpoint in an explicit peer list.
type Peer struct {
	ID   int
	Addr string
}

// Config holds the simulation configuration. A single Config drives one run;
// per-peer tick rates are drawn from [TickRateMin, TickRateMax] when the run
// starts.
type Config struct {
	PeerCount      int                `yaml:"peer_count"`
	Host           string             `yaml:"host"`
	BasePort       int                `yaml:"base_port"`
	RunDuration    Duration           `yaml:"run_duration"`
	TickRateMin    int                `yaml:"tick_rate_min"`
	TickRateMax    int                `yaml:"tick_rate_max"`
	DrawUpperBound int                `yaml:"draw_upper_bound"`
	SendTriggers   map[int]SendTarget `yaml:"send_triggers"`
	AcceptTimeout  Duration           `yaml:"accept_timeout"`
	ReadTimeout    Duration           `yaml:"read_timeout"`
	DialTimeout    Duration           `yaml:"dial_timeout"`
	LogDir         string             `yaml:"log_dir"`
	RunID          string             `yaml:"run_id"`
	MonitorAddr    string             `yaml:"monitor_addr"`
	Seed           int64              `yaml:"seed"`
}

// DefaultConfig returns the canonical simulation: three peers on loopback
// ports 5000+, ticking at 1-6 ticks/second for 60 seconds, with draw values
// 1-3 out of 1-10 triggering sends.
func DefaultConfig() *Config {
	return &Config{
		PeerCount:      3,
		Host:           "127.0.0.1",
		BasePort:       5000,
		RunDuration:    Duration(60 * time.Second),
		TickRateMin:    1,
		TickRateMax:    6,
		DrawUpperBound: 10,
		SendTriggers: map[int]SendTarget{
			1: SendFirst,
			2: SendSecond,
			3: SendAll,
		},
		AcceptTimeout: Duration(1 * time.Second),
		ReadTimeout:   Duration(1 * time.Second),
		DialTimeout:   Duration(1 * time.Second),
		LogDir:        "logs",
	}
}

// Load reads a YAML config file. Fields absent from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the simulation cannot run
// with.
func (c *Config) Validate() error {
	if c.PeerCount < 1 {
		return fmt.Errorf("peer_count must be at least 1, got %d", c.PeerCount)
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BasePort < 1 || c.BasePort+c.PeerCount > 65536 {
		return fmt.Errorf("base_port %d leaves no room for %d peers", c.BasePort, c.PeerCount)
	}
	if c.RunDuration <= 0 {
		return fmt.Errorf("run_duration must be positive, got %s", c.RunDuration.Std())
	}
	if c.TickRateMin < 1 {
		return fmt.Errorf("tick_rate_min must be at least 1, got %d", c.TickRateMin)
	}
	if c.TickRateMax < c.TickRateMin {
		return fmt.Errorf("tick_rate_max %d below tick_rate_min %d", c.TickRateMax, c.TickRateMin)
	}
	if c.DrawUpperBound < 1 {
		return fmt.Errorf("draw_upper_bound must be at least 1, got %d", c.DrawUpperBound)
	}
	for draw, target := range c.SendTriggers {
		if draw < 1 || draw > c.DrawUpperBound {
			return fmt.Errorf("send trigger %d outside draw range 1..%d", draw, c.DrawUpperBound)
		}
		switch target {
		case SendFirst, SendSecond, SendAll:
		default:
			return fmt.Errorf("unknown send target %q for trigger %d", target, draw)
		}
	}
	if c.AcceptTimeout <= 0 || c.ReadTimeout <= 0 || c.DialTimeout <= 0 {
		return fmt.Errorf("accept, read and dial timeouts must all be positive")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir cannot be empty")
	}
	return nil
}

// PeerAddr returns the listen address for a peer id: host:base_port+id.
func (c *Config) PeerAddr(id int) string {
	return fmt.Sprintf("%s:%d", c.Host, c.BasePort+id)
}

// BuildPeers converts the config into peer descriptors, drawing each peer's
// tick rate once from [TickRateMin, TickRateMax] using the provided source of
// randomness.
func (c *Config) BuildPeers(rng *rand.Rand) []registry.PeerDescriptor {
	peers := make([]registry.PeerDescriptor, 0, c.PeerCount)
	for id := 0; id < c.PeerCount; id++ {
		peers = append(peers, registry.PeerDescriptor{
			ID:       id,
			Addr:     c.PeerAddr(id),
			TickRate: c.TickRateMin + rng.Intn(c.TickRateMax-c.TickRateMin+1),
		})
	}
	return peers
}

// ParsePeers parses a comma-separated list of peers in the format:
// "0=addr0,1=addr1,2=addr2"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		idStr := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])

		if idStr == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		id, err := strconv.Atoi(idStr)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("peer ID must be a non-negative integer: %s", idStr)
		}

		peers = append(peers, Peer{
			ID:   id,
			Addr: addr,
		})
	}

	return peers, nil
}
