package config

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParsePeers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Peer
		wantErr bool
	}{
		{
			name:  "empty string",
			input: "",
			want:  []Peer{},
		},
		{
			name:  "single peer",
			input: "0=127.0.0.1:5000",
			want: []Peer{
				{ID: 0, Addr: "127.0.0.1:5000"},
			},
		},
		{
			name:  "multiple peers",
			input: "0=127.0.0.1:5000,1=127.0.0.1:5001,2=127.0.0.1:5002",
			want: []Peer{
				{ID: 0, Addr: "127.0.0.1:5000"},
				{ID: 1, Addr: "127.0.0.1:5001"},
				{ID: 2, Addr: "127.0.0.1:5002"},
			},
		},
		{
			name:  "with spaces",
			input: "0 = 127.0.0.1:5000 , 1 = 127.0.0.1:5001",
			want: []Peer{
				{ID: 0, Addr: "127.0.0.1:5000"},
				{ID: 1, Addr: "127.0.0.1:5001"},
			},
		},
		{
			name:    "invalid format - no equals",
			input:   "0:127.0.0.1:5000",
			wantErr: true,
		},
		{
			name:    "invalid format - empty ID",
			input:   "=127.0.0.1:5000",
			wantErr: true,
		},
		{
			name:    "invalid format - empty addr",
			input:   "0=",
			wantErr: true,
		},
		{
			name:    "non-numeric ID",
			input:   "vm0=127.0.0.1:5000",
			wantErr: true,
		},
		{
			name:    "negative ID",
			input:   "-1=127.0.0.1:5000",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeers(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePeers() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Errorf("ParsePeers() length = %d, want %d", len(got), len(tt.want))
				return
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParsePeers()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate, got: %v", err)
	}
	if cfg.PeerCount != 3 {
		t.Errorf("Expected 3 peers, got %d", cfg.PeerCount)
	}
	if cfg.RunDuration.Std() != 60*time.Second {
		t.Errorf("Expected 60s run, got %s", cfg.RunDuration.Std())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "zero peers",
			mutate: func(c *Config) { c.PeerCount = 0 },
		},
		{
			name:   "empty host",
			mutate: func(c *Config) { c.Host = "" },
		},
		{
			name:   "port overflow",
			mutate: func(c *Config) { c.BasePort = 65535; c.PeerCount = 3 },
		},
		{
			name:   "zero duration",
			mutate: func(c *Config) { c.RunDuration = 0 },
		},
		{
			name:   "tick rate min below one",
			mutate: func(c *Config) { c.TickRateMin = 0 },
		},
		{
			name:   "tick rate max below min",
			mutate: func(c *Config) { c.TickRateMin = 4; c.TickRateMax = 2 },
		},
		{
			name:   "trigger outside draw range",
			mutate: func(c *Config) { c.SendTriggers = map[int]SendTarget{11: SendAll} },
		},
		{
			name:   "unknown send target",
			mutate: func(c *Config) { c.SendTriggers = map[int]SendTarget{1: "everyone"} },
		},
		{
			name:   "zero accept timeout",
			mutate: func(c *Config) { c.AcceptTimeout = 0 },
		},
		{
			name:   "empty log dir",
			mutate: func(c *Config) { c.LogDir = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")

	content := `
peer_count: 5
base_port: 6000
run_duration: 10s
tick_rate_min: 2
tick_rate_max: 4
send_triggers:
  1: first
  2: all
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.PeerCount != 5 {
		t.Errorf("Expected peer_count 5, got %d", cfg.PeerCount)
	}
	if cfg.BasePort != 6000 {
		t.Errorf("Expected base_port 6000, got %d", cfg.BasePort)
	}
	if cfg.RunDuration.Std() != 10*time.Second {
		t.Errorf("Expected run_duration 10s, got %s", cfg.RunDuration.Std())
	}
	if cfg.SendTriggers[2] != SendAll {
		t.Errorf("Expected trigger 2 -> all, got %q", cfg.SendTriggers[2])
	}

	// Omitted fields keep defaults
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host, got %q", cfg.Host)
	}
	if cfg.DrawUpperBound != 10 {
		t.Errorf("Expected default draw bound 10, got %d", cfg.DrawUpperBound)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("peer_count: [not a number"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("run_duration: sixty"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid duration, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestConfig_PeerAddr(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.PeerAddr(2); got != "127.0.0.1:5002" {
		t.Errorf("PeerAddr(2) = %q, want 127.0.0.1:5002", got)
	}
}

func TestConfig_BuildPeers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeerCount = 4
	cfg.TickRateMin = 2
	cfg.TickRateMax = 5

	peers := cfg.BuildPeers(rand.New(rand.NewSource(42)))
	if len(peers) != 4 {
		t.Fatalf("Expected 4 descriptors, got %d", len(peers))
	}
	for i, p := range peers {
		if p.ID != i {
			t.Errorf("Peer %d has id %d", i, p.ID)
		}
		if p.Addr != cfg.PeerAddr(i) {
			t.Errorf("Peer %d addr = %q, want %q", i, p.Addr, cfg.PeerAddr(i))
		}
		if p.TickRate < 2 || p.TickRate > 5 {
			t.Errorf("Peer %d tick rate %d outside [2,5]", i, p.TickRate)
		}
	}
}
