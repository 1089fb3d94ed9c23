package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-primegap/miner/internal/engine"
)

func baseConfig() *Config {
	return &Config{
		Threads:     4,
		SieveSize:   1024,
		SievePrimes: 100,
	}
}

func TestValidateAcceptsClassicalDefaults(t *testing.T) {
	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsNonPositiveThreads(t *testing.T) {
	cfg := baseConfig()
	cfg.Threads = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for zero threads")
	}
}

func TestValidateRejectsGPUAndCSetTogether(t *testing.T) {
	cfg := baseConfig()
	cfg.UseGPU = true
	cfg.CSetPath = "cset.txt"
	cfg.WorkItems = 1
	cfg.NTests = 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for --use-gpu combined with --cset")
	}
}

func TestValidateRequiresFermatThreadsLessThanThreadsInChineseMode(t *testing.T) {
	cfg := baseConfig()
	cfg.CSetPath = "cset.txt"
	cfg.SieveSize = 0
	cfg.FermatThreads = cfg.Threads
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error when fermat-threads >= threads in Chinese mode")
	}
}

func TestValidateRequiresPoolKeyForKCPTransport(t *testing.T) {
	cfg := baseConfig()
	cfg.PoolTransport = "kcp"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for kcp transport with no pool key")
	}
}

func TestValidateRejectsUnknownPoolTransport(t *testing.T) {
	cfg := baseConfig()
	cfg.PoolTransport = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an unrecognized pool transport")
	}
}

func TestModeSelection(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want engine.Mode
	}{
		{"classical", Config{}, engine.Classical},
		{"chinese", Config{CSetPath: "cset.txt"}, engine.Chinese},
		{"hybrid takes priority", Config{CSetPath: "cset.txt", UseGPU: true}, engine.Hybrid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Mode(); got != tc.want {
				t.Fatalf("Mode() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseJSONConfigOverlaysFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"threads":8,"pool-url":"http://pool.example/"}`), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg := baseConfig()
	if err := parseJSONConfig(cfg, path); err != nil {
		t.Fatalf("parseJSONConfig: %v", err)
	}
	if cfg.Threads != 8 || cfg.PoolURL != "http://pool.example/" {
		t.Fatalf("unexpected overlay result: %+v", cfg)
	}
}

func TestParseJSONConfigMissingFile(t *testing.T) {
	cfg := baseConfig()
	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := parseJSONConfig(cfg, missing); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
