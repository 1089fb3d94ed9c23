// Package config implements the CLI option store: spec §6's flag table
// plus SPEC_FULL.md §4.11/§4.10's pool-transport and audit flags, parsed
// with github.com/urfave/cli exactly like client/main.go and
// server/main.go build their flag tables, with an optional --config JSON
// file overlay via the same parseJSONConfig shape.
//
// Validate reproduces the C++ option store's numeric-range and
// mode-combination checks (spec §3.1) as ConfigError, the taxonomy member
// cmd/gapminer maps to exit code 1.
package config

import (
	"encoding/json"
	"os"

	"github.com/urfave/cli"

	"github.com/go-primegap/miner/internal/engine"
	"github.com/go-primegap/miner/internal/errs"
	"github.com/go-primegap/miner/internal/logx"
	"github.com/go-primegap/miner/std"
)

// Config is the flat, JSON-and-flag-addressable option store. Fields map
// 1:1 onto the CLI flags in cmd/gapminer's flag table; Mode and Validate
// prepare it for translation into the engine's stricter, typed Config.
type Config struct {
	SieveSize   uint64 `json:"sieve-size"`
	SievePrimes int    `json:"sieve-primes"`
	Threads     int    `json:"threads"`
	Shift       uint   `json:"shift"`

	FermatThreads int    `json:"fermat-threads"`
	CSetPath      string `json:"cset"`

	UseGPU    bool   `json:"use-gpu"`
	GPUDev    int    `json:"gpu-dev"`
	Platform  string `json:"platform"`
	WorkItems int    `json:"work-items"`
	NTests    int    `json:"n-tests"`
	QueueSize int    `json:"queue-size"`

	PoolURL          string `json:"pool-url"`
	PoolTransport    string `json:"pool-transport"` // "http" or "kcp"
	PoolTCP          bool   `json:"pool-tcp"`
	PoolObfuscate    bool   `json:"pool-obfuscate"`
	PoolKey          string `json:"pool-key"`
	PoolCrypt        string `json:"pool-crypt"`
	PoolCompress     bool   `json:"pool-compress"`
	PoolQPPCount     int    `json:"pool-qpp-count"`
	PoolSNMPLog      string `json:"pool-snmp-log"`
	PoolSNMPInterval int    `json:"pool-snmp-interval"`

	AuditDB string `json:"audit-db"`
	Log     string `json:"log"`
	Quiet   bool   `json:"quiet"`
}

// parseJSONConfig overlays path's JSON contents onto cfg, mirroring
// client/main.go's and server/main.go's --config handling: flags first,
// then the file overwrites whatever fields it sets.
func parseJSONConfig(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return &errs.ConfigError{Msg: "config: cannot open --config file: " + err.Error()}
	}
	defer file.Close()
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return &errs.ConfigError{Msg: "config: malformed --config file: " + err.Error()}
	}
	return nil
}

// Mode derives the engine mode spec §4.7 picks between from the flags
// actually set: GPU wins over Chinese when both are given (validated as
// an error below, not silently resolved), Chinese when a CRT Set path is
// present, Classical otherwise.
func (c *Config) Mode() engine.Mode {
	switch {
	case c.UseGPU:
		return engine.Hybrid
	case c.CSetPath != "":
		return engine.Chinese
	default:
		return engine.Classical
	}
}

// Validate reproduces the option store's range and combination checks.
// Called after flags and any --config overlay are applied, and again
// implicitly by engine.New's own validate(); this pass exists so
// cmd/gapminer can fail fast with a clear message before touching the
// filesystem for --cset or the GPU for --use-gpu.
func (c *Config) Validate() error {
	if c.Threads <= 0 {
		return &errs.ConfigError{Msg: "config: --threads must be positive"}
	}
	if c.UseGPU && c.CSetPath != "" {
		return &errs.ConfigError{Msg: "config: --use-gpu and --cset are mutually exclusive (GPU mode forces its own sieve size)"}
	}
	if c.UseGPU {
		if c.Platform != "" && c.Platform != "amd" && c.Platform != "nvidia" {
			return &errs.ConfigError{Msg: "config: --platform must be amd or nvidia"}
		}
		if c.WorkItems <= 0 {
			return &errs.ConfigError{Msg: "config: --work-items must be positive in GPU mode"}
		}
		if c.NTests <= 0 {
			return &errs.ConfigError{Msg: "config: --n-tests must be positive in GPU mode"}
		}
	}
	if c.CSetPath != "" && c.FermatThreads >= c.Threads {
		return &errs.ConfigError{Msg: "config: --fermat-threads must be less than --threads in Chinese mode"}
	}
	if c.FermatThreads < 0 {
		return &errs.ConfigError{Msg: "config: --fermat-threads must not be negative"}
	}
	if c.SieveSize == 0 && c.CSetPath == "" {
		return &errs.ConfigError{Msg: "config: --sieve-size must be positive outside Chinese mode"}
	}
	if c.SieveSize%2 != 0 {
		return &errs.ConfigError{Msg: "config: --sieve-size must be a multiple of 2"}
	}
	if c.SievePrimes <= 0 {
		return &errs.ConfigError{Msg: "config: --sieve-primes must be positive"}
	}
	if c.PoolTransport != "" && c.PoolTransport != "http" && c.PoolTransport != "kcp" {
		return &errs.ConfigError{Msg: "config: --pool-transport must be http or kcp"}
	}
	if c.PoolTransport == "kcp" && c.PoolKey == "" {
		return &errs.ConfigError{Msg: "config: --pool-key is required for the kcp transport"}
	}
	if c.PoolTransport == "kcp" && c.PoolObfuscate {
		warnings, err := std.ValidateQPPParams(c.PoolQPPCount, c.PoolKey)
		if err != nil {
			return &errs.ConfigError{Msg: "config: --pool-qpp-count: " + err.Error()}
		}
		for _, w := range warnings {
			logx.Printf("config: %s", w)
		}
	}
	if c.QueueSize < 0 {
		return &errs.ConfigError{Msg: "config: --queue-size must not be negative"}
	}
	return nil
}

// Flags is cmd/gapminer's flag table, built the same way client/main.go
// assembles myApp.Flags: one cli.Flag literal per option, defaults drawn
// from spec §6.
func Flags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{Name: "sieve-size", Value: 33554432, Usage: "bit sieve size (Classical mode; ignored under --cset)"},
		cli.IntFlag{Name: "sieve-primes", Value: 900000, Usage: "size of the small-prime table"},
		cli.IntFlag{Name: "threads", Value: 1, Usage: "worker thread count"},
		cli.IntFlag{Name: "shift", Value: 25, Usage: "header shift; forced to 64 under --use-gpu"},
		cli.IntFlag{Name: "fermat-threads", Value: 1, Usage: "dedicated Fermat-drain threads (Chinese mode)"},
		cli.StringFlag{Name: "cset", Usage: "CRT Set file; enables Chinese mode"},
		cli.BoolFlag{Name: "use-gpu", Usage: "enable the GPU Fermat path (Hybrid mode)"},
		cli.IntFlag{Name: "gpu-dev", Usage: "OpenCL device index"},
		cli.StringFlag{Name: "platform", Value: "amd", Usage: "amd or nvidia"},
		cli.IntFlag{Name: "work-items", Value: 8192, Usage: "GPU work-list item count"},
		cli.IntFlag{Name: "n-tests", Value: 4, Usage: "Fermat tests dispatched per GPU batch slot"},
		cli.IntFlag{Name: "queue-size", Value: 4096, Usage: "share-submission queue depth (0 selects 64)"},
		cli.StringFlag{Name: "pool-url", Usage: "pool endpoint (http URL or kcp host:port)"},
		cli.StringFlag{Name: "pool-transport", Value: "http", Usage: "http or kcp"},
		cli.BoolFlag{Name: "pool-tcp", Usage: "dial the kcp transport over tcpraw-emulated TCP"},
		cli.BoolFlag{Name: "pool-obfuscate", Usage: "wrap the kcp transport in a Quantum Permutation Pad"},
		cli.StringFlag{Name: "pool-key", Usage: "pre-shared pool key (kcp transport)"},
		cli.StringFlag{Name: "pool-crypt", Value: "aes-128", Usage: "kcp transport block cipher (see std.SelectBlockCrypt)"},
		cli.BoolFlag{Name: "pool-compress", Usage: "snappy-compress the pool transport (kcp streams or http bodies)"},
		cli.IntFlag{Name: "pool-qpp-count", Value: 61, Usage: "prime number of Quantum Permutation Pads to use under --pool-obfuscate: more pads is more secure, each pad costs 256 bytes"},
		cli.StringFlag{Name: "pool-snmp-log", Usage: "kcp transport SNMP CSV log path (strftime-formatted, kcp transport only); disabled when unset"},
		cli.IntFlag{Name: "pool-snmp-interval", Value: 60, Usage: "seconds between SNMP CSV log writes"},
		cli.StringFlag{Name: "audit-db", Usage: "bbolt share-audit database path; disabled when unset"},
		cli.StringFlag{Name: "log", Usage: "log file path; default stderr"},
		cli.BoolFlag{Name: "quiet", Usage: "suppress per-share log lines"},
		cli.StringFlag{Name: "config", Usage: "JSON config file, overrides flags from the shell"},
	}
}

// FromCLIContext populates a Config from c, applying the --config JSON
// overlay (if given) after the flags, matching client/main.go's order of
// operations, then validates it.
func FromCLIContext(c *cli.Context) (*Config, error) {
	cfg := &Config{
		SieveSize:        uint64(c.Int("sieve-size")),
		SievePrimes:      c.Int("sieve-primes"),
		Threads:          c.Int("threads"),
		Shift:            uint(c.Int("shift")),
		FermatThreads:    c.Int("fermat-threads"),
		CSetPath:         c.String("cset"),
		UseGPU:           c.Bool("use-gpu"),
		GPUDev:           c.Int("gpu-dev"),
		Platform:         c.String("platform"),
		WorkItems:        c.Int("work-items"),
		NTests:           c.Int("n-tests"),
		QueueSize:        c.Int("queue-size"),
		PoolURL:          c.String("pool-url"),
		PoolTransport:    c.String("pool-transport"),
		PoolTCP:          c.Bool("pool-tcp"),
		PoolObfuscate:    c.Bool("pool-obfuscate"),
		PoolKey:          c.String("pool-key"),
		PoolCrypt:        c.String("pool-crypt"),
		PoolCompress:     c.Bool("pool-compress"),
		PoolQPPCount:     c.Int("pool-qpp-count"),
		PoolSNMPLog:      c.String("pool-snmp-log"),
		PoolSNMPInterval: c.Int("pool-snmp-interval"),
		AuditDB:          c.String("audit-db"),
		Log:              c.String("log"),
		Quiet:            c.Bool("quiet"),
	}
	if path := c.String("config"); path != "" {
		if err := parseJSONConfig(cfg, path); err != nil {
			return nil, err
		}
	}
	if cfg.UseGPU {
		// spec §6: shift is forced to 64 under GPU mode regardless of
		// the flag/file value, so 320-bit candidates divide evenly.
		cfg.Shift = 64
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
