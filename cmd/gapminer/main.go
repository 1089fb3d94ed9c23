// Command gapminer is the prime-gap proof-of-work miner of spec §4.7: it
// loads flags (and an optional --config JSON overlay) via internal/config,
// builds a worksource.Source for the configured pool transport, wires it
// into an internal/engine.Engine and an internal/shareproc.Processor, and
// runs both until an interrupt or a fatal error.
//
// Grounded on client/main.go's cli.App construction, flag-table-to-Config
// population, and --log redirection, and on server/main.go's checkError
// exit-on-error style, generalized here into a taxonomy-driven exit code
// (internal/errs) rather than a single catch-all exit(-1).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/go-primegap/miner/internal/audit"
	"github.com/go-primegap/miner/internal/config"
	"github.com/go-primegap/miner/internal/crtset"
	"github.com/go-primegap/miner/internal/engine"
	"github.com/go-primegap/miner/internal/errs"
	"github.com/go-primegap/miner/internal/gpufermat"
	"github.com/go-primegap/miner/internal/logx"
	"github.com/go-primegap/miner/internal/pow"
	"github.com/go-primegap/miner/internal/shareproc"
	"github.com/go-primegap/miner/internal/worksource"
	"github.com/go-primegap/miner/std"
)

// VERSION is injected by buildflags, matching client/main.go and
// server/main.go's own self-build versioning.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "gapminer"
	app.Usage = "prime-gap proof-of-work miner"
	app.Version = VERSION
	app.Flags = config.Flags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Printf("%+v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the errs taxonomy to a process exit status, so a config
// mistake (1), a GPU init failure (2), or an unreadable CRT Set file (1)
// are distinguishable from the shell without parsing log text.
func exitCode(err error) int {
	switch err.(type) {
	case *errs.ConfigError:
		return 1
	case *errs.GPUInitError:
		return 2
	case *errs.FileFormatError:
		return 1
	case *errs.InvariantViolation:
		return 1
	default:
		return 1
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromCLIContext(c)
	if err != nil {
		return err
	}
	if cfg.Log != "" {
		if err := logx.SetOutput(cfg.Log); err != nil {
			return err
		}
		defer logx.Close()
	}

	source, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	if cfg.PoolTransport == "kcp" && cfg.PoolSNMPLog != "" {
		go std.SnmpLogger(cfg.PoolSNMPLog, cfg.PoolSNMPInterval)
	}

	var auditLog *audit.Log
	if cfg.AuditDB != "" {
		auditLog, err = audit.Open(cfg.AuditDB)
		if err != nil {
			return err
		}
		defer auditLog.Close()
	}

	processor := shareproc.New(source, cfg.QueueSize)
	var sink engine.ShareSink = processor
	if !cfg.Quiet {
		sink = &loggingSink{ShareSink: sink}
	}
	if auditLog != nil {
		sink = &auditingSink{ShareSink: sink, log: auditLog}
	}

	engineCfg, err := buildEngineConfig(cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(engineCfg, sink, source)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down on signal")
		cancel()
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- processor.Run(ctx) }()
	go func() { errCh <- eng.Run(ctx) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if e := <-errCh; e != nil && firstErr == nil {
			firstErr = e
		}
	}
	processor.Stop()
	return firstErr
}

// buildSource constructs the worksource.Source (and shareproc.Submitter)
// matching --pool-transport, mirroring client/main.go's createConn dial
// setup but deferring the actual dial to the source's own lazy connect.
func buildSource(cfg *config.Config) (interface {
	engine.Source
	shareproc.Submitter
}, error) {
	switch cfg.PoolTransport {
	case "", "http":
		return worksource.NewHTTPSource(cfg.PoolURL, cfg.PoolCompress), nil
	case "kcp":
		return worksource.NewKCPSource(worksource.KCPConfig{
			RemoteAddr:  cfg.PoolURL,
			Key:         cfg.PoolKey,
			DataShard:   10,
			ParityShard: 3,
			UseTCP:      cfg.PoolTCP,
			Obfuscate:   cfg.PoolObfuscate,
			QPPCount:    cfg.PoolQPPCount,
			Crypt:       cfg.PoolCrypt,
			Compress:    cfg.PoolCompress,
		})
	default:
		return nil, &errs.ConfigError{Msg: "gapminer: unknown pool-transport " + cfg.PoolTransport}
	}
}

// buildEngineConfig translates the flat option store into engine's typed
// Config, loading a CRT Set (Chinese/Hybrid mode) or a GPU runner (Hybrid
// mode) as required.
func buildEngineConfig(cfg *config.Config) (engine.Config, error) {
	ec := engine.Config{
		Threads:         cfg.Threads,
		FermatThreads:   cfg.FermatThreads,
		Mode:            cfg.Mode(),
		Shift:           cfg.Shift,
		SieveSize:       cfg.SieveSize,
		TablePrimes:     cfg.SievePrimes,
		GPUBatchSize:    cfg.WorkItems,
		GPUTestsPerItem: cfg.NTests,
		RefreshInterval: 180 * time.Second,
		MetricsInterval: 5 * time.Second,
	}

	if cfg.Mode() == engine.Chinese || cfg.Mode() == engine.Hybrid {
		if cfg.CSetPath != "" {
			set, err := crtset.Load(cfg.CSetPath)
			if err != nil {
				return ec, err
			}
			ec.CRTSet = set
		}
	}

	if cfg.Mode() == engine.Hybrid {
		runner, err := gpufermat.NewGPURunner(cfg.Platform, cfg.GPUDev)
		if err != nil {
			return ec, err
		}
		ec.GPURunner = runner
	}

	return ec, nil
}

// loggingSink decorates a ShareSink with the per-share log line spec §6's
// --quiet flag suppresses, matching client/main.go's logln-gated-on-quiet
// pattern.
type loggingSink struct {
	engine.ShareSink
}

func (l *loggingSink) Process(p *pow.PoW) (stale bool) {
	stale = l.ShareSink.Process(p)
	if stale {
		log.Printf("share stale: nonce=%d merit=%.2f", p.Nonce, pow.DecodeFP48(p.Difficulty))
	} else {
		log.Printf("share found: nonce=%d merit=%.2f", p.Nonce, pow.DecodeFP48(p.Difficulty))
	}
	return stale
}

// auditingSink decorates a ShareSink so every Process call is also
// durably recorded in the optional --audit-db, without engine or
// shareproc knowing internal/audit exists (same narrow-interface
// layering as ShareSink/Submitter themselves).
type auditingSink struct {
	engine.ShareSink
	log *audit.Log
}

func (a *auditingSink) Process(p *pow.PoW) (stale bool) {
	stale = a.ShareSink.Process(p)
	rec := audit.Record{
		Time:     time.Now(),
		Merit:    pow.DecodeFP48(p.Difficulty),
		Accepted: !stale,
		Stale:    stale,
	}
	if err := a.log.Record(p.Hash, p.Nonce, rec); err != nil {
		log.Printf("audit: %v", err)
	}
	return stale
}
