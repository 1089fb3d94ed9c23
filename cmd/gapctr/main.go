// Command gapctr is the offline CRT Set optimizer of spec §4.3: it runs
// internal/crtopt's greedy-seeded evolutionary search and writes the
// resulting CRT Set to --ctr-file for cmd/gapminer's --cset flag to load.
//
// Grounded on client/main.go's cli.App construction and flag population
// style (mirrored here via internal/config.CtrFlags/CtrConfigFromCLIContext),
// and on guiperry-HASHER's ProcessDocuments for the mpb progress bar shape
// (one bar, prepended name/percentage, appended ETA-on-complete).
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/go-primegap/miner/internal/config"
	"github.com/go-primegap/miner/internal/crtopt"
)

var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "gapctr"
	app.Usage = "offline CRT Set optimizer"
	app.Version = VERSION
	app.Flags = config.CtrFlags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Printf("%+v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.CtrConfigFromCLIContext(c)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var onGen func(gen int, bestCost uint64)
	var bar *mpb.Progress
	var progressBar *mpb.Bar
	maxGen := cfg.MaxGenerations
	if maxGen <= 0 {
		maxGen = 2000 // mirrors crtopt's own defaultMaxGenerations fallback
	}
	if cfg.Progress {
		bar = mpb.New(mpb.WithWidth(80))
		progressBar = bar.AddBar(int64(maxGen),
			mpb.PrependDecorators(
				decor.Name("optimizing CRT Set: "),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
			),
		)
		last := 0
		onGen = func(gen int, bestCost uint64) {
			progressBar.IncrBy(gen - last)
			last = gen
		}
	}

	set, err := crtopt.RunWithProgress(cfg.Config, rng, onGen)
	if err != nil {
		return err
	}
	if bar != nil {
		// The search can stop early on stagnation, and onGen reports
		// zero-based generation indices, so complete the bar explicitly.
		progressBar.SetCurrent(int64(maxGen))
		bar.Wait()
	}

	if err := set.Save(cfg.CtrFile); err != nil {
		return err
	}

	fmt.Printf("wrote %s: n_primes=%d size=%d n_candidates=%d\n", cfg.CtrFile, set.NPrimes, set.Size, set.NCandidates)
	return nil
}
