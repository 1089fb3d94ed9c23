package config

import (
	"github.com/urfave/cli"

	"github.com/go-primegap/miner/internal/crtopt"
)

// CtrFlags is cmd/gapctr's flag table (spec §4.3/§6.1's offline optimizer
// surface): --n-primes, --merit, --max-gready, --ctr-strength, --ctr-file,
// --progress.
func CtrFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{Name: "n-primes", Value: 64, Usage: "prime count to fold into the CRT Set"},
		cli.Float64Flag{Name: "merit", Value: 20, Usage: "target merit to size the bitmap for"},
		cli.IntFlag{Name: "max-gready", Value: 8, Usage: "greedy-phase primorial budget"},
		cli.IntFlag{Name: "ctr-strength", Value: 16, Usage: "upper bound for the per-individual random greedy budget"},
		cli.StringFlag{Name: "ctr-file", Value: "cset.txt", Usage: "output CRT Set path"},
		cli.BoolFlag{Name: "progress", Usage: "show a progress bar over the evolutionary generations"},
	}
}

// CtrConfig augments crtopt.Config with the output path and progress flag
// that crtopt itself has no business knowing about.
type CtrConfig struct {
	crtopt.Config
	CtrFile  string
	Progress bool
}

// CtrConfigFromCLIContext builds a CtrConfig from cmd/gapctr's flags.
func CtrConfigFromCLIContext(c *cli.Context) *CtrConfig {
	return &CtrConfig{
		Config: crtopt.Config{
			NPrimes:     c.Int("n-primes"),
			Merit:       c.Float64("merit"),
			MaxGready:   c.Int("max-gready"),
			CtrStrength: c.Int("ctr-strength"),
		},
		CtrFile:  c.String("ctr-file"),
		Progress: c.Bool("progress"),
	}
}
