package main

import (
	"fmt"
	"os"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
	"github.com/kiteco/backdoor-sweep/internal/config"
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/mixture"
	"github.com/kiteco/backdoor-sweep/internal/report"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
	"github.com/kiteco/backdoor-sweep/internal/sweep"
)

var plotDataCmd = cmdline.Command{
	Name:     "plot-data",
	Synopsis: "draw the first poisoned training set rank 0 uses for a grid cell",
	Args: &plotDataArgs{
		Length:       3,
		AngleDegrees: 90,
	},
}

type plotDataArgs struct {
	Config       string  `arg:"--config" help:"YAML file overriding the experiment constants"`
	Length       float64 `arg:"--length" help:"trigger length of the cell"`
	AngleDegrees int     `arg:"--angle" help:"trigger angle of the cell, in whole degrees"`
	Out          string  `arg:"--out" help:"PNG file to write (default: <cell>.png)"`
}

func (args *plotDataArgs) Handle() error {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return err
	}

	want := resultstore.Key{Length: args.Length, AngleDegrees: args.AngleDegrees}
	var (
		cell  sweep.Cell
		found bool
	)
	for _, c := range cfg.Grid().Cells() {
		if c.Key() == want {
			cell, found = c, true
			break
		}
	}
	if !found {
		return errors.Errorf("%s is not a cell of the configured grid", want.Name())
	}

	// the same draws the first trial of rank 0 makes
	rng := sweep.NewRNG(cfg.Seed, 0, cell.Index)
	clean, err := mixture.GenerateClean(rng, cfg.MixtureSpec())
	if err != nil {
		return err
	}
	poisoned, infected, err := mixture.Poison(rng, clean, mixture.PoisonSpec{
		Length: cell.Length,
		Angle:  cell.Angle,
		Rho:    cfg.Rho,
	})
	if err != nil {
		return err
	}

	out := args.Out
	if out == "" {
		out = want.Name() + ".png"
	}
	title := fmt.Sprintf("length %v, angle %d°", cell.Length, want.AngleDegrees)
	if err := writeFile(out, func(f *os.File) error {
		return report.RenderDataset(f, title, poisoned, infected)
	}); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
