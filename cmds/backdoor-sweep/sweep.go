package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
	"github.com/kiteco/backdoor-sweep/internal/config"
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
	"github.com/kiteco/backdoor-sweep/internal/sweep"
)

var sweepCmd = cmdline.Command{
	Name:     "sweep",
	Synopsis: "run the grid sweep on an in-process worker pool",
	Args: &sweepArgs{
		StoreArgs: StoreArgs{Ext: resultstore.DefaultExt},
		Out:       "results",
		Workers:   4,
	},
}

type sweepArgs struct {
	StoreArgs
	Config  string `arg:"--config" help:"YAML file overriding the experiment constants"`
	Out     string `arg:"--out" help:"result directory or s3:// URI"`
	Workers int    `arg:"--workers" help:"number of workers; each runs total/workers replicates per cell"`
	Ledger  string `arg:"--ledger" help:"run ledger directory (optional)"`
	Debug   bool   `arg:"--debug" help:"log every trial"`
}

func (args *sweepArgs) Validate() error {
	if args.Workers < 1 {
		return errors.Errorf("need at least one worker, got %d", args.Workers)
	}
	return nil
}

func (args *sweepArgs) Handle() (err error) {
	logger := newLogger(args.Debug)
	defer logger.Sync()

	cfg, err := config.Load(args.Config)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	store, err := args.open(ctx, args.Out, logger)
	if err != nil {
		return err
	}
	ledger, err := openLedger(args.Ledger)
	if err != nil {
		return err
	}
	if ledger != nil {
		defer errors.Defer(&err, ledger.Close)
	}

	sw, err := cfg.Sweep(store, ledger, logger)
	if err != nil {
		return err
	}

	outputs, err := sw.Run(ctx, args.Workers)
	if err != nil {
		return err
	}

	logger.Info("done",
		zap.Int("cells", len(outputs)),
		zap.Int("rows_per_cell", sweep.RealizedTotal(cfg.Total, args.Workers)))
	for _, out := range outputs {
		fmt.Println(out.Path)
	}
	return nil
}
