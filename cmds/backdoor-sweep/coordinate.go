package main

import (
	"fmt"
	"time"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
	"github.com/kiteco/backdoor-sweep/internal/config"
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
	"github.com/kiteco/backdoor-sweep/internal/shard"
)

var coordinateCmd = cmdline.Command{
	Name:     "coordinate",
	Synopsis: "run the grid sweep on running shards and persist the gathered results",
	Args: &coordinateArgs{
		StoreArgs: StoreArgs{Ext: resultstore.DefaultExt},
		Out:       "results",
		Poll:      shard.DefaultPollInterval,
	},
}

type coordinateArgs struct {
	StoreArgs
	Endpoints []string      `arg:"positional,required" help:"shard host:port, in rank order"`
	Config    string        `arg:"--config" help:"YAML file overriding the experiment constants"`
	Out       string        `arg:"--out" help:"result directory or s3:// URI"`
	Ledger    string        `arg:"--ledger" help:"run ledger directory (optional)"`
	Poll      time.Duration `arg:"--poll" help:"shard polling interval"`
	Debug     bool          `arg:"--debug"`
}

func (args *coordinateArgs) Handle() (err error) {
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
	coord, err := shard.NewCoordinator(cfg, sw, shard.CoordinatorOptions{
		Endpoints:    args.Endpoints,
		PollInterval: args.Poll,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	outputs, err := coord.Run(ctx)
	for _, out := range outputs {
		fmt.Println(out.Path)
	}
	return err
}
