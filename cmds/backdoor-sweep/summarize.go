package main

import (
	"context"
	"os"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/report"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
)

var summarizeCmd = cmdline.Command{
	Name:     "summarize",
	Synopsis: "print per-cell statistics of persisted results",
	Args: &summarizeArgs{
		StoreArgs: StoreArgs{Ext: resultstore.DefaultExt},
		Dir:       "results",
	},
}

type summarizeArgs struct {
	StoreArgs
	Dir string `arg:"positional" help:"result directory or s3:// URI"`
	CSV string `arg:"--csv" help:"also write the full summary to this CSV file"`
}

func (args *summarizeArgs) Handle() error {
	sums, err := loadSummaries(args.StoreArgs, args.Dir)
	if err != nil {
		return err
	}
	if err := report.WriteTable(os.Stdout, sums); err != nil {
		return err
	}
	if args.CSV == "" {
		return nil
	}
	return writeFile(args.CSV, func(f *os.File) error {
		return report.WriteCSV(f, sums)
	})
}

func loadSummaries(sa StoreArgs, dir string) ([]report.CellSummary, error) {
	ctx := context.Background()
	store, err := sa.open(ctx, dir, nil)
	if err != nil {
		return nil, err
	}
	sums, err := report.Summarize(ctx, store)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return nil, errors.Errorf("no %s results in %s", sa.Ext, dir)
	}
	return sums, nil
}

func writeFile(path string, write func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, f.Close)
	return write(f)
}
