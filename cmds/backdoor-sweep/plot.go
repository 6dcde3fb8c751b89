package main

import (
	"fmt"
	"os"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
	"github.com/kiteco/backdoor-sweep/internal/report"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
)

var plotCmd = cmdline.Command{
	Name:     "plot",
	Synopsis: "chart mean error rates against trigger angle",
	Args: &plotArgs{
		StoreArgs: StoreArgs{Ext: resultstore.DefaultExt},
		Dir:       "results",
		Out:       "error-rates.png",
	},
}

type plotArgs struct {
	StoreArgs
	Dir string `arg:"positional" help:"result directory or s3:// URI"`
	Out string `arg:"--out" help:"PNG file to write"`
}

func (args *plotArgs) Handle() error {
	sums, err := loadSummaries(args.StoreArgs, args.Dir)
	if err != nil {
		return err
	}
	if err := writeFile(args.Out, func(f *os.File) error {
		return report.RenderErrorRates(f, sums)
	}); err != nil {
		return err
	}
	fmt.Println(args.Out)
	return nil
}
