package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
	"github.com/kiteco/backdoor-sweep/internal/kitelog"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
	"github.com/kiteco/backdoor-sweep/internal/rundb"
)

func main() {
	cmdline.MustDispatch(
		sweepCmd,
		shardCmd,
		coordinateCmd,
		summarizeCmd,
		plotCmd,
		plotDataCmd,
		statusCmd,
	)
}

// StoreArgs locate a result directory.
type StoreArgs struct {
	Ext    string `arg:"--ext" help:"result encoding: .msgp, .json or .gob, optionally followed by .gz or .sz"`
	Region string `arg:"--region" help:"AWS region of an s3:// result directory (discovered if empty)"`
}

func (a StoreArgs) open(ctx context.Context, dir string, logger *zap.Logger) (resultstore.Store, error) {
	return resultstore.Open(ctx, dir, resultstore.Options{Ext: a.Ext, Region: a.Region, Logger: logger})
}

func newLogger(debug bool) *zap.Logger {
	return kitelog.New(kitelog.Options{Debug: debug})
}

func openLedger(path string) (*rundb.DB, error) {
	if path == "" {
		return nil, nil
	}
	return rundb.Open(path)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
