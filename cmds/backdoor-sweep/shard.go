package main

import (
	"fmt"
	"net/http"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
	"github.com/kiteco/backdoor-sweep/internal/shard"
)

var shardCmd = cmdline.Command{
	Name:     "shard",
	Synopsis: "serve one worker of a distributed sweep over HTTP",
	Args: &shardArgs{
		Port: 9500,
	},
}

type shardArgs struct {
	Port  int  `arg:"--port" help:"port to listen on"`
	Debug bool `arg:"--debug" help:"log every trial and request"`
}

func (args *shardArgs) Handle() error {
	logger := newLogger(args.Debug)
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	srv := shard.NewServer(ctx, logger)
	err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", args.Port))
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
