package shard

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kiteco/backdoor-sweep/internal/config"
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/kitelog"
	"github.com/kiteco/backdoor-sweep/internal/sweep"
)

// DefaultPollInterval is how often the coordinator asks shards for pending cells.
const DefaultPollInterval = time.Second

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Endpoints lists the shards; a shard's rank is its position here.
	Endpoints    []string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Coordinator is the aggregator of a sharded sweep.
type Coordinator struct {
	cfg     config.Config
	sweep   *sweep.Sweep
	clients []client
	poll    time.Duration
	logger  *zap.Logger
}

// NewCoordinator drives sw over the shards in opts. cfg must be the configuration sw
// was built from; it is sent to every shard.
func NewCoordinator(cfg config.Config, sw *sweep.Sweep, opts CoordinatorOptions) (*Coordinator, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("no shard endpoints")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	clients := make([]client, 0, len(opts.Endpoints))
	for _, ep := range opts.Endpoints {
		clients = append(clients, newClient(ep, opts.HTTPClient))
	}
	return &Coordinator{
		cfg:     cfg,
		sweep:   sw,
		clients: clients,
		poll:    opts.PollInterval,
		logger:  kitelog.OrNop(opts.Logger),
	}, nil
}

// Run starts every shard, then gathers each cell in grid order as soon as all shards
// have produced it. A shard error fails the run; cells persisted before it remain.
func (c *Coordinator) Run(ctx context.Context) ([]sweep.CellOutput, error) {
	run, err := c.sweep.Begin(len(c.clients))
	if err != nil {
		return nil, err
	}
	err = c.run(ctx, run)
	return run.Outputs(), run.End(err)
}

func (c *Coordinator) run(ctx context.Context, run *sweep.Run) error {
	for i, cl := range c.clients {
		req := StartRequest{Shard: i, TotalShards: len(c.clients), Config: c.cfg}
		if err := cl.Start(ctx, req); err != nil {
			return errors.Wrapf(err, "error starting shard %d at %s", i, cl.endpoint)
		}
	}

	for _, cell := range c.sweep.Cells() {
		var durations kitelog.Durations
		run.StartCell(cell)
		start := time.Now()
		batches := make([]sweep.Batch, len(c.clients))
		for i, cl := range c.clients {
			resp, err := c.waitCell(ctx, i, cl, cell.Index)
			if err != nil {
				return err
			}
			batches[i] = sweep.Batch{Rank: i, Cell: resp.Cell, Rows: resp.Rows}
		}
		durations.Since("gather", start)

		start = time.Now()
		out, err := run.Aggregate(ctx, cell, batches)
		if err != nil {
			return err
		}
		durations.Since("persist", start)
		durations.Flush(c.logger, "cell persisted",
			zap.String("path", out.Path),
			zap.Int("rows", out.Rows))
	}
	return nil
}

func (c *Coordinator) waitCell(ctx context.Context, shard int, cl client, cell int) (CellResponse, error) {
	for {
		resp, err := cl.Cell(ctx, cell)
		switch {
		case err == nil:
			if resp.Shard != shard || resp.Cell != cell {
				return CellResponse{}, errors.Errorf("shard %d returned batch of shard %d for cell %d", shard, resp.Shard, resp.Cell)
			}
			return resp, nil
		case errors.Cause(err) != errNotReady:
			return CellResponse{}, errors.Wrapf(err, "error fetching cell %d from shard %d", cell, shard)
		}

		status, err := cl.Status(ctx)
		if err != nil {
			return CellResponse{}, errors.Wrapf(err, "error fetching status of shard %d", shard)
		}
		switch status.State {
		case StateError:
			return CellResponse{}, errors.Errorf("shard %d failed: %s", shard, status.Err)
		case StateWaiting:
			return CellResponse{}, errors.Errorf("shard %d was restarted", shard)
		}

		select {
		case <-ctx.Done():
			return CellResponse{}, ctx.Err()
		case <-time.After(c.poll):
		}
	}
}
