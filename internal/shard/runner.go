package shard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kiteco/backdoor-sweep/internal/sweep"
)

// runner computes one shard's batches for every cell, in grid order.
type runner struct {
	sweep  *sweep.Sweep
	shard  int
	total  int
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	m       sync.Mutex
	state   RunState
	err     error
	batches map[int]sweep.Batch
}

func newRunner(s *sweep.Sweep, shard, total int, logger *zap.Logger) *runner {
	return &runner{
		sweep:   s,
		shard:   shard,
		total:   total,
		logger:  logger,
		state:   StateWaiting,
		batches: make(map[int]sweep.Batch),
		done:    make(chan struct{}),
	}
}

func (r *runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.setState(StateRunning, nil)

	go func() {
		defer close(r.done)
		for _, cell := range r.sweep.Cells() {
			b, err := r.sweep.LocalBatch(ctx, r.shard, r.total, cell)
			if err != nil {
				r.logger.Error("shard failed", zap.Int("shard", r.shard), zap.Int("cell", cell.Index), zap.Error(err))
				r.setState(StateError, err)
				return
			}

			r.m.Lock()
			r.batches[cell.Index] = b
			r.m.Unlock()
			r.logger.Info("cell ready",
				zap.Int("shard", r.shard),
				zap.Int("cell", cell.Index),
				zap.Int("rows", len(b.Rows)))
		}
		r.setState(StateFinished, nil)
	}()
}

// Stop cancels the computation and waits for it to exit.
func (r *runner) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *runner) setState(state RunState, err error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.state = state
	r.err = err
}

func (r *runner) Status() StatusResponse {
	r.m.Lock()
	defer r.m.Unlock()
	resp := StatusResponse{State: r.state, Completed: len(r.batches)}
	if r.err != nil {
		resp.Err = r.err.Error()
	}
	return resp
}

func (r *runner) Batch(cell int) (sweep.Batch, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	b, ok := r.batches[cell]
	return b, ok
}
