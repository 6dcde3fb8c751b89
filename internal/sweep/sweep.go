// Package sweep runs the Monte-Carlo grid: every worker runs its share of replicates for
// a cell, the root gathers the batches, concatenates them in rank order and persists one
// result per cell.
package sweep

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kiteco/backdoor-sweep/internal/classify"
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/experiment"
	"github.com/kiteco/backdoor-sweep/internal/kitelog"
	"github.com/kiteco/backdoor-sweep/internal/mixture"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
	"github.com/kiteco/backdoor-sweep/internal/rundb"
)

// DefaultTotal is the replicate target per cell.
const DefaultTotal = 20

// Options configures a Sweep.
type Options struct {
	Grid    Grid
	Mixture mixture.Spec
	Rho     float64
	Total   int
	Seed    uint64

	// Runner defaults to the local-linear estimator with cross-validated bandwidths.
	Runner *experiment.Runner
	// Store receives one record per cell. Only the aggregator writes, so workers that
	// never aggregate may leave it nil.
	Store resultstore.Store
	// Ledger is optional.
	Ledger *rundb.DB
	Logger *zap.Logger
}

// Sweep holds the fixed configuration of a grid sweep.
type Sweep struct {
	opts   Options
	runner experiment.Runner
	logger *zap.Logger
}

// New validates opts.
func New(opts Options) (*Sweep, error) {
	if err := opts.Grid.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Mixture.Validate(); err != nil {
		return nil, err
	}
	if _, err := mixture.NewGaussian(opts.Mixture.M1, opts.Mixture.Sigma); err != nil {
		return nil, err
	}
	if opts.Total < 0 {
		return nil, errors.InvalidSpec("total", "must be non-negative, got %d", opts.Total)
	}
	for _, c := range opts.Grid.Cells() {
		if err := (mixture.PoisonSpec{Length: c.Length, Angle: c.Angle, Rho: opts.Rho}).Validate(); err != nil {
			return nil, err
		}
	}

	runner := experiment.NewRunner(classify.DefaultAdapter(), experiment.DefaultTestSize)
	if opts.Runner != nil {
		runner = *opts.Runner
	}
	return &Sweep{opts: opts, runner: runner, logger: kitelog.OrNop(opts.Logger)}, nil
}

// Cells enumerates the sweep's grid.
func (s *Sweep) Cells() []Cell {
	return s.opts.Grid.Cells()
}

// Params is the trial configuration of cell.
func (s *Sweep) Params(cell Cell) experiment.Params {
	return experiment.Params{
		Mixture: s.opts.Mixture,
		Poison:  mixture.PoisonSpec{Length: cell.Length, Angle: cell.Angle, Rho: s.opts.Rho},
	}
}

// LocalBatch runs rank's share of the replicates of cell, in call order. The first
// failing trial aborts the batch.
func (s *Sweep) LocalBatch(ctx context.Context, rank, workers int, cell Cell) (Batch, error) {
	nrep := ReplicatesPerWorker(s.opts.Total, workers)
	rc := &experiment.RunContext{
		Rank:    rank,
		Workers: workers,
		RNG:     NewRNG(s.opts.Seed, rank, cell.Index),
		Logger:  s.logger,
	}
	params := s.Params(cell)

	b := Batch{Rank: rank, Cell: cell.Index, Rows: make([][3]float64, 0, nrep)}
	for i := 0; i < nrep; i++ {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		start := time.Now()
		res, err := s.runner.Run(rc, params)
		trialDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			trialsTotal.WithLabelValues("error").Inc()
			return Batch{}, errors.Wrapf(err, "rank %d: trial %d of %s", rank, i, cell.Key().Name())
		}
		trialsTotal.WithLabelValues("ok").Inc()
		b.Rows = append(b.Rows, res.Row())
	}
	return b, nil
}

// CellOutput describes one persisted cell.
type CellOutput struct {
	Cell Cell
	Path string
	Rows int
}

// Run is one invocation of the sweep; the aggregator records its cells here.
type Run struct {
	ID      string
	sweep   *Sweep
	workers int

	m        sync.Mutex
	outputs  []CellOutput
	inflight *Cell
	started  time.Time
}

// Begin starts a run over workers and registers it with the ledger, if any.
func (s *Sweep) Begin(workers int) (*Run, error) {
	if workers < 1 {
		return nil, errors.Errorf("need at least one worker, got %d", workers)
	}
	if s.opts.Store == nil {
		return nil, errors.New("aggregating needs a result store")
	}
	run := &Run{sweep: s, workers: workers}
	if s.opts.Ledger != nil {
		info, err := s.opts.Ledger.NewRun("sweep", s.ledgerParams(), workers, len(s.Cells()))
		if err != nil {
			return nil, errors.Wrapf(err, "error registering run")
		}
		run.ID = info.ID
	}

	s.logger.Info("starting sweep",
		zap.String("run", run.ID),
		zap.Int("workers", workers),
		zap.Int("cells", len(s.Cells())),
		zap.Int("replicates_per_worker", ReplicatesPerWorker(s.opts.Total, workers)),
		zap.Int("realized_total", RealizedTotal(s.opts.Total, workers)))
	return run, nil
}

func (s *Sweep) ledgerParams() map[string]interface{} {
	return map[string]interface{}{
		"lengths": s.opts.Grid.Lengths,
		"angles":  s.opts.Grid.Angles,
		"m1":      s.opts.Mixture.M1,
		"m0":      s.opts.Mixture.M0,
		"sigma":   s.opts.Mixture.Sigma,
		"n":       s.opts.Mixture.N,
		"lam":     s.opts.Mixture.Lam,
		"rho":     s.opts.Rho,
		"total":   s.opts.Total,
		"seed":    s.opts.Seed,
	}
}

// Workers is the pool size of the run.
func (r *Run) Workers() int {
	return r.workers
}

// Outputs returns the cells persisted so far, in persistence order.
func (r *Run) Outputs() []CellOutput {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]CellOutput(nil), r.outputs...)
}

// StartCell marks cell as in flight. If the run ends with an error before the cell is
// recorded, End records the run's error against it.
func (r *Run) StartCell(cell Cell) {
	r.m.Lock()
	defer r.m.Unlock()
	r.inflight, r.started = &cell, time.Now()
}

// Aggregate concatenates the gathered batches of cell and persists them.
func (r *Run) Aggregate(ctx context.Context, cell Cell, batches []Batch) (CellOutput, error) {
	start := time.Now()
	rows, err := Concat(batches, r.workers)
	if err != nil {
		r.recordCell(cell, CellOutput{}, start, err)
		return CellOutput{}, errors.Wrapf(err, "aggregating %s", cell.Key().Name())
	}

	path, err := r.sweep.opts.Store.Put(ctx, cell.Key(), resultstore.Record{Err: rows})
	if err != nil {
		r.recordCell(cell, CellOutput{}, start, err)
		return CellOutput{}, err
	}
	cellsPersisted.Inc()
	rowsPersisted.Add(float64(len(rows)))

	out := CellOutput{Cell: cell, Path: path, Rows: len(rows)}
	r.m.Lock()
	r.outputs = append(r.outputs, out)
	r.m.Unlock()
	r.recordCell(cell, out, start, nil)
	return out, nil
}

func (r *Run) recordCell(cell Cell, out CellOutput, start time.Time, cellErr error) {
	r.m.Lock()
	if r.inflight != nil && r.inflight.Index == cell.Index {
		r.inflight = nil
	}
	r.m.Unlock()

	ledger := r.sweep.opts.Ledger
	if ledger == nil {
		return
	}
	status := rundb.CellStatus{
		Index:    cell.Index,
		Name:     cell.Key().Name(),
		Rows:     out.Rows,
		Path:     out.Path,
		Duration: time.Since(start),
		Status:   rundb.StatusFinished,
	}
	if cellErr != nil {
		status.Status = rundb.StatusError
		status.Error = cellErr.Error()
	}
	if err := ledger.RecordCell(r.ID, status); err != nil {
		r.sweep.logger.Warn("error recording cell", zap.String("cell", status.Name), zap.Error(err))
	}
}

// End marks the run finished, or errored when err is non-nil, and returns err.
func (r *Run) End(err error) error {
	status := rundb.StatusFinished
	if err != nil {
		status = rundb.StatusError

		r.m.Lock()
		cell, start := r.inflight, r.started
		r.m.Unlock()
		if cell != nil {
			r.recordCell(*cell, CellOutput{}, start, err)
		}
	}
	if ledger := r.sweep.opts.Ledger; ledger != nil {
		if lerr := ledger.SetStatus(r.ID, status, err); lerr != nil {
			r.sweep.logger.Warn("error updating run status", zap.String("run", r.ID), zap.Error(lerr))
		}
	}
	if err != nil {
		r.sweep.logger.Error("sweep failed", zap.String("run", r.ID), zap.Error(err))
	} else {
		r.sweep.logger.Info("sweep finished", zap.String("run", r.ID), zap.Int("cells", len(r.Outputs())))
	}
	return err
}

// RunWorker drives one worker through every cell of the grid. The root gathers and
// persists each cell before moving to the next; run is only used on the root. A failed
// cell is recorded by End, with the error that stopped the run.
func (s *Sweep) RunWorker(ctx context.Context, comm Communicator, run *Run) error {
	rank, workers := comm.Rank(), comm.Size()
	for _, cell := range s.Cells() {
		var durations kitelog.Durations
		if rank == Root {
			s.logger.Info("cell",
				zap.Float64("length", cell.Length),
				zap.Int("angle_degrees", cell.Key().AngleDegrees))
			run.StartCell(cell)
		}

		start := time.Now()
		b, err := s.LocalBatch(ctx, rank, workers, cell)
		if err != nil {
			return err
		}
		durations.Since("trials", start)

		start = time.Now()
		batches, err := comm.Gather(ctx, b)
		if err != nil {
			return errors.Wrapf(err, "rank %d: gathering %s", rank, cell.Key().Name())
		}
		if rank != Root {
			continue
		}
		durations.Since("gather", start)

		start = time.Now()
		out, err := run.Aggregate(ctx, cell, batches)
		if err != nil {
			return err
		}
		durations.Since("persist", start)
		durations.Flush(s.logger, "cell persisted",
			zap.String("path", out.Path),
			zap.Int("rows", out.Rows))
	}
	return nil
}

// Run executes the whole sweep on an in-process pool of workers. A failure on any
// worker cancels the others and is returned.
func (s *Sweep) Run(ctx context.Context, workers int) ([]CellOutput, error) {
	run, err := s.Begin(workers)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, comm := range NewLocalPool(workers) {
		comm := comm
		g.Go(func() error {
			return s.RunWorker(gctx, comm, run)
		})
	}
	err = run.End(g.Wait())
	return run.Outputs(), err
}
