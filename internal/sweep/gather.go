package sweep

import (
	"context"
	"sort"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// Root is the rank of the aggregating worker.
const Root = 0

// Batch is the replicate matrix one worker produced for one cell.
type Batch struct {
	Rank int
	Cell int
	Rows [][3]float64
}

// Communicator connects one worker to its pool.
type Communicator interface {
	Rank() int
	Size() int
	// Gather delivers b to the root. On the root it blocks until every worker's batch
	// for b.Cell has arrived and returns all of them; elsewhere it returns nil.
	Gather(ctx context.Context, b Batch) ([]Batch, error)
}

// Concat joins batches row-wise in ascending rank order. Each of the workers ranks must
// contribute exactly one batch for the same cell.
func Concat(batches []Batch, workers int) ([][3]float64, error) {
	if len(batches) != workers {
		return nil, errors.Errorf("gathered %d batches from %d workers", len(batches), workers)
	}
	sorted := append([]Batch(nil), batches...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	var n int
	for i, b := range sorted {
		if b.Rank != i {
			return nil, errors.Errorf("missing or duplicate batch for rank %d", i)
		}
		if b.Cell != sorted[0].Cell {
			return nil, errors.Errorf("batches from cells %d and %d", sorted[0].Cell, b.Cell)
		}
		n += len(b.Rows)
	}

	rows := make([][3]float64, 0, n)
	for _, b := range sorted {
		rows = append(rows, b.Rows...)
	}
	return rows, nil
}

type hub struct {
	size  int
	inbox chan Batch
}

type localComm struct {
	rank    int
	hub     *hub
	pending map[int][]Batch
}

// NewLocalPool connects size in-process workers; element i has rank i.
func NewLocalPool(size int) []Communicator {
	h := &hub{size: size, inbox: make(chan Batch, size)}
	comms := make([]Communicator, size)
	for i := range comms {
		c := &localComm{rank: i, hub: h}
		if i == Root {
			c.pending = make(map[int][]Batch)
		}
		comms[i] = c
	}
	return comms
}

func (c *localComm) Rank() int { return c.rank }

func (c *localComm) Size() int { return c.hub.size }

func (c *localComm) Gather(ctx context.Context, b Batch) ([]Batch, error) {
	b.Rank = c.rank
	if c.rank != Root {
		select {
		case c.hub.inbox <- b:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// workers may already be sending later cells
	got := append(c.pending[b.Cell], b)
	delete(c.pending, b.Cell)
	for len(got) < c.hub.size {
		select {
		case in := <-c.hub.inbox:
			if in.Cell == b.Cell {
				got = append(got, in)
			} else {
				c.pending[in.Cell] = append(c.pending[in.Cell], in)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return got, nil
}
