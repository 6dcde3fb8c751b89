package shard

import "github.com/kiteco/backdoor-sweep/internal/config"

// RunState describes what a shard is doing.
type RunState string

const (
	// StateWaiting is set before the shard has been started.
	StateWaiting RunState = "waiting"
	// StateRunning is set while cells are being computed.
	StateRunning RunState = "running"
	// StateFinished is set once every cell's batch is available.
	StateFinished RunState = "finished"
	// StateError is set when a trial failed; no further cells are computed.
	StateError RunState = "error"
)

// StartRequest is a request to start a shard
type StartRequest struct {
	Shard       int
	TotalShards int
	Config      config.Config
}

// StatusResponse returns the status of a shard
type StatusResponse struct {
	State RunState
	// Completed is the number of cells whose batch is available.
	Completed int
	Err       string
}

// CellResponse is a shard's replicate batch for one cell.
type CellResponse struct {
	Shard int
	Cell  int
	Rows  [][3]float64
}
