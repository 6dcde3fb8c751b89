// Package shard runs sweep workers as separate processes: each shard serves its
// replicate batches over HTTP and a coordinator gathers, concatenates and persists them.
package shard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kiteco/backdoor-sweep/internal/kitelog"
)

// Server is a shard's HTTP API.
type Server struct {
	logger *zap.Logger
	ctx    context.Context

	m      sync.Mutex
	runner *runner
}

// NewServer returns a shard server; computations stop when ctx is cancelled.
func NewServer(ctx context.Context, logger *zap.Logger) *Server {
	return &Server{ctx: ctx, logger: kitelog.OrNop(logger)}
}

// Handler routes the API, with recovery and request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/start", s.HandleStart).Methods("POST")
	r.HandleFunc("/api/status", s.HandleStatus).Methods("GET")
	r.HandleFunc("/api/cells/{index:[0-9]+}", s.HandleCell).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return negroni.New(
		NewRecovery(s.logger),
		NewLogger(s.logger),
		negroni.Wrap(r),
	)
}

// HandleStart starts computing this shard's batches.
func (s *Server) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decode(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.TotalShards <= 0 || req.Shard < 0 || req.Shard >= req.TotalShards {
		http.Error(w, fmt.Sprintf("bad Shard/TotalShards params: %d, %d",
			req.Shard, req.TotalShards), http.StatusBadRequest)
		return
	}

	sw, err := req.Config.Sweep(nil, nil, s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.m.Lock()
	defer s.m.Unlock()
	if s.runner != nil {
		http.Error(w, "server already has a runner", http.StatusConflict)
		return
	}
	s.runner = newRunner(sw, req.Shard, req.TotalShards, s.logger)
	s.runner.Start(s.ctx)

	s.logger.Info("shard started",
		zap.Int("shard", req.Shard),
		zap.Int("total_shards", req.TotalShards),
		zap.Int("cells", len(sw.Cells())))
}

// HandleStatus reports the shard's state.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{State: StateWaiting}
	if runner := s.getRunner(); runner != nil {
		resp = runner.Status()
	}
	writeJSON(w, resp)
}

// HandleCell returns the shard's batch for a cell, or 404 if it is not ready.
func (s *Server) HandleCell(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runner := s.getRunner()
	if runner == nil {
		http.Error(w, "shard not started", http.StatusNotFound)
		return
	}
	b, ok := runner.Batch(index)
	if !ok {
		http.Error(w, fmt.Sprintf("cell %d not ready", index), http.StatusNotFound)
		return
	}
	writeJSON(w, CellResponse{Shard: b.Rank, Cell: b.Cell, Rows: b.Rows})
}

func (s *Server) getRunner() *runner {
	s.m.Lock()
	defer s.m.Unlock()
	return s.runner
}

// Close stops any running computation.
func (s *Server) Close() {
	if runner := s.getRunner(); runner != nil {
		runner.Stop()
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("shard listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	}
}

func decode(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("json decode error: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("error marshaling JSON: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf)
}
