package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"solana-batch-trader/internal/bridge"
	"solana-batch-trader/internal/coordinator"
	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/observability"
	"solana-batch-trader/internal/storage"
)

// bridgeInfo is the signing-service view served on /bridge.
type bridgeInfo interface {
	Count(ctx context.Context) (int, error)
	Connections(ctx context.Context) ([]bridge.ConnectionInfo, error)
	ActiveEvents(ctx context.Context) ([]string, error)
}

// bridgeStatus is the /bridge response.
type bridgeStatus struct {
	Enabled      bool                    `json:"enabled"`
	Count        int                     `json:"count"`
	Connections  []bridge.ConnectionInfo `json:"connections"`
	ActiveEvents []string                `json:"activeEvents"`
}

// statusServer exposes /health, /metrics, /status, /entries, /runs and /bridge.
type statusServer struct {
	srv    *http.Server
	coord  *coordinator.Coordinator
	runs   storage.RunStore
	bridge bridgeInfo // nil when no bridge is connected
	log    zerolog.Logger
}

func newStatusServer(addr string, coord *coordinator.Coordinator, runs storage.RunStore, b bridgeInfo, logger zerolog.Logger) *statusServer {
	s := &statusServer{
		coord:  coord,
		runs:   runs,
		bridge: b,
		log:    logger.With().Str("component", "http").Logger(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *statusServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/entries", s.handleEntries)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/bridge", s.handleBridge)
	return mux
}

// Start serves in the background.
func (s *statusServer) Start() {
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("starting HTTP server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()
}

// Shutdown stops the server.
func (s *statusServer) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("HTTP shutdown")
	}
}

// handleStatus returns the status snapshot. ?realtime=1 adds live balances.
func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	var snap domain.StatusSnapshot
	if realtime, _ := strconv.ParseBool(r.URL.Query().Get("realtime")); realtime {
		snap = s.coord.GetRealtimeStatus(r.Context())
	} else {
		snap = s.coord.GetStatus()
	}
	writeJSON(w, snap)
}

func (s *statusServer) handleEntries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.coord.Entries())
}

func (s *statusServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, []*storage.RunRecord{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*storage.RunRecord{}
	}
	writeJSON(w, runs)
}

func (s *statusServer) handleBridge(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeJSON(w, bridgeStatus{Connections: []bridge.ConnectionInfo{}, ActiveEvents: []string{}})
		return
	}

	var (
		out = bridgeStatus{Enabled: true}
		err error
	)
	if out.Count, err = s.bridge.Count(r.Context()); err == nil {
		if out.Connections, err = s.bridge.Connections(r.Context()); err == nil {
			out.ActiveEvents, err = s.bridge.ActiveEvents(r.Context())
		}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
