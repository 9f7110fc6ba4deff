package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"artha-ledger-go/internal/game"
	"artha-ledger-go/internal/ledger"
	"go.uber.org/zap"
)

// APIServer provides an HTTP interface for a running game.
type APIServer struct {
	server *http.Server
	engine *game.Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(engine *game.Engine, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routes of the server.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /status", s.statusHandler)
	mux.HandleFunc("POST /orders", s.ordersHandler)
	mux.HandleFunc("GET /valuation", s.valuationHandler)
	mux.HandleFunc("GET /insights", s.insightsHandler)
	mux.HandleFunc("GET /transactions", s.transactionsHandler)
	mux.HandleFunc("POST /checkpoint", s.checkpointHandler)
	mux.HandleFunc("POST /advance", s.advanceHandler)
	return mux
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		game.Status
		StartTime string `json:"start_time"`
		Uptime    string `json:"uptime"`
	}{
		Status:    s.engine.Status(),
		StartTime: s.engine.StartTime.Format(time.RFC3339),
		Uptime:    time.Since(s.engine.StartTime).String(),
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *APIServer) ordersHandler(w http.ResponseWriter, r *http.Request) {
	var o ledger.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid order: "+err.Error())
		return
	}

	res := s.engine.SubmitOrder(r.Context(), o)
	if !res.Success {
		s.writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *APIServer) valuationHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.ValueNow(r.Context()))
}

func (s *APIServer) insightsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"insights": s.engine.Insights(r.Context())})
}

func (s *APIServer) transactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs := s.engine.Transactions()
	// most recent first
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *APIServer) checkpointHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Checkpoint(r.Context()); err != nil {
		s.logger.Error("Checkpoint request failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) advanceHandler(w http.ResponseWriter, r *http.Request) {
	day, err := s.engine.AdvanceDay(r.Context())
	if errors.Is(err, game.ErrGameOver) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"day": day})
}
