// Package server exposes sync and memory administration over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/memory"
	"fjacquet/budget-sync/internal/syncer"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

// Syncer runs syncs on request.
type Syncer interface {
	Run(ctx context.Context, opts syncer.Options) (*syncer.Summary, error)
	Running() bool
}

// MemoryAdmin inspects and clears the payee memory.
type MemoryAdmin interface {
	Stats(ctx context.Context) (memory.Stats, error)
	Clear(ctx context.Context) error
}

// Server is the HTTP front of the application.
type Server struct {
	syncer Syncer
	memory MemoryAdmin
	logger logging.Logger
	router *mux.Router
}

// New builds the router.
func New(s Syncer, m MemoryAdmin, logger logging.Logger) *Server {
	srv := &Server{
		syncer: s,
		memory: m,
		logger: logging.OrDefault(logger),
		router: mux.NewRouter(),
	}
	srv.router.HandleFunc("/sync", srv.handleSync).Methods(http.MethodPost)
	srv.router.HandleFunc("/memory/stats", srv.handleMemoryStats).Methods(http.MethodGet)
	srv.router.HandleFunc("/memory", srv.handleMemoryClear).Methods(http.MethodDelete)
	srv.router.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	srv.router.Use(srv.logRequests)
	return srv
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.F("address", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "dry_run must be a boolean")
			return
		}
		dryRun = parsed
	}

	// The run outlives a dropped client connection.
	summary, err := s.syncer.Run(context.WithoutCancel(r.Context()), syncer.Options{DryRun: dryRun})
	switch {
	case errors.Is(err, syncerror.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.WithError(err).Error("Sync request failed")
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":   err.Error(),
			"summary": summary,
		})
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.memory.Stats(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to read memory stats")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	if err := s.memory.Clear(r.Context()); err != nil {
		s.logger.WithError(err).Error("Failed to clear memory")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("Payee memory cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"sync_running": s.syncer.Running(),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			logging.F(logging.FieldMethod, r.Method),
			logging.F("path", r.URL.Path),
			logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
