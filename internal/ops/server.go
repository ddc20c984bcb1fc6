package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/triage/delegate"
)

// PolicyInfo is the read surface the server needs from the learner.
type PolicyInfo interface {
	Version() uint64
	Epsilon() float64
	CellCount() int
}

// Server exposes the operator surface: health, metrics, case inspection,
// and manual reassignment. Reassignments feed the same supervised-correction
// path as feedback-queue overrides.
type Server struct {
	lifecycle storage.LifecycleStore
	cases     storage.CaseRepository
	tracker   *delegate.Tracker
	policy    PolicyInfo
	server    *http.Server
	log       *slog.Logger
}

// NewServer creates the ops HTTP server.
func NewServer(
	lifecycle storage.LifecycleStore,
	cases storage.CaseRepository,
	tracker *delegate.Tracker,
	policy PolicyInfo,
	port int,
) *Server {
	s := &Server{
		lifecycle: lifecycle,
		cases:     cases,
		tracker:   tracker,
		policy:    policy,
		log:       slog.With("component", "ops"),
	}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/cases/{id}", s.handleGetCase)
	r.Post("/cases/{id}/reassign", s.handleReassign)
	r.Get("/policy", s.handlePolicy)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.policy.Version(),
		"epsilon": s.policy.Epsilon(),
		"cells":   s.policy.CellCount(),
	})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.cases.Get(r.Context(), id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "case not found"})
		return
	}
	if err != nil {
		s.log.Error("Case lookup failed", "exception", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	resp := map[string]any{"case": c}
	if rec, err := s.lifecycle.Get(r.Context(), id); err == nil {
		resp["lifecycle"] = rec
	}
	writeJSON(w, http.StatusOK, resp)
}

type reassignRequest struct {
	Destination string `json:"destination"`
	Actor       string `json:"actor"`
	Notes       string `json:"notes"`
}

func (s *Server) handleReassign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req reassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	err := s.tracker.Reassign(r.Context(), id, domain.Destination(req.Destination), req.Actor, req.Notes)
	if err != nil {
		var lifecycleErr *domain.LifecycleError
		switch {
		case errors.Is(err, storage.ErrRecordNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "case not found"})
		case errors.As(err, &lifecycleErr):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reassigned"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
