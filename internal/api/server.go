// Package api exposes the read-only HTTP interface over stored records
// plus the workflow transition endpoint. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/records and /v1/records/{record_id} for record access.
//   - POST /v1/records/{record_id}/transition to advance the workflow.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/licitawatch/licitawatch/internal/metrics"
	"github.com/licitawatch/licitawatch/internal/record"
	"github.com/licitawatch/licitawatch/internal/store"
	"github.com/licitawatch/licitawatch/internal/workflow"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	requestTimeout   = 60 * time.Second
)

// Server wires HTTP handlers to the record store and workflow machine.
type Server struct {
	router  chi.Router
	store   store.Store
	machine *workflow.Machine
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(st store.Store, machine *workflow.Machine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:   st,
		machine: machine,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.listRecords)
			r.Get("/search", s.searchRecords)
			r.Route("/{record_id}", func(r chi.Router) {
				r.Get("/", s.getRecord)
				r.Get("/history", s.getHistory)
				r.Post("/transition", s.transitionRecord)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.List(r.Context(), store.Filter{Limit: 1}); err != nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

// listRecords handles GET /v1/records?source=&jurisdiction=&state=&category=&limit=&offset=.
func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	f := store.Filter{
		Source:       strings.TrimSpace(r.URL.Query().Get("source")),
		Jurisdiction: strings.TrimSpace(r.URL.Query().Get("jurisdiction")),
		Category:     strings.TrimSpace(r.URL.Query().Get("category")),
		Limit:        limit,
		Offset:       offset,
	}
	if stateParam := strings.TrimSpace(r.URL.Query().Get("state")); stateParam != "" {
		state := record.WorkflowState(stateParam)
		if !state.Valid() {
			writeError(s.logger, w, http.StatusBadRequest, "unknown workflow state")
			return
		}
		f.State = state
	}
	records, err := s.store.List(r.Context(), f)
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "list records failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"records": records})
}

// searchRecords handles GET /v1/records/search?q=&limit=.
func (s *Server) searchRecords(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(s.logger, w, http.StatusBadRequest, "q is required")
		return
	}
	limit, _, err := parseLimitOffset(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.store.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("search failed", zap.String("q", q), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"record": rec})
}

// getHistory returns the workflow and extension logs for one record.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"workflow_state":    rec.WorkflowState,
		"workflow_history":  s.machine.History(rec),
		"extension_history": rec.ExtensionHistory,
		"summary":           s.machine.Summarize(rec),
	})
}

type transitionRequest struct {
	To    string `json:"to"`
	Notes string `json:"notes"`
}

// transitionRecord handles POST /v1/records/{record_id}/transition with
// a body of {"to": "...", "notes": "..."}. Illegal transitions return
// 409 and leave the record untouched.
func (s *Server) transitionRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		writeError(s.logger, w, http.StatusBadRequest, "missing target state")
		return
	}
	next := record.WorkflowState(req.To)
	if err := s.machine.Transition(rec, next, req.Notes); err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			writeError(s.logger, w, http.StatusConflict, err.Error())
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, "transition failed")
		return
	}
	if err := s.store.Save(r.Context(), rec); err != nil {
		s.logger.Error("save transitioned record failed",
			zap.String("record_id", rec.ID), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "save record failed")
		return
	}
	metrics.IncWorkflowTransition(string(next))
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"record": rec})
}

func (s *Server) loadRecord(w http.ResponseWriter, r *http.Request) (*record.Record, bool) {
	id := chi.URLParam(r, "record_id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "record not found")
			return nil, false
		}
		s.logger.Error("get record failed", zap.String("record_id", id), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "get record failed")
		return nil, false
	}
	return rec, true
}

func parseLimitOffset(r *http.Request) (int, int, error) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if v > maxListLimit {
			v = maxListLimit
		}
		limit = v
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = v
	}
	return limit, offset, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
