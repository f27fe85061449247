// Package chi serves the HTTP read API over validated records.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/metrics"
	"github.com/draftbox-io/stampline/internal/query"
	"github.com/draftbox-io/stampline/internal/store"
)

// Server exposes record search over HTTP.
type Server struct {
	query  *query.Service
	store  store.Store
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(q *query.Service, st store.Store, logger *zap.Logger) *Server {
	return &Server{query: q, store: st, logger: logger}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/v1/records", s.handleListRecords)
	r.Get("/v1/records/{key}", s.handleGetRecord)
	return r
}

type recordResponse struct {
	Image       string            `json:"image"`
	Key         string            `json:"key"`
	Fields      map[string]string `json:"fields"`
	FinalRev    string            `json:"final_rev,omitempty"`
	RevDate     string            `json:"rev_date,omitempty"`
	SheetStatus string            `json:"sheet_status"`
	RevStatus   string            `json:"rev_status"`
	Flags       map[string]string `json:"flags,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleListRecords handles GET /v1/records.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.query.Search(r.Context(), filter, limit)
	if err != nil {
		if errors.Is(err, query.ErrBadFilter) {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}
		s.logger.Error("search records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	items := make([]recordResponse, len(recs))
	for i, rec := range recs {
		items[i] = recordToResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// handleGetRecord handles GET /v1/records/{key}.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	key := record.Key(chi.URLParam(r, "key"))

	rec, err := s.query.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record_not_found", "record not found")
			return
		}
		s.logger.Error("get record", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(rec))
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]string{"status": status})
}

func recordToResponse(rec *record.Record) recordResponse {
	resp := recordResponse{
		Image:       rec.Image,
		Key:         rec.Key,
		Fields:      rec.Fields,
		FinalRev:    rec.FinalRev,
		RevDate:     rec.RevDate,
		SheetStatus: string(rec.SheetStatus),
		RevStatus:   string(rec.RevStatus),
	}
	if flagged := rec.FlaggedFields(); len(flagged) > 0 {
		resp.Flags = make(map[string]string, len(flagged))
		for _, f := range flagged {
			resp.Flags[f] = rec.FlagReason(f)
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
