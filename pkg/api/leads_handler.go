package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/schardosin/folio/pkg/leads"
)

const (
	defaultLeadListLimit = 100
	maxLeadListLimit     = 1000
)

// CreateLeadResponse is the response for POST /api/leads
type CreateLeadResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadListResponse is the response for GET /api/leads
type LeadListResponse struct {
	Leads []leads.Lead `json:"leads"`
}

// CreateLeadHandler handles POST /api/leads
func (s *Server) CreateLeadHandler(w http.ResponseWriter, r *http.Request) {
	log := s.log.Component("leads").With().Str("request_id", RequestID(r.Context())).Logger()

	if s.leads == nil {
		writeError(w, http.StatusServiceUnavailable, "Lead capture is not available")
		return
	}

	var form leads.Form
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&form); err != nil {
		s.metrics.LeadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := form.Validate(s.now())
	if err != nil {
		var verr *leads.ValidationError
		if errors.As(err, &verr) {
			s.metrics.LeadsTotal.WithLabelValues("rejected").Inc()
			log.Info().Str("field", verr.Field).Msg("lead rejected by validation")
			writeError(w, http.StatusBadRequest, verr.Message)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	lead, err := s.leads.Insert(r.Context(), rec)
	s.metrics.RecordDbOperation("insert", err, time.Since(start))
	s.log.LogDbOperation("insert", time.Since(start), 1, err)
	if err != nil {
		s.metrics.LeadsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "Could not save your request. Please try again.")
		return
	}

	s.metrics.LeadsTotal.WithLabelValues("accepted").Inc()
	log.Info().Str("lead_id", lead.ID).Str("preferred_date", lead.PreferredDate).Msg("lead captured")
	writeJSON(w, http.StatusCreated, CreateLeadResponse{ID: lead.ID, CreatedAt: lead.CreatedAt})
}

// ListLeadsHandler handles GET /api/leads
func (s *Server) ListLeadsHandler(w http.ResponseWriter, r *http.Request) {
	if s.leads == nil {
		writeError(w, http.StatusServiceUnavailable, "Lead capture is not available")
		return
	}

	limit := defaultLeadListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLeadListLimit)
	}

	start := time.Now()
	list, err := s.leads.List(r.Context(), limit)
	s.metrics.RecordDbOperation("list", err, time.Since(start))
	s.log.LogDbOperation("list", time.Since(start), len(list), err)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load leads")
		return
	}

	writeJSON(w, http.StatusOK, LeadListResponse{Leads: list})
}

// LeadStatsHandler handles GET /api/leads/stats
func (s *Server) LeadStatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.leads == nil {
		writeError(w, http.StatusServiceUnavailable, "Lead capture is not available")
		return
	}

	start := time.Now()
	stats, err := s.leads.Stats(r.Context(), s.now())
	s.metrics.RecordDbOperation("stats", err, time.Since(start))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute lead stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
