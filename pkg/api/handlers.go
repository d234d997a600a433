package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/leads"
	"github.com/schardosin/folio/pkg/logger"
	"github.com/schardosin/folio/pkg/metrics"
	"github.com/schardosin/folio/pkg/provider"
	"github.com/schardosin/folio/pkg/widget"
)

// Settings are the reloadable parts of the server configuration.
type Settings struct {
	Provider      string
	Relay         config.RelayConfig
	Widget        widget.Settings
	AllowedOrigin string
	PublicToken   string
	AdminToken    string
}

// SettingsFromConfig extracts the server settings from an app config.
func SettingsFromConfig(cfg *config.AppConfig) Settings {
	return Settings{
		Provider:      cfg.General.DefaultProvider,
		Relay:         cfg.Relay,
		Widget:        cfg.Widget,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		PublicToken:   cfg.Server.PublicToken,
		AdminToken:    cfg.Server.AdminToken,
	}
}

// Options configures a Server.
type Options struct {
	Provider *provider.Provider
	Leads    *leads.Store
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *logger.Logger
	Settings Settings
	Now      func() time.Time
}

// Server serves the chat relay, lead capture and widget settings endpoints.
type Server struct {
	provider *provider.Provider
	leads    *leads.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      *logger.Logger
	now      func() time.Time

	mu       sync.RWMutex
	settings Settings
}

// NewServer creates a server. Metrics and Logger default to unregistered
// metrics and a discarding logger.
func NewServer(opts Options) *Server {
	s := &Server{
		provider: opts.Provider,
		leads:    opts.Leads,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		log:      opts.Logger,
		now:      opts.Now,
		settings: opts.Settings,
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	return s
}

// Settings returns the current settings.
func (s *Server) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings swaps in reloaded settings. In-flight requests keep the
// settings they started with.
func (s *Server) UpdateSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.metrics.ConfigReloadsTotal.Inc()
}

// RegisterRoutes registers the API routes on a router
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.Use(s.requestIDMiddleware, s.loggingMiddleware, s.corsMiddleware)

	router.HandleFunc("/health", s.HealthHandler).Methods("GET")
	router.HandleFunc("/ready", s.ReadyHandler).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	public := router.PathPrefix("/api").Subrouter()
	public.HandleFunc("/chat", s.requirePublic(s.ChatHandler)).Methods("POST", "OPTIONS")
	public.HandleFunc("/widget", s.requirePublic(s.WidgetHandler)).Methods("GET", "OPTIONS")
	public.HandleFunc("/leads", s.requirePublic(s.CreateLeadHandler)).Methods("POST", "OPTIONS")
	public.HandleFunc("/leads", s.requireAdmin(s.ListLeadsHandler)).Methods("GET")
	public.HandleFunc("/leads/stats", s.requireAdmin(s.LeadStatsHandler)).Methods("GET")
}

// HealthHandler handles GET /health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "folio"})
}

// ReadyHandler handles GET /ready
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "no model provider"})
		return
	}
	if s.leads != nil {
		if err := s.leads.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "lead store unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// WidgetHandler handles GET /api/widget
func (s *Server) WidgetHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Settings().Widget)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
