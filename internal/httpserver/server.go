package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/storelens/collector/internal/analytics"
	"github.com/storelens/collector/internal/archive"
	"github.com/storelens/collector/internal/collector"
	"github.com/storelens/collector/internal/config"
	"github.com/storelens/collector/internal/database"
	"github.com/storelens/collector/internal/geo"
	"github.com/storelens/collector/internal/metrics"
	"github.com/storelens/collector/internal/middleware"
	"github.com/storelens/collector/internal/models"
	"github.com/storelens/collector/internal/storage"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Archive *archive.Writer
	Geo     geo.Provider
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Now overrides the server clock, for tests.
	Now func() time.Time
}

// Server wraps HTTP handlers and collector services.
type Server struct {
	collector *collector.Service
	engine    *analytics.Engine
	cache     *analytics.ReportCache
	logger    *zap.Logger
	config    *config.Config
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	// Initialize stores
	var sessionStore storage.SessionStore
	var eventStore storage.EventStore

	if deps.DB != nil {
		sessionStore = storage.NewPostgresSessionStore(deps.DB.Pool)
		eventStore = storage.NewPostgresEventStore(deps.DB.Pool)
	} else {
		mem := storage.NewMemoryStore()
		sessionStore = mem
		eventStore = mem
	}

	// Initialize services
	svc := collector.NewService(sessionStore, eventStore, deps.Logger, collector.Options{
		Geo:          deps.Geo,
		Archive:      deps.Archive,
		Metrics:      deps.Metrics,
		WriteTimeout: deps.Config.Analytics.WriteTimeout,
		Now:          now,
	})

	engine := analytics.NewEngine(sessionStore, eventStore, deps.Config.Analytics.TrackingElementTypes, deps.Logger)

	var cache *analytics.ReportCache
	if deps.Redis != nil {
		cache = analytics.NewReportCache(deps.Redis.Client, deps.Config.Analytics.ReportCacheTTL, deps.Logger)
	}

	s := &Server{
		collector: svc,
		engine:    engine,
		cache:     cache,
		logger:    deps.Logger,
		config:    deps.Config,
		metrics:   deps.Metrics,
		now:       now,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Beacon ingestion
	mux.HandleFunc("/api/analytics/collect", s.handleCollect)

	// Reporting, behind the shared secret
	secret := middleware.NewSecretMiddleware(deps.Config.Auth, deps.Logger)
	mux.Handle("/api/analytics/data", secret.Handler(http.HandlerFunc(s.handleData)))

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Beacon Ingestion ----

// handleCollect answers every beacon with the tracking pixel before the hit
// is persisted. Storage failures never reach the storefront.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hit := models.HitFromQuery(r.URL.Query())
	hit.RemoteIP = middleware.ClientIP(r)
	hit.UserAgent = r.UserAgent()
	hit.ReceivedAt = s.now()

	WritePixel(w, s.now())

	s.collector.RecordAsync(hit)
}

// ---- Reporting ----

type dataResponse struct {
	Success int                     `json:"success"`
	Data    []*analytics.PageReport `json:"data"`
}

type dataError struct {
	Success int    `json:"success"`
	Err     string `json:"err"`
}

// handleData serves the dashboard report for the fixed yesterday..tomorrow
// window around the server clock.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	shopDomain := r.URL.Query().Get("shopDomain")

	now := s.now()
	startDate := now.AddDate(0, 0, -1).Format("2006-01-02")
	endDate := now.AddDate(0, 0, 1).Format("2006-01-02")

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Analytics.QueryTimeout)
	defer cancel()

	if cached := s.cache.Get(ctx, shopDomain, startDate, endDate); cached != nil {
		s.recordReport("ok", start, "hit")
		s.jsonResponse(w, dataResponse{Success: 1, Data: cached})
		return
	}

	reports, err := s.engine.Report(ctx, shopDomain, startDate, endDate)
	if err != nil {
		s.logger.Error("report failed",
			zap.String("shop_domain", shopDomain),
			zap.Error(err))
		s.recordReport("error", start, "miss")
		s.jsonResponse(w, dataError{Success: 0, Err: err.Error()})
		return
	}

	filled := analytics.FillDates(reports, startDate, endDate)
	s.cache.Set(ctx, shopDomain, startDate, endDate, filled)

	s.recordReport("ok", start, "miss")
	s.jsonResponse(w, dataResponse{Success: 1, Data: filled})
}

func (s *Server) recordReport(status string, start time.Time, cacheOutcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordReport(status, time.Since(start))
	if !s.cache.Enabled() {
		cacheOutcome = "disabled"
	}
	s.metrics.RecordCacheLookup(cacheOutcome)
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
