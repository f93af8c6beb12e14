// Package http provides the dashboard HTTP server and handlers.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"ccdash/internal/log"
	"ccdash/internal/metrics"
	"ccdash/internal/middleware/ratelimit"
	"ccdash/internal/middleware/security"
	"ccdash/internal/middleware/trace"
	"ccdash/internal/services"
	appweb "ccdash/web"
)

// staticMaxAge is the Cache-Control max-age of embedded assets, in seconds.
const staticMaxAge = 3600

type Server struct {
	http.Server
	templates *template.Template
	dashboard *services.DashboardService
	metrics   *metrics.Collector
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	started   time.Time

	requestsPerMinute int
	shutdownOnce      sync.Once
}

// Option configures a Server.
type Option func(*Server)

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRateLimit sets the per-client request budget for the page and the
// API. Health, metrics and static routes are not limited.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.requestsPerMinute = perMinute }
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. Template parse errors are logged; the page then answers
// 500 and readiness fails.
func NewServer(addr string, dashboard *services.DashboardService, opts ...Option) *Server {
	s := &Server{
		dashboard:         dashboard,
		logger:            log.FromContext(context.Background()),
		detector:          security.NewDetector(),
		started:           time.Now(),
		requestsPerMinute: ratelimit.DefaultConfig().RequestsPerMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Addr = addr
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.requestsPerMinute})
	s.detector.OnSuspicious(s.onSuspicious)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.WithComponent(log.ComponentTemplate).Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(trace.Middleware)
	r.Use(log.Middleware(s.logger, trace.FromRequest))
	r.Use(log.AccessLog(s.detector.ExtractClientIP))
	r.Use(s.metrics.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(staticMaxAge)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit))

		r.Get("/", s.handleIndex)
		r.Get("/ui/kpis", s.handleKPITiles)

		r.Route("/api", func(r chi.Router) {
			r.Use(security.NoStore)
			r.Get("/filters", s.handleFilters)
			r.Get("/kpis", s.handleKPIs)
			r.Get("/heatmap", s.handleHeatmap)
			r.Get("/heatmap/weighted", s.handleWeightedHeatmap)
			r.Get("/markers", s.handleMarkers)
			r.Get("/choropleth", s.handleChoropleth)
			r.Get("/circles", s.handleCircles)
			r.Get("/facts", s.handleFacts)
			r.Get("/dashboard", s.handleDashboard)
		})
	})

	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.metrics.SecurityEvent(metrics.SecurityRateLimited)
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)

	const msg = "Rate limit exceeded. Please try again later."
	if wantsHTML(r.Header.Get("HX-Request"), r.Header.Get("Accept")) {
		ErrorResponse(http.StatusTooManyRequests, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	JSONError(http.StatusTooManyRequests, msg, trace.FromRequest(r)).Write(w)
}

func (s *Server) onSuspicious(r *http.Request, reason string) {
	s.metrics.SecurityEvent(metrics.SecuritySuspicious)
	log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
		"reason", reason,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
