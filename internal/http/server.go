package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"

	applog "superstore/internal/log"
	"superstore/internal/middleware/ratelimit"
	"superstore/internal/middleware/security"
	"superstore/internal/middleware/trace"
	"superstore/internal/services"
	appweb "superstore/web"
)

// ServerConfig tunes the middleware around the dashboard routes.
type ServerConfig struct {
	RateLimitPerMinute int
	// BlockSuspicious rejects scanner traffic instead of only logging it.
	BlockSuspicious bool
	Logger          *applog.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	http.Server
	templates *template.Template
	views     *services.ViewService
	logger    *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, views *services.ViewService, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger, _ = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		views:            views,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ClientIP),
		started:          time.Now(),
	}

	t, err := parseTemplates()
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	limited := s.rateLimiter.Middleware(detector.ClientIP)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.CacheControl(3600, true)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /ui/panels", limited(http.HandlerFunc(s.handlePanels)))
	mux.Handle("GET /api/views", limited(http.HandlerFunc(s.handleViews)))
	mux.Handle("GET /api/options", limited(http.HandlerFunc(s.handleOptions)))
	mux.Handle("GET /charts/{file}", limited(http.HandlerFunc(s.handleChart)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = mux
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(cfg.BlockSuspicious)(h)
	h = s.traceMiddleware.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           gzhttp.GzipHandler(h),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
