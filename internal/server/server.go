package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config wires the server to its gateways.
type Config struct {
	Addr           string // e.g. ":8000"
	Build          BuildInfo
	AllowedOrigin  string
	MaxUploadBytes int64

	// RateLimitPerMinute guards POST /contact and POST /documents/upload
	// per client IP. Zero disables it.
	RateLimitPerMinute int

	DB       RelationalStore
	Search   SearchIndex
	Objects  ObjectStore
	Notifier Notifier // optional
	Logger   *zap.Logger
}

type Server struct {
	cfg        Config
	db         RelationalStore
	search     SearchIndex
	objects    ObjectStore
	notifier   Notifier
	log        *zap.Logger
	metrics    *Metrics
	validate   *validator.Validate
	limiter    *rateLimiter
	handler    http.Handler
	httpServer *http.Server
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Build.Version == "" {
		cfg.Build.Version = "dev"
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	s := &Server{
		cfg:      cfg,
		db:       cfg.DB,
		search:   cfg.Search,
		objects:  cfg.Objects,
		notifier: cfg.Notifier,
		log:      log,
		metrics:  NewMetrics(cfg.DB.InUse),
		validate: newValidator(),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = compressionMiddleware(handler)
	handler = corsMiddleware(cfg.AllowedOrigin)(handler)
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(log, s.metrics)(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/live", s.handleLive)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /contact", s.limiter.limit(s.handleContact))
	mux.HandleFunc("GET /contacts/{contact_id}/documents", s.handleContactDocuments)

	mux.HandleFunc("POST /documents/upload", s.limiter.limit(s.handleUpload))
	mux.HandleFunc("POST /documents/search", s.handleSearch)
	mux.HandleFunc("GET /documents/search", s.handleDatabaseSearch)
	mux.HandleFunc("GET /documents/{document_id}", s.handleGetDocument)
	mux.HandleFunc("GET /documents/{document_id}/download", s.handleDownload)
	mux.HandleFunc("POST /documents/{document_id}/process", s.handleProcess)

	mux.HandleFunc("GET /analytics/insights", s.handleAnalytics)
	mux.HandleFunc("GET /stats", s.handleStats)

	mux.HandleFunc("GET /admin/system-info", s.handleSystemInfo)
	mux.HandleFunc("GET /admin/storage", s.handleListStorage)
	mux.HandleFunc("DELETE /admin/storage/{key...}", s.handleDeleteObject)
	mux.HandleFunc("DELETE /admin/search/{document_id}", s.handleDeleteSearchRecord)
	mux.HandleFunc("POST /admin/backup", s.handleBackup)
}

// Handler returns the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.httpServer.Shutdown(ctx)
}

// requestLogger tags the server logger with the request id.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.log.With(zap.String("request_id", RequestIDFromContext(r.Context())))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Document Gateway",
		"version": s.cfg.Build.Version,
		"commit":  s.cfg.Build.Commit,
		"stack": map[string]string{
			"database": "postgresql",
			"search":   s.search.Backend(),
			"storage":  "minio",
		},
		"endpoints": map[string]string{
			"health":    "/health",
			"metrics":   "/metrics",
			"contact":   "/contact",
			"documents": "/documents/*",
			"search":    "/documents/search",
			"analytics": "/analytics/insights",
			"stats":     "/stats",
			"admin":     "/admin/*",
		},
	})
}
