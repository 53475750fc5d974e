package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"document-gateway/internal/search"

	"golang.org/x/sync/errgroup"
)

// HealthStatus is the overall health of the gateway.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus is the health of one backing service.
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health is the body of GET /health.
type Health struct {
	Status       HealthStatus               `json:"status"`
	Timestamp    string                     `json:"timestamp"`
	Version      string                     `json:"version"`
	Services     map[string]ComponentHealth `json:"services"`
	VisitorCount int64                      `json:"visitor_count"`
	SearchStats  *search.Stats              `json:"search_stats,omitempty"`
}

type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms"`
	Details   any             `json:"details,omitempty"`
}

const (
	healthProbeTimeout = 5 * time.Second
	slowProbe          = time.Second
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())
	s.metrics.SetVisitorCount(health.VisitorCount)

	status := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleReady reports whether the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": isoTimestamp(time.Now()),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// checkHealth probes the three gateways concurrently.
func (s *Server) checkHealth(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	health := Health{
		Timestamp: isoTimestamp(time.Now()),
		Version:   s.cfg.Build.Version,
		Services:  make(map[string]ComponentHealth, 3),
	}
	var mu sync.Mutex
	record := func(name string, c ComponentHealth) {
		mu.Lock()
		health.Services[name] = c
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, visitors := s.checkDatabase(gctx)
		record("postgresql", c)
		mu.Lock()
		health.VisitorCount = visitors
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		c, stats := s.checkSearch(gctx)
		record(s.search.Backend(), c)
		if stats != nil {
			mu.Lock()
			health.SearchStats = stats
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		record("minio", s.checkObjectStore(gctx))
		return nil
	})
	_ = g.Wait()

	health.Status = overallHealth(health.Services)
	return health
}

func (s *Server) checkDatabase(ctx context.Context) (ComponentHealth, int64) {
	start := time.Now()
	if err := s.db.Ping(ctx); err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: "database ping failed: " + err.Error()}, 0
	}
	visitors := s.db.GetVisitorCount(ctx)
	return probeResult(start, "connected", s.db.PoolStats()), visitors
}

func (s *Server) checkSearch(ctx context.Context) (ComponentHealth, *search.Stats) {
	start := time.Now()
	stats, ok := s.search.Stats(ctx)
	if !ok {
		return ComponentHealth{Status: ComponentStatusDown, Message: "search index unreachable"}, nil
	}
	return probeResult(start, "connected", nil), &stats
}

func (s *Server) checkObjectStore(ctx context.Context) ComponentHealth {
	start := time.Now()
	bucket := s.objects.DataBucket()
	if !s.objects.BucketExists(ctx, bucket) {
		return ComponentHealth{Status: ComponentStatusDown, Message: "bucket missing or unreachable: " + bucket}
	}
	return probeResult(start, "connected", nil)
}

func probeResult(start time.Time, msg string, details any) ComponentHealth {
	latency := time.Since(start)
	status := ComponentStatusUp
	if latency > slowProbe {
		status = ComponentStatusDegraded
		msg = "latency high"
	}
	return ComponentHealth{
		Status:    status,
		Message:   msg,
		LatencyMs: float64(latency.Microseconds()) / 1000,
		Details:   details,
	}
}

// overallHealth is unhealthy when anything is down and degraded when
// anything is slow.
func overallHealth(components map[string]ComponentHealth) HealthStatus {
	var down, degraded int
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			down++
		case ComponentStatusDegraded:
			degraded++
		}
	}
	switch {
	case down > 0:
		return HealthStatusUnhealthy
	case degraded > 0:
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
