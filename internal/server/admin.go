package server

import (
	"net/http"
	"runtime"
	"time"

	"document-gateway/internal/objectstore"
	"document-gateway/internal/search"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListKeys = 1000
	maxListKeys     = 10000
)

type systemInfo struct {
	Version      string                             `json:"version"`
	Commit       string                             `json:"commit,omitempty"`
	Architecture string                             `json:"architecture"`
	GoVersion    string                             `json:"go_version"`
	Services     map[string]string                  `json:"services"`
	StorageStats map[string]objectstore.BucketStats `json:"storage_stats"`
	SearchStats  *search.Stats                      `json:"search_stats,omitempty"`
	Timestamp    string                             `json:"timestamp"`
}

// handleSystemInfo collects bucket sizes and index stats in parallel.
// Bucket stats list every object, so this is slow on large buckets.
func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	var (
		dataStats, backupStats objectstore.BucketStats
		searchStats            search.Stats
		searchOK               bool
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		dataStats = s.objects.BucketSizeStats(ctx, s.objects.DataBucket())
		return nil
	})
	g.Go(func() error {
		backupStats = s.objects.BucketSizeStats(ctx, s.objects.BackupBucket())
		return nil
	})
	g.Go(func() error {
		searchStats, searchOK = s.search.Stats(ctx)
		return nil
	})
	_ = g.Wait()

	info := systemInfo{
		Version:      s.cfg.Build.Version,
		Commit:       s.cfg.Build.Commit,
		Architecture: "opensource",
		GoVersion:    runtime.Version(),
		Services: map[string]string{
			"database": "postgresql",
			"search":   s.search.Backend(),
			"storage":  "minio",
		},
		StorageStats: map[string]objectstore.BucketStats{
			"data_bucket":   dataStats,
			"backup_bucket": backupStats,
		},
		Timestamp: isoTimestamp(time.Now()),
	}
	if searchOK {
		info.SearchStats = &searchStats
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListStorage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxKeys, ok := parseLimit(q.Get("max_keys"), defaultListKeys, maxListKeys)
	if !ok {
		writeError(w, http.StatusBadRequest, "max_keys must be between 1 and 10000")
		return
	}
	bucket := q.Get("bucket")
	if bucket == "" {
		bucket = s.objects.DataBucket()
	}
	prefix := q.Get("prefix")

	objects := s.objects.List(r.Context(), prefix, bucket, maxKeys)
	writeJSON(w, http.StatusOK, map[string]any{
		"bucket":  bucket,
		"prefix":  prefix,
		"objects": objects,
		"count":   len(objects),
	})
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "object key is required")
		return
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = s.objects.DataBucket()
	}

	if !s.objects.Delete(r.Context(), key, bucket) {
		writeError(w, http.StatusBadGateway, "failed to delete object")
		return
	}
	s.requestLogger(r).Info("object deleted", zap.String("bucket", bucket), zap.String("key", key))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "bucket": bucket, "key": key})
}

func (s *Server) handleDeleteSearchRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("document_id")
	if !s.search.Delete(r.Context(), id) {
		writeError(w, http.StatusBadGateway, "failed to delete search record")
		return
	}
	s.requestLogger(r).Info("search record deleted", zap.String("document_id", id))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "document_id": id})
}
