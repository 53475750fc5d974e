package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"document-gateway/internal/store"

	"go.uber.org/zap"
)

// snapshot is the JSON document written by POST /admin/backup.
type snapshot struct {
	CreatedAt string           `json:"created_at"`
	Version   string           `json:"version"`
	Contacts  []store.Contact  `json:"contacts"`
	Documents []store.Document `json:"documents"`
}

type backupResponse struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Contacts  int    `json:"contacts"`
	Documents int    `json:"documents"`
	SizeBytes int    `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

func snapshotKey(t time.Time) string {
	return fmt.Sprintf("backups/snapshot-%s.json.gz", t.UTC().Format("20060102-150405"))
}

// handleBackup writes every contact and document row as gzip-compressed
// JSON into the backup bucket.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.requestLogger(r)

	contacts, err := s.db.ListContacts(ctx)
	if err != nil {
		log.Error("backup: list contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "backup failed: "+err.Error())
		return
	}
	documents, err := s.db.ListDocuments(ctx)
	if err != nil {
		log.Error("backup: list documents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "backup failed: "+err.Error())
		return
	}

	now := time.Now().UTC()
	payload, err := compressSnapshot(snapshot{
		CreatedAt: isoTimestamp(now),
		Version:   s.cfg.Build.Version,
		Contacts:  contacts,
		Documents: documents,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "backup failed: "+err.Error())
		return
	}

	bucket := s.objects.BackupBucket()
	key := snapshotKey(now)
	meta := map[string]string{
		"contacts":  strconv.Itoa(len(contacts)),
		"documents": strconv.Itoa(len(documents)),
	}
	if !s.objects.Upload(ctx, payload, key, bucket, "application/gzip", meta) {
		writeError(w, http.StatusBadGateway, "failed to store backup")
		return
	}

	log.Info("backup written",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("contacts", len(contacts)),
		zap.Int("documents", len(documents)),
		zap.Int("size_bytes", len(payload)))

	writeJSON(w, http.StatusCreated, backupResponse{
		Bucket:    bucket,
		Key:       key,
		Contacts:  len(contacts),
		Documents: len(documents),
		SizeBytes: len(payload),
		CreatedAt: isoTimestamp(now),
	})
}

func compressSnapshot(snap snapshot) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(snap); err != nil {
		gz.Close()
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
