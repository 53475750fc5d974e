// Package store is the relational gateway. It persists contacts, documents
// and the visitor counter in PostgreSQL.
//
// Writes that create an identity (contacts, documents) return errors to the
// caller. Reads and best-effort updates log the failure and return a zero
// value instead.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every statement when New is given a zero timeout.
const DefaultTimeout = 10 * time.Second

// Contact is one contact form submission.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company"`
	Service   string    `json:"service"`
	Budget    string    `json:"budget"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	UserAgent string    `json:"user_agent"`
	PageURL   string    `json:"page_url"`

	DocumentInsights json.RawMessage `json:"document_insights,omitempty"`
	LastUpdated      *time.Time      `json:"last_updated,omitempty"`
}

// Document is the relational record of an uploaded file.
type Document struct {
	ID                  string          `json:"document_id"`
	ContactID           string          `json:"contact_id,omitempty"`
	Filename            string          `json:"filename"`
	Size                int64           `json:"size"`
	ContentType         string          `json:"content_type,omitempty"`
	DocumentType        string          `json:"document_type"`
	Description         string          `json:"description"`
	Tags                []string        `json:"tags"`
	UploadTimestamp     time.Time       `json:"upload_timestamp"`
	ProcessingStatus    string          `json:"processing_status"`
	ProcessingTimestamp *time.Time      `json:"processing_timestamp,omitempty"`
	ProcessingMetadata  json.RawMessage `json:"processing_metadata,omitempty"`
	Bucket              string          `json:"s3_bucket,omitempty"`
	Key                 string          `json:"s3_key,omitempty"`
	FileHash            string          `json:"file_hash,omitempty"`
}

// Processing statuses written by the API layer. Any string is accepted by
// UpdateDocumentStatus.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Store wraps a pooled *sql.DB.
type Store struct {
	db      *sql.DB
	log     *zap.Logger
	timeout time.Duration
}

// New returns a Store over db. A nil logger disables logging.
func New(db *sql.DB, log *zap.Logger, timeout time.Duration) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{db: db, log: log.Named("store"), timeout: timeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return classify("ping", s.db.PingContext(ctx))
}

// InUse reports the number of connections currently checked out of the pool.
func (s *Store) InUse() int {
	return s.db.Stats().InUse
}

// PoolStats exposes the pool counters for health reporting.
func (s *Store) PoolStats() map[string]any {
	st := s.db.Stats()
	return map[string]any{
		"open_connections": st.OpenConnections,
		"in_use":           st.InUse,
		"idle":             st.Idle,
		"wait_count":       st.WaitCount,
		"wait_duration_ms": st.WaitDuration.Milliseconds(),
		"max_open":         st.MaxOpenConnections,
	}
}

// inTx runs fn in a transaction. The transaction is rolled back when fn
// fails or the commit does not happen.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
