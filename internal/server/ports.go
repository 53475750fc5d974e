package server

import (
	"context"
	"encoding/json"
	"time"

	"document-gateway/internal/objectstore"
	"document-gateway/internal/search"
	"document-gateway/internal/store"
)

// RelationalStore is the subset of *store.Store the handlers use.
type RelationalStore interface {
	Ping(ctx context.Context) error
	InUse() int
	PoolStats() map[string]any

	CreateContact(ctx context.Context, c store.Contact) (string, error)
	EnrichContact(ctx context.Context, contactID string, insights store.DocumentInsights) bool
	ListContacts(ctx context.Context) ([]store.Contact, error)

	IncrementVisitorCount(ctx context.Context) int64
	GetVisitorCount(ctx context.Context) int64

	CreateDocument(ctx context.Context, d store.Document) (string, error)
	GetDocument(ctx context.Context, id string) (store.Document, error)
	UpdateDocumentStatus(ctx context.Context, id, status string, meta json.RawMessage) bool
	GetContactDocuments(ctx context.Context, contactID string) []store.Document
	SearchDocuments(ctx context.Context, query string, limit int) []store.Document
	ListDocuments(ctx context.Context) ([]store.Document, error)

	GetAnalytics(ctx context.Context) store.Analytics
}

// SearchIndex is the subset of *search.Gateway the handlers use.
type SearchIndex interface {
	Backend() string
	IndexDocument(ctx context.Context, d search.Document) bool
	Search(ctx context.Context, query string, filters map[string]any, limit int) search.Result
	GetByID(ctx context.Context, id string) (search.Record, bool)
	Delete(ctx context.Context, id string) bool
	Stats(ctx context.Context) (search.Stats, bool)
}

// ObjectStore is the subset of *objectstore.Store the handlers use.
type ObjectStore interface {
	DataBucket() string
	BackupBucket() string

	Upload(ctx context.Context, data []byte, key, bucket, contentType string, meta map[string]string) bool
	Download(ctx context.Context, key, bucket string) ([]byte, bool)
	HeadMetadata(ctx context.Context, key, bucket string) (objectstore.ObjectMeta, bool)
	Delete(ctx context.Context, key, bucket string) bool
	List(ctx context.Context, prefix, bucket string, maxKeys int) []objectstore.ObjectSummary
	PresignedURL(ctx context.Context, key, bucket string, expiry time.Duration) (string, bool)
	BucketExists(ctx context.Context, bucket string) bool
	BucketSizeStats(ctx context.Context, bucket string) objectstore.BucketStats
}

// Notifier announces new contact submissions.
type Notifier interface {
	NotifyContact(ctx context.Context, n ContactNotification) error
}

// ContactNotification is what a Notifier receives for each submission.
type ContactNotification struct {
	ContactID string
	Name      string
	Email     string
	Company   string
	Service   string
	Budget    string
	Message   string
	Timestamp time.Time
}
