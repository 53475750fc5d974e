package search

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Engine.Get for an unknown id.
var ErrNotFound = errors.New("search record not found")

// Query is an engine-level search request.
type Query struct {
	Text    string
	Filters map[string]any
	Limit   int
	// Sort holds "field:asc" or "field:desc" entries.
	Sort []string
}

// Page is an engine-level search response.
type Page struct {
	Records []Record
	Total   int64
}

// Engine is a search backend. Add must not return before the record is
// searchable.
type Engine interface {
	EnsureIndex(ctx context.Context) error
	Add(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) (Page, error)
	Get(ctx context.Context, id string) (Record, error)
	Remove(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
	Name() string
}

// Index attributes shared by every engine.
var (
	SearchableAttributes = []string{"filename", "text_content", "content", "document_type", "keywords", "description"}
	FilterableAttributes = []string{"contact_id", "document_type", "processing_status", "upload_timestamp", "file_extension"}
	SortableAttributes   = []string{"upload_timestamp", "processing_timestamp", "complexity_score"}
	RankingRules         = []string{"words", "typo", "proximity", "attribute", "sort", "exactness"}
)
