// Package search is the search gateway. It flattens documents into index
// records and queries them through a pluggable Engine.
//
// Every method except EnsureIndex is fail-soft: errors are logged and an
// empty or false result is returned.
package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultLimit caps a search when the caller passes no limit.
const DefaultLimit = 10

// Gateway fronts one Engine.
type Gateway struct {
	engine  Engine
	log     *zap.Logger
	timeout time.Duration
}

// New returns a Gateway over engine.
func New(engine Engine, log *zap.Logger, timeout time.Duration) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{engine: engine, log: log.Named("search"), timeout: timeout}
}

// Backend names the engine in use.
func (g *Gateway) Backend() string { return g.engine.Name() }

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

// EnsureIndex creates and configures the index if it does not exist.
func (g *Gateway) EnsureIndex(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return g.engine.EnsureIndex(ctx)
}

// IndexDocument flattens d and adds it, waiting until it is searchable.
func (g *Gateway) IndexDocument(ctx context.Context, d Document) bool {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.engine.Add(ctx, Flatten(d)); err != nil {
		g.log.Error("index document failed", zap.String("document_id", d.ID), zap.Error(err))
		return false
	}
	return true
}

// Search runs a free-text query, newest uploads first.
func (g *Gateway) Search(ctx context.Context, query string, filters map[string]any, limit int) Result {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = DefaultLimit
	}

	start := time.Now()
	page, err := g.engine.Query(ctx, Query{
		Text:    query,
		Filters: filters,
		Limit:   limit,
		Sort:    []string{"upload_timestamp:desc"},
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		g.log.Error("search failed", zap.String("query", query), zap.Error(err))
		return Result{Results: []Hit{}, Query: query, ProcessingTime: elapsed}
	}

	hits := make([]Hit, 0, len(page.Records))
	for _, r := range page.Records {
		hits = append(hits, hitFrom(r))
	}
	return Result{
		Results:        hits,
		TotalCount:     page.Total,
		Query:          query,
		ProcessingTime: elapsed,
	}
}

// GetByID returns the indexed record for id.
func (g *Gateway) GetByID(ctx context.Context, id string) (Record, bool) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	rec, err := g.engine.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			g.log.Error("get indexed document failed", zap.String("document_id", id), zap.Error(err))
		}
		return Record{}, false
	}
	return rec, true
}

// Delete removes id from the index.
func (g *Gateway) Delete(ctx context.Context, id string) bool {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.engine.Remove(ctx, id); err != nil {
		g.log.Error("delete indexed document failed", zap.String("document_id", id), zap.Error(err))
		return false
	}
	return true
}

// Stats reports the document count and whether indexing is in progress.
func (g *Gateway) Stats(ctx context.Context) (Stats, bool) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	st, err := g.engine.Stats(ctx)
	if err != nil {
		g.log.Error("index stats failed", zap.Error(err))
		return Stats{}, false
	}
	if st.LastUpdate.IsZero() {
		st.LastUpdate = time.Now().UTC()
	}
	return st, true
}
