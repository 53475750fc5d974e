package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Analytics aggregates contact and document counts.
type Analytics struct {
	TotalContacts   int64            `json:"total_contacts"`
	TotalDocuments  int64            `json:"total_documents"`
	DocumentTypes   map[string]int64 `json:"document_types"`
	ProcessingStats map[string]int64 `json:"processing_stats"`
	Timestamp       time.Time        `json:"timestamp"`
}

func emptyAnalytics() Analytics {
	return Analytics{
		DocumentTypes:   map[string]int64{},
		ProcessingStats: map[string]int64{},
		Timestamp:       time.Now().UTC(),
	}
}

// docCount is one (type, status) group of the documents table.
type docCount struct {
	docType string
	status  string
	n       int64
}

// tallyDocuments folds grouped counts into a. The four well-known statuses
// are always present and every other status gets its own bucket.
func tallyDocuments(a *Analytics, groups []docCount) {
	for _, st := range []string{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		a.ProcessingStats[st] = 0
	}
	for _, g := range groups {
		a.TotalDocuments += g.n
		a.DocumentTypes[g.docType] += g.n
		a.ProcessingStats[g.status] += g.n
	}
}

// GetAnalytics returns totals plus per-type and per-status document counts.
// Document figures come from a single grouped statement so the status and
// type buckets each sum to TotalDocuments. Any failure yields zeroed
// analytics.
func (s *Store) GetAnalytics(ctx context.Context) Analytics {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a := emptyAnalytics()
	fail := func(err error) Analytics {
		s.log.Error("get analytics failed", zap.Error(classify("get analytics", err)))
		return emptyAnalytics()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_submissions`).Scan(&a.TotalContacts); err != nil {
		return fail(err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_type, processing_status, COUNT(*)
		   FROM documents
		  GROUP BY document_type, processing_status`)
	if err != nil {
		return fail(err)
	}
	defer rows.Close()

	var groups []docCount
	for rows.Next() {
		var g docCount
		if err := rows.Scan(&g.docType, &g.status, &g.n); err != nil {
			return fail(err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return fail(err)
	}

	tallyDocuments(&a, groups)
	return a
}
