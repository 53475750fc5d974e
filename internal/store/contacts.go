package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// NotSpecified fills optional contact fields left blank by the submitter.
const NotSpecified = "Not specified"

// CreateContact inserts c and returns its id. Blank optional fields are
// defaulted before the insert. Failures are returned, never swallowed.
func (s *Store) CreateContact(ctx context.Context, c Contact) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c = withContactDefaults(c)

	var id string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO contact_submissions
			   (id, name, email, company, service, budget, message, timestamp,
			    status, source, user_agent, page_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id`,
			c.ID, c.Name, c.Email, c.Company, c.Service, c.Budget, c.Message, c.Timestamp,
			c.Status, c.Source, c.UserAgent, c.PageURL,
		).Scan(&id)
	})
	if err != nil {
		err = classify("create contact", err)
		s.log.Error("create contact failed", zap.String("contact_id", c.ID), zap.Error(err))
		return "", err
	}

	s.log.Info("contact created", zap.String("contact_id", id))
	return id, nil
}

func withContactDefaults(c Contact) Contact {
	if c.Company == "" {
		c.Company = NotSpecified
	}
	if c.Service == "" {
		c.Service = NotSpecified
	}
	if c.Budget == "" {
		c.Budget = NotSpecified
	}
	if c.Source == "" {
		c.Source = "website"
	}
	if c.Status == "" {
		c.Status = "new"
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	return c
}

// GetContact loads one contact. The error wraps ErrNotFound when the id is
// unknown.
func (s *Store) GetContact(ctx context.Context, id string) (Contact, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		c        Contact
		insights []byte
		updated  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, company, service, budget, message, timestamp,
		        status, source, user_agent, page_url, document_insights, last_updated
		   FROM contact_submissions
		  WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Company, &c.Service, &c.Budget, &c.Message, &c.Timestamp,
		&c.Status, &c.Source, &c.UserAgent, &c.PageURL, &insights, &updated)
	if err != nil {
		return Contact{}, classify("get contact", err)
	}
	if len(insights) > 0 {
		c.DocumentInsights = json.RawMessage(insights)
	}
	if updated.Valid {
		t := updated.Time
		c.LastUpdated = &t
	}
	return c, nil
}

// ContentAnalysis summarises the most recently processed document.
type ContentAnalysis struct {
	HasBusinessContent bool    `json:"has_business_content"`
	ComplexityScore    float64 `json:"complexity_score"`
	ConfidenceLevel    string  `json:"confidence_level"`
}

// DocumentInsights is the enrichment written onto a contact after one of its
// documents has been processed.
type DocumentInsights struct {
	TotalDocuments     int             `json:"total_documents"`
	DocumentTypes      []string        `json:"document_types"`
	TotalSize          int64           `json:"total_size"`
	LastDocumentUpload string          `json:"last_document_upload,omitempty"`
	ProcessingStatus   string          `json:"processing_status"`
	ContentAnalysis    ContentAnalysis `json:"content_analysis"`
}

// ConfidenceLevel grades how much text backed an analysis.
func ConfidenceLevel(wordCount int) string {
	if wordCount > 100 {
		return "high"
	}
	return "medium"
}

// EnrichContact stores insights on the contact and stamps last_updated.
// It reports false when the contact is unknown or the write fails.
func (s *Store) EnrichContact(ctx context.Context, contactID string, insights DocumentInsights) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	payload, err := json.Marshal(insights)
	if err != nil {
		s.log.Error("encode insights failed", zap.String("contact_id", contactID), zap.Error(err))
		return false
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contact_submissions
		    SET document_insights = $1::jsonb, last_updated = now()
		  WHERE id = $2`, string(payload), contactID)
	if err != nil {
		s.log.Error("enrich contact failed", zap.String("contact_id", contactID), zap.Error(classify("enrich contact", err)))
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// ListContacts returns every contact, newest first. It is used for
// snapshots and propagates failures.
func (s *Store) ListContacts(ctx context.Context) ([]Contact, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, company, service, budget, message, timestamp,
		        status, source, user_agent, page_url, document_insights
		   FROM contact_submissions
		  ORDER BY timestamp DESC`)
	if err != nil {
		return nil, classify("list contacts", err)
	}
	defer rows.Close()

	out := []Contact{}
	for rows.Next() {
		var (
			c        Contact
			insights []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Company, &c.Service, &c.Budget, &c.Message,
			&c.Timestamp, &c.Status, &c.Source, &c.UserAgent, &c.PageURL, &insights); err != nil {
			return nil, classify("scan contact", err)
		}
		if len(insights) > 0 {
			c.DocumentInsights = json.RawMessage(insights)
		}
		out = append(out, c)
	}
	return out, classify("list contacts", rows.Err())
}
