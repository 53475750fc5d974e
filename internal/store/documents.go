package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CreateDocument inserts d and returns its id. Tags are stored as a JSON
// array. A missing contact or a reused bucket/key pair yields ErrConstraint.
func (s *Store) CreateDocument(ctx context.Context, d Document) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if d.Tags == nil {
		d.Tags = []string{}
	}
	tags, err := json.Marshal(d.Tags)
	if err != nil {
		return "", err
	}
	if d.ProcessingStatus == "" {
		d.ProcessingStatus = StatusPending
	}
	if d.UploadTimestamp.IsZero() {
		d.UploadTimestamp = time.Now().UTC()
	}

	var id string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO documents
			   (id, contact_id, filename, size, content_type, document_type, description,
			    tags, upload_timestamp, processing_status, s3_bucket, s3_key, file_hash)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13)
			 RETURNING id`,
			d.ID, d.ContactID, d.Filename, d.Size, d.ContentType, d.DocumentType, d.Description,
			string(tags), d.UploadTimestamp, d.ProcessingStatus, d.Bucket, d.Key, d.FileHash,
		).Scan(&id)
	})
	if err != nil {
		err = classify("create document", err)
		s.log.Error("create document failed",
			zap.String("document_id", d.ID),
			zap.String("contact_id", d.ContactID),
			zap.String("key", d.Key),
			zap.Error(err))
		return "", err
	}

	s.log.Info("document created", zap.String("document_id", id), zap.String("contact_id", d.ContactID))
	return id, nil
}

// GetDocument loads a full document row. The error wraps ErrNotFound when
// the id is unknown.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		d         Document
		tags      []byte
		meta      []byte
		processed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, contact_id, filename, size, content_type, document_type, description, tags,
		        upload_timestamp, processing_status, processing_timestamp, processing_metadata,
		        s3_bucket, s3_key, file_hash
		   FROM documents
		  WHERE id = $1`, id,
	).Scan(&d.ID, &d.ContactID, &d.Filename, &d.Size, &d.ContentType, &d.DocumentType, &d.Description, &tags,
		&d.UploadTimestamp, &d.ProcessingStatus, &processed, &meta,
		&d.Bucket, &d.Key, &d.FileHash)
	if err != nil {
		return Document{}, classify("get document", err)
	}

	d.Tags = decodeTags(tags)
	if len(meta) > 0 {
		d.ProcessingMetadata = json.RawMessage(meta)
	}
	if processed.Valid {
		t := processed.Time
		d.ProcessingTimestamp = &t
	}
	return d, nil
}

// UpdateDocumentStatus overwrites the processing status unconditionally and
// stamps the processing time. meta replaces the stored metadata when
// non-nil. It reports false when no row matched or the update failed.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id, status string, meta json.RawMessage) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var metaArg any
	if meta != nil {
		metaArg = string(meta)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents
		    SET processing_status = $1,
		        processing_timestamp = now(),
		        processing_metadata = COALESCE($2::jsonb, processing_metadata)
		  WHERE id = $3`, status, metaArg, id)
	if err != nil {
		s.log.Error("update document status failed",
			zap.String("document_id", id),
			zap.String("status", status),
			zap.Error(classify("update document status", err)))
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// GetContactDocuments lists a contact's documents, newest upload first. An
// unknown contact and a failed query both yield an empty list.
func (s *Store) GetContactDocuments(ctx context.Context, contactID string) []Document {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, document_type, description, tags, upload_timestamp, processing_status, size
		   FROM documents
		  WHERE contact_id = $1
		  ORDER BY upload_timestamp DESC`, contactID)
	if err != nil {
		s.log.Error("get contact documents failed", zap.String("contact_id", contactID), zap.Error(classify("get contact documents", err)))
		return []Document{}
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var (
			d    Document
			tags []byte
		)
		if err := rows.Scan(&d.ID, &d.Filename, &d.DocumentType, &d.Description, &tags,
			&d.UploadTimestamp, &d.ProcessingStatus, &d.Size); err != nil {
			s.log.Error("scan contact document failed", zap.String("contact_id", contactID), zap.Error(err))
			return []Document{}
		}
		d.Tags = decodeTags(tags)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		s.log.Error("iterate contact documents failed", zap.String("contact_id", contactID), zap.Error(err))
		return []Document{}
	}
	return out
}

// SearchDocuments matches query case-insensitively against filename,
// description and document type, newest upload first.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) []Document {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(query) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, filename, document_type, description, tags, upload_timestamp, processing_status, size
		   FROM documents
		  WHERE filename ILIKE $1 OR description ILIKE $1 OR document_type ILIKE $1
		  ORDER BY upload_timestamp DESC
		  LIMIT $2`, pattern, limit)
	if err != nil {
		s.log.Error("search documents failed", zap.String("query", query), zap.Error(classify("search documents", err)))
		return []Document{}
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var (
			d    Document
			tags []byte
		)
		if err := rows.Scan(&d.ID, &d.ContactID, &d.Filename, &d.DocumentType, &d.Description, &tags,
			&d.UploadTimestamp, &d.ProcessingStatus, &d.Size); err != nil {
			s.log.Error("scan document failed", zap.Error(err))
			return []Document{}
		}
		d.Tags = decodeTags(tags)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		s.log.Error("iterate documents failed", zap.Error(err))
		return []Document{}
	}
	return out
}

// ListDocuments returns every document row, newest first. It is used for
// snapshots and propagates failures.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, filename, size, content_type, document_type, description, tags,
		        upload_timestamp, processing_status, s3_bucket, s3_key
		   FROM documents
		  ORDER BY upload_timestamp DESC`)
	if err != nil {
		return nil, classify("list documents", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var (
			d    Document
			tags []byte
		)
		if err := rows.Scan(&d.ID, &d.ContactID, &d.Filename, &d.Size, &d.ContentType, &d.DocumentType,
			&d.Description, &tags, &d.UploadTimestamp, &d.ProcessingStatus, &d.Bucket, &d.Key); err != nil {
			return nil, classify("scan document", err)
		}
		d.Tags = decodeTags(tags)
		out = append(out, d)
	}
	return out, classify("list documents", rows.Err())
}

func decodeTags(raw []byte) []string {
	tags := []string{}
	if len(raw) == 0 {
		return tags
	}
	if err := json.Unmarshal(raw, &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

// escapeLike neutralises LIKE wildcards in user input so they match
// literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
