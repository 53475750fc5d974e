package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"document-gateway/internal/extract"
	"document-gateway/internal/scoring"
	"document-gateway/internal/search"
	"document-gateway/internal/store"

	"go.uber.org/zap"
)

var errObjectUnavailable = errors.New("stored object unavailable")

// processingMetadata is written to documents.processing_metadata.
type processingMetadata struct {
	extract.Metadata
	ComplexityScore float64 `json:"complexity_score"`
	ProcessedAt     string  `json:"processed_at"`
}

type processResponse struct {
	DocumentID       string             `json:"document_id"`
	ProcessingStatus string             `json:"processing_status"`
	Metadata         processingMetadata `json:"metadata"`
	Indexed          bool               `json:"indexed"`
	ContactEnriched  bool               `json:"contact_enriched"`
}

// handleProcess runs the processing pipeline for one document
// synchronously. Any failure after the row is loaded marks it failed.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	log := s.requestLogger(r).With(zap.String("document_id", doc.ID))

	resp, err := s.processDocument(r.Context(), doc)
	if err != nil {
		log.Error("document processing failed", zap.Error(err))
		failure, _ := json.Marshal(map[string]string{
			"error":     err.Error(),
			"failed_at": isoTimestamp(time.Now()),
		})
		s.db.UpdateDocumentStatus(r.Context(), doc.ID, store.StatusFailed, failure)

		status := http.StatusInternalServerError
		if errors.Is(err, errObjectUnavailable) {
			status = http.StatusBadGateway
		}
		writeError(w, status, "processing failed: "+err.Error())
		return
	}

	log.Info("document processed",
		zap.Float64("complexity_score", resp.Metadata.ComplexityScore),
		zap.Bool("indexed", resp.Indexed),
		zap.Bool("contact_enriched", resp.ContactEnriched))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) processDocument(ctx context.Context, doc store.Document) (processResponse, error) {
	if !s.db.UpdateDocumentStatus(ctx, doc.ID, store.StatusProcessing, nil) {
		return processResponse{}, errors.New("could not mark document as processing")
	}

	data, ok := s.objects.Download(ctx, doc.Key, doc.Bucket)
	if !ok {
		return processResponse{}, fmt.Errorf("%w: %s/%s", errObjectUnavailable, doc.Bucket, doc.Key)
	}

	res, err := extract.Analyze(doc.Filename, doc.ContentType, data)
	if err != nil {
		return processResponse{}, fmt.Errorf("extract: %w", err)
	}

	now := time.Now().UTC()
	meta := processingMetadata{
		Metadata:        res.Metadata,
		ComplexityScore: scoring.Score(res.Metadata.Scoring()),
		ProcessedAt:     isoTimestamp(now),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return processResponse{}, fmt.Errorf("encode metadata: %w", err)
	}
	if !s.db.UpdateDocumentStatus(ctx, doc.ID, store.StatusCompleted, raw) {
		return processResponse{}, errors.New("could not mark document as completed")
	}

	indexed := s.search.IndexDocument(ctx, searchDocument(doc, res, meta.ComplexityScore, now))

	docs := s.db.GetContactDocuments(ctx, doc.ContactID)
	enriched := s.db.EnrichContact(ctx, doc.ContactID, contactInsights(docs, res.Metadata, meta.ComplexityScore))

	return processResponse{
		DocumentID:       doc.ID,
		ProcessingStatus: store.StatusCompleted,
		Metadata:         meta,
		Indexed:          indexed,
		ContactEnriched:  enriched,
	}, nil
}

func searchDocument(doc store.Document, res extract.Result, score float64, processedAt time.Time) search.Document {
	return search.Document{
		ID:                  doc.ID,
		ContactID:           doc.ContactID,
		Filename:            doc.Filename,
		DocumentType:        doc.DocumentType,
		Content:             res.Text,
		TextContent:         res.Text,
		UploadTimestamp:     isoTimestamp(doc.UploadTimestamp),
		ProcessingTimestamp: isoTimestamp(processedAt),
		Metadata: search.Metadata{
			WordCount:        res.Metadata.WordCount,
			CharacterCount:   res.Metadata.CharacterCount,
			FileExtension:    res.Metadata.FileExtension,
			LanguageDetected: res.Metadata.LanguageDetected,
			Keywords:         res.Metadata.Keywords,
		},
		Processing: search.Processing{
			Status:          store.StatusCompleted,
			ComplexityScore: score,
		},
		Storage: search.Storage{
			Bucket: doc.Bucket,
			Key:    doc.Key,
			Size:   doc.Size,
		},
	}
}

// contactInsights summarises docs (newest first) for the owning contact.
func contactInsights(docs []store.Document, meta extract.Metadata, score float64) store.DocumentInsights {
	insights := store.DocumentInsights{
		TotalDocuments:   len(docs),
		DocumentTypes:    []string{},
		ProcessingStatus: store.StatusCompleted,
		ContentAnalysis: store.ContentAnalysis{
			HasBusinessContent: meta.HasBusinessKeywords,
			ComplexityScore:    score,
			ConfidenceLevel:    store.ConfidenceLevel(meta.WordCount),
		},
	}
	seen := make(map[string]bool)
	for _, d := range docs {
		insights.TotalSize += d.Size
		if d.DocumentType != "" && !seen[d.DocumentType] {
			seen[d.DocumentType] = true
			insights.DocumentTypes = append(insights.DocumentTypes, d.DocumentType)
		}
	}
	sort.Strings(insights.DocumentTypes)
	if len(docs) > 0 {
		insights.LastDocumentUpload = isoTimestamp(docs[0].UploadTimestamp)
	}
	return insights
}
