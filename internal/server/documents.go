package server

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"document-gateway/internal/objectstore"
	"document-gateway/internal/search"
	"document-gateway/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPresignSeconds = 3600
	maxPresignSeconds     = 7 * 24 * 3600
	defaultDBSearchLimit  = 10
	maxDBSearchLimit      = 100
)

// loadDocument resolves the {document_id} path value and writes the error
// response itself when the row cannot be returned.
func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (store.Document, bool) {
	u, err := uuid.Parse(r.PathValue("document_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return store.Document{}, false
	}
	// uuid.Parse also takes urn and braced forms; the store only knows the canonical one.
	doc, err := s.db.GetDocument(r.Context(), u.String())
	switch {
	case err == nil:
		return doc, true
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, store.ErrConnection):
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
	return store.Document{}, false
}

type documentResponse struct {
	Document     store.Document          `json:"document"`
	SearchRecord *search.Record          `json:"search_record,omitempty"`
	Storage      *objectstore.ObjectMeta `json:"storage,omitempty"`
	DownloadURL  string                  `json:"download_url,omitempty"`
	ExpiresIn    int                     `json:"expires_in"`
}

// handleGetDocument merges the relational row with whatever the index and
// the object store know about it. Missing pieces are omitted.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	expires := defaultPresignSeconds
	if raw := r.URL.Query().Get("expires"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPresignSeconds {
			writeError(w, http.StatusBadRequest, "expires must be between 1 and 604800 seconds")
			return
		}
		expires = n
	}

	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	resp := documentResponse{Document: doc, ExpiresIn: expires}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		if rec, ok := s.search.GetByID(ctx, doc.ID); ok {
			resp.SearchRecord = &rec
		}
		return nil
	})
	g.Go(func() error {
		if meta, ok := s.objects.HeadMetadata(ctx, doc.Key, doc.Bucket); ok {
			resp.Storage = &meta
		}
		return nil
	})
	g.Go(func() error {
		if url, ok := s.objects.PresignedURL(ctx, doc.Key, doc.Bucket, time.Duration(expires)*time.Second); ok {
			resp.DownloadURL = url
		}
		return nil
	})
	_ = g.Wait()

	writeJSON(w, http.StatusOK, resp)
}

// handleDownload streams the stored bytes as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	data, ok := s.objects.Download(r.Context(), doc.Key, doc.Bucket)
	if !ok {
		writeError(w, http.StatusBadGateway, "storage error")
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleContactDocuments lists a contact's documents, newest first.
func (s *Server) handleContactDocuments(w http.ResponseWriter, r *http.Request) {
	contactID := r.PathValue("contact_id")
	docs := s.db.GetContactDocuments(r.Context(), contactID)
	writeJSON(w, http.StatusOK, map[string]any{
		"contact_id":  contactID,
		"documents":   docs,
		"total_count": len(docs),
	})
}

// handleDatabaseSearch is the relational substring search over filename,
// description and document type.
func (s *Server) handleDatabaseSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusUnprocessableEntity, "q is required")
		return
	}
	limit, ok := parseLimit(r.URL.Query().Get("limit"), defaultDBSearchLimit, maxDBSearchLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}

	docs := s.db.SearchDocuments(r.Context(), q, limit)
	s.metrics.SearchQueried()
	writeJSON(w, http.StatusOK, map[string]any{
		"results":     docs,
		"total_count": len(docs),
		"query":       q,
		"source":      "database",
	})
}

// handleSearch runs a full-text query against the search index.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res := s.search.Search(r.Context(), req.Query, req.Filters, req.Limit)
	s.metrics.SearchQueried()
	writeJSON(w, http.StatusOK, res)
}

func parseLimit(raw string, def, upper int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > upper {
		return 0, false
	}
	return n, true
}
