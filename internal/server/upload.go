package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"document-gateway/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

type uploadResponse struct {
	DocumentID       string `json:"document_id"`
	Filename         string `json:"filename"`
	Size             int64  `json:"size"`
	ContentType      string `json:"content_type"`
	UploadTimestamp  string `json:"upload_timestamp"`
	ProcessingStatus string `json:"processing_status"`
	ContactID        string `json:"contact_id"`
	StoragePath      string `json:"storage_path"`
}

// documentKey is documents/<contact_id>/<document_id>_<filename>.
func documentKey(contactID, documentID, filename string) string {
	return fmt.Sprintf("documents/%s/%s_%s", contactID, documentID, filename)
}

// handleUpload stores the file in the data bucket and then inserts the
// document row. A failed insert leaves the object in place.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := uploadForm{
		ContactID:    strings.TrimSpace(r.FormValue("contact_id")),
		DocumentType: strings.TrimSpace(r.FormValue("document_type")),
		Description:  r.FormValue("description"),
		Tags:         r.FormValue("tags"),
	}
	if err := s.checkStruct(form); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	filename := SanitizeFilename(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := ValidateUploadMimeType(filename, contentType); err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	ctx := r.Context()
	log := s.requestLogger(r)
	now := time.Now().UTC()
	documentID := uuid.NewString()
	bucket := s.objects.DataBucket()
	key := documentKey(form.ContactID, documentID, filename)

	meta := map[string]string{
		"contact-id":       form.ContactID,
		"document-type":    form.DocumentType,
		"original-name":    filename,
		"upload-timestamp": isoTimestamp(now),
	}
	if !s.objects.Upload(ctx, content, key, bucket, contentType, meta) {
		s.metrics.DocumentUploaded(form.DocumentType, "error")
		writeError(w, http.StatusBadGateway, "failed to store document")
		return
	}

	doc := store.Document{
		ID:               documentID,
		ContactID:        form.ContactID,
		Filename:         filename,
		Size:             int64(len(content)),
		ContentType:      contentType,
		DocumentType:     form.DocumentType,
		Description:      form.Description,
		Tags:             splitTags(form.Tags),
		UploadTimestamp:  now,
		ProcessingStatus: store.StatusPending,
		Bucket:           bucket,
		Key:              key,
		FileHash:         sha256Hex(content),
	}
	if _, err := s.db.CreateDocument(ctx, doc); err != nil {
		s.metrics.DocumentUploaded(form.DocumentType, "error")
		log.Error("document insert failed, object left in storage",
			zap.String("document_id", documentID),
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record document: "+err.Error())
		return
	}

	s.metrics.DocumentUploaded(form.DocumentType, "success")
	log.Info("document uploaded",
		zap.String("document_id", documentID),
		zap.String("contact_id", form.ContactID),
		zap.Int64("size", doc.Size))

	writeJSON(w, http.StatusOK, uploadResponse{
		DocumentID:       documentID,
		Filename:         filename,
		Size:             doc.Size,
		ContentType:      contentType,
		UploadTimestamp:  isoTimestamp(now),
		ProcessingStatus: store.StatusPending,
		ContactID:        form.ContactID,
		StoragePath:      fmt.Sprintf("s3://%s/%s", bucket, key),
	})
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
