package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"document-gateway/internal/store"

	"github.com/google/uuid"
)

// seedDocument stores a document row and its object.
func seedDocument(env *testEnv, contactID, filename, contentType, body string, uploaded time.Time) store.Document {
	id := uuid.NewString()
	doc := store.Document{
		ID:               id,
		ContactID:        contactID,
		Filename:         filename,
		Size:             int64(len(body)),
		ContentType:      contentType,
		DocumentType:     "proposal",
		Tags:             []string{},
		UploadTimestamp:  uploaded,
		ProcessingStatus: store.StatusPending,
		Bucket:           env.objects.DataBucket(),
		Key:              documentKey(contactID, id, filename),
	}
	env.db.documents[id] = doc
	env.objects.objects[doc.Bucket+"/"+doc.Key] = []byte(body)
	env.objects.types[doc.Bucket+"/"+doc.Key] = contentType
	return doc
}

func TestGetDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(env, "contact_1_aaaaaaaa", "notes.txt", "text/plain", "some notes", time.Now())

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID+"?expires=600", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp documentResponse
	decodeBody(t, rr, &resp)
	if resp.Document.ID != doc.ID {
		t.Errorf("Expected document %s, got %s", doc.ID, resp.Document.ID)
	}
	if resp.Storage == nil || resp.Storage.Size != 10 {
		t.Errorf("Expected storage metadata, got %+v", resp.Storage)
	}
	if resp.SearchRecord != nil {
		t.Error("Expected no search record for an unprocessed document")
	}
	if resp.ExpiresIn != 600 || !strings.Contains(resp.DownloadURL, "10m0s") {
		t.Errorf("Expected 600s presigned url, got %d %q", resp.ExpiresIn, resp.DownloadURL)
	}
}

func TestGetDocument_NonCanonicalID(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(env, "contact_1_aaaaaaaa", "notes.txt", "text/plain", "some notes", time.Now())

	for _, id := range []string{"urn:uuid:" + doc.ID, strings.ToUpper(doc.ID), strings.ReplaceAll(doc.ID, "-", "")} {
		t.Run(id, func(t *testing.T) {
			rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp documentResponse
			decodeBody(t, rr, &resp)
			if resp.Document.ID != doc.ID {
				t.Errorf("Expected document %s, got %s", doc.ID, resp.Document.ID)
			}
		})
	}
}

func TestGetDocument_Errors(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		dbErr error
		want  int
	}{
		{"invalid id", "/documents/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown id", "/documents/" + uuid.NewString(), nil, http.StatusNotFound},
		{"db down", "/documents/" + uuid.NewString(), store.ErrConnection, http.StatusServiceUnavailable},
		{"bad expiry", "/documents/" + uuid.NewString() + "?expires=0", nil, http.StatusBadRequest},
		{"expiry too long", "/documents/" + uuid.NewString() + "?expires=999999", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.db.docErr = tt.dbErr
			rr := serve(t, env, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(env, "contact_1_aaaaaaaa", "report final.txt", "text/plain", "payload", time.Now())

	req := httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID+"/download", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := serve(t, env, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "payload" {
		t.Errorf("Expected raw payload, got %q", rr.Body.String())
	}
	if rr.Header().Get("Content-Encoding") != "" {
		t.Error("Downloads must not be gzip encoded")
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="report final.txt"`) {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
}

func TestDownload_MissingObject(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(env, "contact_1_aaaaaaaa", "a.txt", "text/plain", "x", time.Now())
	delete(env.objects.objects, doc.Bucket+"/"+doc.Key)

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID+"/download", nil))
	if rr.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rr.Code)
	}
}

func TestContactDocuments(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	older := seedDocument(env, "contact_1_aaaaaaaa", "old.txt", "text/plain", "a", now.Add(-time.Hour))
	newer := seedDocument(env, "contact_1_aaaaaaaa", "new.txt", "text/plain", "b", now)
	seedDocument(env, "contact_2_bbbbbbbb", "other.txt", "text/plain", "c", now)

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/contacts/contact_1_aaaaaaaa/documents", nil))
	var resp struct {
		ContactID  string           `json:"contact_id"`
		Documents  []store.Document `json:"documents"`
		TotalCount int              `json:"total_count"`
	}
	decodeBody(t, rr, &resp)
	if resp.TotalCount != 2 || len(resp.Documents) != 2 {
		t.Fatalf("Expected 2 documents, got %d", resp.TotalCount)
	}
	if resp.Documents[0].ID != newer.ID || resp.Documents[1].ID != older.ID {
		t.Error("Expected newest document first")
	}

	rr = serve(t, env, httptest.NewRequest(http.MethodGet, "/contacts/contact_9_none/documents", nil))
	if !strings.Contains(rr.Body.String(), `"documents":[]`) {
		t.Errorf("Expected empty list for unknown contact, got %s", rr.Body.String())
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	rr := serve(t, env, postJSON("/documents/search",
		`{"query":"invoice","filters":{"document_type":"proposal","word_count":10},"limit":5}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if env.search.lastQuery != "invoice" || env.search.lastLimit != 5 {
		t.Errorf("Unexpected query forwarded: %q limit %d", env.search.lastQuery, env.search.lastLimit)
	}
	if env.search.lastFilters["document_type"] != "proposal" {
		t.Errorf("Expected filters to be forwarded, got %v", env.search.lastFilters)
	}

	var res map[string]json.RawMessage
	decodeBody(t, rr, &res)
	for _, k := range []string{"results", "total_count", "query", "processing_time"} {
		if _, ok := res[k]; !ok {
			t.Errorf("Expected %q in search response", k)
		}
	}
	if string(res["results"]) != "[]" {
		t.Errorf("Expected empty results list, got %s", res["results"])
	}
}

func TestSearch_Validation(t *testing.T) {
	env := newTestEnv(t)
	rr := serve(t, env, postJSON("/documents/search", `{"query":"x","limit":500}`))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for oversize limit, got %d", rr.Code)
	}
}

func TestDatabaseSearch(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/documents/search?q=report", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"source":"database"`) {
		t.Errorf("Unexpected body %s", rr.Body.String())
	}

	rr = serve(t, env, httptest.NewRequest(http.MethodGet, "/documents/search", nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 without q, got %d", rr.Code)
	}
	rr = serve(t, env, httptest.NewRequest(http.MethodGet, "/documents/search?q=x&limit=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", rr.Code)
	}
}
