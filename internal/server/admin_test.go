package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"document-gateway/internal/search"
	"document-gateway/internal/store"
)

func TestSystemInfo(t *testing.T) {
	env := newTestEnv(t)
	seedDocument(env, "contact_1_aaaaaaaa", "a.txt", "text/plain", "12345", time.Now())

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/admin/system-info", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var info systemInfo
	decodeBody(t, rr, &info)
	if info.Version != "4.0.0" || info.Architecture != "opensource" {
		t.Errorf("Unexpected info %+v", info)
	}
	data := info.StorageStats["data_bucket"]
	if data.FileCount != 1 || data.TotalSizeBytes != 5 {
		t.Errorf("Unexpected data bucket stats %+v", data)
	}
	if info.Services["search"] != "meilisearch" {
		t.Errorf("Unexpected services %v", info.Services)
	}
	if info.SearchStats == nil {
		t.Error("Expected search stats")
	}
}

func TestListStorage(t *testing.T) {
	env := newTestEnv(t)
	seedDocument(env, "contact_1_aaaaaaaa", "a.txt", "text/plain", "a", time.Now())
	seedDocument(env, "contact_2_bbbbbbbb", "b.txt", "text/plain", "b", time.Now())

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/admin/storage?prefix=documents/contact_1_", nil))
	var resp struct {
		Bucket string `json:"bucket"`
		Count  int    `json:"count"`
	}
	decodeBody(t, rr, &resp)
	if resp.Bucket != "website-documents" || resp.Count != 1 {
		t.Errorf("Expected one object in data bucket, got %+v", resp)
	}

	rr = serve(t, env, httptest.NewRequest(http.MethodGet, "/admin/storage?max_keys=-1", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad max_keys, got %d", rr.Code)
	}
}

func TestDeleteObject(t *testing.T) {
	env := newTestEnv(t)
	doc := seedDocument(env, "contact_1_aaaaaaaa", "a.txt", "text/plain", "a", time.Now())

	rr := serve(t, env, httptest.NewRequest(http.MethodDelete, "/admin/storage/"+doc.Key, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if _, ok := env.objects.objects[doc.Bucket+"/"+doc.Key]; ok {
		t.Error("Expected object to be deleted")
	}

	env.objects.down = true
	rr = serve(t, env, httptest.NewRequest(http.MethodDelete, "/admin/storage/whatever", nil))
	if rr.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rr.Code)
	}
}

func TestDeleteSearchRecord(t *testing.T) {
	env := newTestEnv(t)
	env.search.records["doc-1"] = search.Record{ID: "doc-1"}

	rr := serve(t, env, httptest.NewRequest(http.MethodDelete, "/admin/search/doc-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if _, ok := env.search.records["doc-1"]; ok {
		t.Error("Expected record to be removed")
	}
}

func TestBackup(t *testing.T) {
	env := newTestEnv(t)
	env.db.contacts["contact_1_aaaaaaaa"] = store.Contact{ID: "contact_1_aaaaaaaa", Name: "Ada"}
	seedDocument(env, "contact_1_aaaaaaaa", "a.txt", "text/plain", "a", time.Now())

	rr := serve(t, env, httptest.NewRequest(http.MethodPost, "/admin/backup", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp backupResponse
	decodeBody(t, rr, &resp)
	if resp.Bucket != "website-backups" || !strings.HasPrefix(resp.Key, "backups/snapshot-") {
		t.Errorf("Unexpected location %s/%s", resp.Bucket, resp.Key)
	}

	payload := env.objects.objects[resp.Bucket+"/"+resp.Key]
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Expected gzip payload: %v", err)
	}
	var snap snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		t.Fatalf("Expected JSON snapshot: %v", err)
	}
	if len(snap.Contacts) != 1 || len(snap.Documents) != 1 || snap.Contacts[0].Name != "Ada" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestBackup_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.db.listErr = store.ErrConnection
	if rr := serve(t, env, httptest.NewRequest(http.MethodPost, "/admin/backup", nil)); rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 when listing fails, got %d", rr.Code)
	}

	env = newTestEnv(t)
	env.objects.down = true
	if rr := serve(t, env, httptest.NewRequest(http.MethodPost, "/admin/backup", nil)); rr.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 when the upload fails, got %d", rr.Code)
	}
}

func TestAnalyticsAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.db.visitors = 3
	env.db.analytics = store.Analytics{
		TotalContacts:   2,
		TotalDocuments:  4,
		DocumentTypes:   map[string]int64{"proposal": 4},
		ProcessingStats: map[string]int64{"pending": 1, "processing": 0, "completed": 3, "failed": 0},
	}

	rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/analytics/insights", nil))
	var a store.Analytics
	decodeBody(t, rr, &a)
	if a.TotalDocuments != 4 || a.ProcessingStats["completed"] != 3 {
		t.Errorf("Unexpected analytics %+v", a)
	}

	rr = serve(t, env, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats struct {
		VisitorCount     int64 `json:"visitor_count"`
		EnhancedFeatures bool  `json:"enhanced_features"`
	}
	decodeBody(t, rr, &stats)
	if stats.VisitorCount != 3 || !stats.EnhancedFeatures {
		t.Errorf("Unexpected stats %+v", stats)
	}
}
