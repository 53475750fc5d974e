package server

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"document-gateway/internal/objectstore"
	"document-gateway/internal/search"
	"document-gateway/internal/store"
)

// fakeDB is an in-memory RelationalStore.
type fakeDB struct {
	mu        sync.Mutex
	pingErr   error
	createErr error
	docErr    error
	listErr   error

	visitorsDown bool // counter reads and increments fail soft with 0

	contacts  map[string]store.Contact
	documents map[string]store.Document
	statuses  []string // status history across all documents
	insights  map[string]store.DocumentInsights
	visitors  int64
	analytics store.Analytics
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		contacts:  make(map[string]store.Contact),
		documents: make(map[string]store.Document),
		insights:  make(map[string]store.DocumentInsights),
	}
}

func (f *fakeDB) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeDB) InUse() int                     { return 2 }
func (f *fakeDB) PoolStats() map[string]any      { return map[string]any{"in_use": 2} }

func (f *fakeDB) CreateContact(ctx context.Context, c store.Contact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.contacts[c.ID] = c
	return c.ID, nil
}

func (f *fakeDB) EnrichContact(ctx context.Context, id string, in store.DocumentInsights) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[id]; !ok {
		return false
	}
	f.insights[id] = in
	return true
}

func (f *fakeDB) ListContacts(ctx context.Context) ([]store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]store.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeDB) IncrementVisitorCount(ctx context.Context) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visitorsDown {
		return 0
	}
	f.visitors++
	return f.visitors
}

func (f *fakeDB) GetVisitorCount(ctx context.Context) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visitorsDown {
		return 0
	}
	return f.visitors
}

func (f *fakeDB) CreateDocument(ctx context.Context, d store.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.documents[d.ID] = d
	return d.ID, nil
}

func (f *fakeDB) GetDocument(ctx context.Context, id string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docErr != nil {
		return store.Document{}, f.docErr
	}
	d, ok := f.documents[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeDB) UpdateDocumentStatus(ctx context.Context, id, status string, meta json.RawMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.documents[id]
	if !ok {
		return false
	}
	d.ProcessingStatus = status
	if meta != nil {
		d.ProcessingMetadata = meta
	}
	f.documents[id] = d
	f.statuses = append(f.statuses, status)
	return true
}

func (f *fakeDB) GetContactDocuments(ctx context.Context, contactID string) []store.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Document{}
	for _, d := range f.documents {
		if d.ContactID == contactID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadTimestamp.After(out[j].UploadTimestamp) })
	return out
}

func (f *fakeDB) SearchDocuments(ctx context.Context, q string, limit int) []store.Document {
	return []store.Document{}
}

func (f *fakeDB) ListDocuments(ctx context.Context) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]store.Document, 0, len(f.documents))
	for _, d := range f.documents {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDB) GetAnalytics(ctx context.Context) store.Analytics { return f.analytics }

// fakeSearch is an in-memory SearchIndex.
type fakeSearch struct {
	mu      sync.Mutex
	down    bool
	records map[string]search.Record

	lastQuery   string
	lastFilters map[string]any
	lastLimit   int
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{records: make(map[string]search.Record)}
}

func (f *fakeSearch) Backend() string { return "meilisearch" }

func (f *fakeSearch) IndexDocument(ctx context.Context, d search.Document) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false
	}
	f.records[d.ID] = search.Flatten(d)
	return true
}

func (f *fakeSearch) Search(ctx context.Context, q string, filters map[string]any, limit int) search.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery, f.lastFilters, f.lastLimit = q, filters, limit
	return search.Result{Results: []search.Hit{}, Query: q}
}

func (f *fakeSearch) GetByID(ctx context.Context, id string) (search.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r, ok
}

func (f *fakeSearch) Delete(ctx context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false
	}
	delete(f.records, id)
	return true
}

func (f *fakeSearch) Stats(ctx context.Context) (search.Stats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return search.Stats{}, false
	}
	return search.Stats{DocumentCount: int64(len(f.records))}, true
}

// fakeObjects is an in-memory ObjectStore.
type fakeObjects struct {
	mu      sync.Mutex
	down    bool
	objects map[string][]byte // bucket/key
	meta    map[string]map[string]string
	types   map[string]string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
		types:   make(map[string]string),
	}
}

func (f *fakeObjects) DataBucket() string   { return "website-documents" }
func (f *fakeObjects) BackupBucket() string { return "website-backups" }

func (f *fakeObjects) Upload(ctx context.Context, data []byte, key, bucket, contentType string, meta map[string]string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false
	}
	f.objects[bucket+"/"+key] = append([]byte(nil), data...)
	f.meta[bucket+"/"+key] = meta
	f.types[bucket+"/"+key] = contentType
	return true
}

func (f *fakeObjects) Download(ctx context.Context, key, bucket string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	return data, ok && !f.down
}

func (f *fakeObjects) HeadMetadata(ctx context.Context, key, bucket string) (objectstore.ObjectMeta, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	if !ok || f.down {
		return objectstore.ObjectMeta{}, false
	}
	return objectstore.ObjectMeta{
		Size:        int64(len(data)),
		ContentType: f.types[bucket+"/"+key],
		Metadata:    f.meta[bucket+"/"+key],
	}, true
}

func (f *fakeObjects) Delete(ctx context.Context, key, bucket string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false
	}
	delete(f.objects, bucket+"/"+key)
	return true
}

func (f *fakeObjects) List(ctx context.Context, prefix, bucket string, maxKeys int) []objectstore.ObjectSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []objectstore.ObjectSummary{}
	for k, v := range f.objects {
		b, key, _ := cutBucket(k)
		if b == bucket && len(key) >= len(prefix) && key[:len(prefix)] == prefix && len(out) < maxKeys {
			out = append(out, objectstore.ObjectSummary{Key: key, Size: int64(len(v))})
		}
	}
	return out
}

func cutBucket(k string) (bucket, key string, ok bool) {
	for i := 0; i < len(k); i++ {
		if k[i] == '/' {
			return k[:i], k[i+1:], true
		}
	}
	return k, "", false
}

func (f *fakeObjects) PresignedURL(ctx context.Context, key, bucket string, expiry time.Duration) (string, bool) {
	if f.down {
		return "", false
	}
	return "http://minio.test/" + bucket + "/" + key + "?X-Amz-Expires=" + expiry.String(), true
}

func (f *fakeObjects) BucketExists(ctx context.Context, bucket string) bool { return !f.down }

func (f *fakeObjects) BucketSizeStats(ctx context.Context, bucket string) objectstore.BucketStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := objectstore.BucketStats{Bucket: bucket}
	for k, v := range f.objects {
		if b, _, _ := cutBucket(k); b == bucket {
			st.FileCount++
			st.TotalSizeBytes += int64(len(v))
		}
	}
	return st
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []ContactNotification
}

func (f *fakeNotifier) NotifyContact(ctx context.Context, n ContactNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

var errBoom = errors.New("boom")

type testEnv struct {
	db       *fakeDB
	search   *fakeSearch
	objects  *fakeObjects
	notifier *fakeNotifier
	srv      *Server
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		db:       newFakeDB(),
		search:   newFakeSearch(),
		objects:  newFakeObjects(),
		notifier: &fakeNotifier{},
	}
	cfg := Config{
		Addr:           ":0",
		Build:          BuildInfo{Version: "4.0.0", Commit: "test"},
		AllowedOrigin:  "*",
		MaxUploadBytes: 1 << 20,
		DB:             env.db,
		Search:         env.search,
		Objects:        env.objects,
		Notifier:       env.notifier,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	env.srv = New(cfg)
	t.Cleanup(func() { env.srv.limiter.stop() })
	return env
}
