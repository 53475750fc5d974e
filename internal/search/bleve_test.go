package search

import (
	"context"
	"testing"
)

func newBleveGateway(t *testing.T) *Gateway {
	t.Helper()
	eng, err := OpenBleve("")
	if err != nil {
		t.Fatalf("OpenBleve: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	g := New(eng, nil, 0)
	if err := g.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	return g
}

func seed(t *testing.T, g *Gateway, docs ...Document) {
	t.Helper()
	for _, d := range docs {
		if !g.IndexDocument(context.Background(), d) {
			t.Fatalf("IndexDocument(%s) failed", d.ID)
		}
	}
}

func TestBleveSearchAndFilter(t *testing.T) {
	g := newBleveGateway(t)
	ctx := context.Background()

	seed(t, g,
		Document{
			ID: "d1", ContactID: "c1", Filename: "proposal.pdf", DocumentType: "proposal",
			TextContent:     "quarterly budget proposal for the website redesign",
			UploadTimestamp: "2024-01-01T10:00:00.000000Z",
			Processing:      Processing{Status: "completed"},
		},
		Document{
			ID: "d2", ContactID: "c2", Filename: "invoice.txt", DocumentType: "invoice",
			TextContent:     "invoice for consulting budget",
			UploadTimestamp: "2024-02-01T10:00:00.000000Z",
			Processing:      Processing{Status: "completed"},
		},
	)

	res := g.Search(ctx, "budget", nil, 10)
	if res.TotalCount != 2 {
		t.Fatalf("Expected 2 hits, got %d", res.TotalCount)
	}
	if res.Results[0].DocumentID != "d2" {
		t.Errorf("Expected newest upload first, got %s", res.Results[0].DocumentID)
	}

	res = g.Search(ctx, "budget", map[string]any{"contact_id": "c1"}, 10)
	if res.TotalCount != 1 || res.Results[0].DocumentID != "d1" {
		t.Errorf("filter not applied: %+v", res)
	}

	res = g.Search(ctx, "xylophone", nil, 10)
	if len(res.Results) != 0 {
		t.Errorf("Expected no hits, got %+v", res.Results)
	}
}

func TestBleveGetDeleteStats(t *testing.T) {
	g := newBleveGateway(t)
	ctx := context.Background()

	seed(t, g, Document{
		ID: "d1", ContactID: "c1", Filename: "notes.txt",
		Metadata: Metadata{WordCount: 3, Keywords: []string{"alpha", "beta"}},
		Storage:  Storage{Bucket: "documents", Key: "documents/c1/d1_notes.txt", Size: 17},
	})

	rec, ok := g.GetByID(ctx, "d1")
	if !ok {
		t.Fatal("Expected record")
	}
	if rec.ContactID != "c1" || rec.WordCount != 3 || rec.Size != 17 || len(rec.Keywords) != 2 {
		t.Errorf("record not restored: %+v", rec)
	}
	if rec.LanguageDetected != "en" || rec.ProcessingStatus != "unknown" {
		t.Errorf("defaults not applied: %+v", rec)
	}

	st, ok := g.Stats(ctx)
	if !ok || st.DocumentCount != 1 || st.IsIndexing {
		t.Errorf("unexpected stats: %+v ok=%v", st, ok)
	}

	if !g.Delete(ctx, "d1") {
		t.Fatal("delete failed")
	}
	if _, ok := g.GetByID(ctx, "d1"); ok {
		t.Error("Expected record to be gone")
	}
}

func TestBleveSort(t *testing.T) {
	got := bleveSort([]string{"upload_timestamp:desc", "complexity_score:asc", "size"})
	want := []string{"-upload_timestamp", "complexity_score", "size"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bleveSort[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecodeHit(t *testing.T) {
	rec, err := decodeHit(map[string]any{"id": "d1", "filename": "a.txt", "size": float64(5)})
	if err != nil {
		t.Fatalf("decodeHit: %v", err)
	}
	if rec.ID != "d1" || rec.Filename != "a.txt" || rec.Size != 5 {
		t.Errorf("unexpected record: %+v", rec)
	}
}
