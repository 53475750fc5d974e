package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"
)

// taskPollInterval is how often WaitForTask polls the task endpoint.
const taskPollInterval = 50 * time.Millisecond

var meiliRetrieve = []string{
	"id", "contact_id", "filename", "document_type", "text_content",
	"upload_timestamp", "processing_status", "complexity_score", "keywords", "size",
}

// MeiliEngine stores records in one Meilisearch index.
type MeiliEngine struct {
	client meilisearch.ServiceManager
	uid    string
}

// NewMeiliEngine connects lazily to the Meilisearch server at host.
func NewMeiliEngine(host, apiKey, indexUID string, timeout time.Duration) (*MeiliEngine, error) {
	if host == "" {
		return nil, fmt.Errorf("meilisearch host is empty")
	}
	if indexUID == "" {
		indexUID = "documents"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := meilisearch.New(host,
		meilisearch.WithAPIKey(apiKey),
		meilisearch.WithCustomClient(&http.Client{Timeout: timeout}),
	)
	return &MeiliEngine{client: client, uid: indexUID}, nil
}

func (e *MeiliEngine) Name() string { return "meilisearch" }

func (e *MeiliEngine) index() meilisearch.IndexManager {
	return e.client.Index(e.uid)
}

// EnsureIndex creates the index with primary key "id" and applies the
// attribute settings. An existing index is left untouched.
func (e *MeiliEngine) EnsureIndex(ctx context.Context) error {
	if _, err := e.client.GetIndexWithContext(ctx, e.uid); err == nil {
		return nil
	}

	task, err := e.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{Uid: e.uid, PrimaryKey: "id"})
	if err != nil {
		return fmt.Errorf("create index %s: %w", e.uid, err)
	}
	if err := e.wait(ctx, task.TaskUID); err != nil {
		return fmt.Errorf("create index %s: %w", e.uid, err)
	}

	task, err = e.index().UpdateSettingsWithContext(ctx, &meilisearch.Settings{
		SearchableAttributes: SearchableAttributes,
		FilterableAttributes: FilterableAttributes,
		SortableAttributes:   SortableAttributes,
		RankingRules:         RankingRules,
	})
	if err != nil {
		return fmt.Errorf("configure index %s: %w", e.uid, err)
	}
	return e.wait(ctx, task.TaskUID)
}

// wait polls the task until it finishes or ctx is done.
func (e *MeiliEngine) wait(ctx context.Context, taskUID int64) error {
	task, err := e.client.WaitForTaskWithContext(ctx, taskUID, taskPollInterval)
	if err != nil {
		return err
	}
	if task.Status != meilisearch.TaskStatusSucceeded {
		return fmt.Errorf("task %d ended with status %s", taskUID, task.Status)
	}
	return nil
}

func (e *MeiliEngine) Add(ctx context.Context, rec Record) error {
	task, err := e.index().AddDocumentsWithContext(ctx, []Record{rec}, "id")
	if err != nil {
		return err
	}
	return e.wait(ctx, task.TaskUID)
}

func (e *MeiliEngine) Query(ctx context.Context, q Query) (Page, error) {
	req := &meilisearch.SearchRequest{
		Limit:                 int64(q.Limit),
		Sort:                  q.Sort,
		AttributesToRetrieve:  meiliRetrieve,
		AttributesToHighlight: []string{"filename", "text_content"},
	}
	if f := FilterExpression(q.Filters); f != "" {
		req.Filter = f
	}

	resp, err := e.index().SearchWithContext(ctx, q.Text, req)
	if err != nil {
		return Page{}, err
	}

	page := Page{Records: make([]Record, 0, len(resp.Hits)), Total: resp.EstimatedTotalHits}
	for _, hit := range resp.Hits {
		rec, err := decodeHit(hit)
		if err != nil {
			return Page{}, err
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

// decodeHit converts a hit of whatever shape the client returns into a
// Record by way of JSON.
func decodeHit(hit any) (Record, error) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (e *MeiliEngine) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	if err := e.index().GetDocumentWithContext(ctx, id, nil, &rec); err != nil {
		if isMeiliNotFound(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func isMeiliNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "document_not_found") || strings.Contains(msg, "404")
}

func (e *MeiliEngine) Remove(ctx context.Context, id string) error {
	task, err := e.index().DeleteDocumentWithContext(ctx, id)
	if err != nil {
		return err
	}
	return e.wait(ctx, task.TaskUID)
}

func (e *MeiliEngine) Stats(ctx context.Context) (Stats, error) {
	st, err := e.index().GetStatsWithContext(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		DocumentCount: st.NumberOfDocuments,
		IsIndexing:    st.IsIndexing,
		LastUpdate:    time.Now().UTC(),
	}, nil
}
