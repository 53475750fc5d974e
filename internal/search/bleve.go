package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// BleveEngine is an embedded engine for local development and tests.
// Writes are synchronous, so IsIndexing is always false.
type BleveEngine struct {
	index bleve.Index
}

// OpenBleve opens or creates an index at path. An empty path keeps the
// index in memory.
func OpenBleve(path string) (*BleveEngine, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &BleveEngine{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &BleveEngine{index: idx}, nil
}

// buildMapping indexes filterable and sortable string attributes as
// single keyword terms. Everything else is mapped dynamically.
func buildMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	for _, field := range []string{"id", "contact_id", "document_type", "processing_status",
		"upload_timestamp", "processing_timestamp", "file_extension", "s3_bucket", "s3_key", "language_detected"} {
		m.DefaultMapping.AddFieldMappingsAt(field, bleve.NewKeywordFieldMapping())
	}
	return m
}

// Close releases the index.
func (e *BleveEngine) Close() error { return e.index.Close() }

func (e *BleveEngine) Name() string { return "bleve" }

// EnsureIndex is a no-op: the mapping is fixed when the index is opened.
func (e *BleveEngine) EnsureIndex(ctx context.Context) error {
	return ctx.Err()
}

func (e *BleveEngine) Add(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields, err := recordFields(rec)
	if err != nil {
		return err
	}
	return e.index.Index(rec.ID, fields)
}

func recordFields(rec Record) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (e *BleveEngine) Query(ctx context.Context, q Query) (Page, error) {
	var base query.Query
	if strings.TrimSpace(q.Text) == "" {
		base = bleve.NewMatchAllQuery()
	} else {
		mq := bleve.NewMatchQuery(q.Text)
		mq.SetFuzziness(1)
		base = mq
	}

	conjuncts := append([]query.Query{base}, filterQueries(q.Filters)...)
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), limit, 0, false)
	req.Fields = []string{"*"}
	if len(q.Sort) > 0 {
		req.SortBy(bleveSort(q.Sort))
	}

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return Page{}, err
	}

	page := Page{Records: make([]Record, 0, len(res.Hits)), Total: int64(res.Total)}
	for _, hit := range res.Hits {
		page.Records = append(page.Records, recordFromFields(hit.ID, hit.Fields))
	}
	return page, nil
}

func filterQueries(filters map[string]any) []query.Query {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]query.Query, 0, len(keys))
	for _, k := range keys {
		switch v := filters[k].(type) {
		case nil:
		case bool:
			bq := bleve.NewBoolFieldQuery(v)
			bq.SetField(k)
			out = append(out, bq)
		case float64:
			inclusive := true
			nq := bleve.NewNumericRangeInclusiveQuery(&v, &v, &inclusive, &inclusive)
			nq.SetField(k)
			out = append(out, nq)
		case int:
			f := float64(v)
			inclusive := true
			nq := bleve.NewNumericRangeInclusiveQuery(&f, &f, &inclusive, &inclusive)
			nq.SetField(k)
			out = append(out, nq)
		default:
			tq := bleve.NewTermQuery(fmt.Sprint(v))
			tq.SetField(k)
			out = append(out, tq)
		}
	}
	return out
}

// bleveSort turns "field:desc" into "-field".
func bleveSort(specs []string) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		field, dir, _ := strings.Cut(s, ":")
		if dir == "desc" {
			field = "-" + field
		}
		out = append(out, field)
	}
	return out
}

func (e *BleveEngine) Get(ctx context.Context, id string) (Record, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{"*"}
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return Record{}, err
	}
	if len(res.Hits) == 0 {
		return Record{}, ErrNotFound
	}
	return recordFromFields(res.Hits[0].ID, res.Hits[0].Fields), nil
}

func (e *BleveEngine) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.index.Delete(id)
}

func (e *BleveEngine) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	n, err := e.index.DocCount()
	if err != nil {
		return Stats{}, err
	}
	return Stats{DocumentCount: int64(n), LastUpdate: time.Now().UTC()}, nil
}

// recordFromFields rebuilds a Record from stored fields. Bleve returns a
// single-element array as a bare value and numbers as float64.
func recordFromFields(id string, f map[string]any) Record {
	return Record{
		ID:                  id,
		ContactID:           str(f["contact_id"]),
		Filename:            str(f["filename"]),
		DocumentType:        str(f["document_type"]),
		Content:             str(f["content"]),
		TextContent:         str(f["text_content"]),
		UploadTimestamp:     str(f["upload_timestamp"]),
		ProcessingTimestamp: str(f["processing_timestamp"]),
		WordCount:           int(num(f["word_count"])),
		CharacterCount:      int(num(f["character_count"])),
		FileExtension:       str(f["file_extension"]),
		LanguageDetected:    str(f["language_detected"]),
		Keywords:            strs(f["keywords"]),
		ProcessingStatus:    str(f["processing_status"]),
		ComplexityScore:     num(f["complexity_score"]),
		Bucket:              str(f["s3_bucket"]),
		Key:                 str(f["s3_key"]),
		Size:                int64(num(f["size"])),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

func strs(v any) []string {
	switch tv := v.(type) {
	case string:
		return []string{tv}
	case []any:
		out := make([]string, 0, len(tv))
		for _, x := range tv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
