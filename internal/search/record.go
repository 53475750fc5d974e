package search

import "time"

// Document is the nested shape the API layer hands to IndexDocument.
type Document struct {
	ID                  string
	ContactID           string
	Filename            string
	DocumentType        string
	Content             string
	TextContent         string
	UploadTimestamp     string
	ProcessingTimestamp string
	Metadata            Metadata
	Processing          Processing
	Storage             Storage
}

// Metadata is what text extraction produced for a document.
type Metadata struct {
	WordCount        int
	CharacterCount   int
	FileExtension    string
	LanguageDetected string
	Keywords         []string
}

// Processing describes the outcome of the processing pipeline.
type Processing struct {
	Status          string
	ComplexityScore float64
}

// Storage locates the source object.
type Storage struct {
	Bucket string
	Key    string
	Size   int64
}

// Record is the flat projection held by the index.
type Record struct {
	ID                  string   `json:"id"`
	ContactID           string   `json:"contact_id"`
	Filename            string   `json:"filename"`
	DocumentType        string   `json:"document_type"`
	Content             string   `json:"content"`
	TextContent         string   `json:"text_content"`
	UploadTimestamp     string   `json:"upload_timestamp"`
	ProcessingTimestamp string   `json:"processing_timestamp"`
	WordCount           int      `json:"word_count"`
	CharacterCount      int      `json:"character_count"`
	FileExtension       string   `json:"file_extension"`
	LanguageDetected    string   `json:"language_detected"`
	Keywords            []string `json:"keywords"`
	ProcessingStatus    string   `json:"processing_status"`
	ComplexityScore     float64  `json:"complexity_score"`
	Bucket              string   `json:"s3_bucket"`
	Key                 string   `json:"s3_key"`
	Size                int64    `json:"size"`
}

// Flatten projects d into a Record. Language defaults to "en" and status
// to "unknown".
func Flatten(d Document) Record {
	lang := d.Metadata.LanguageDetected
	if lang == "" {
		lang = "en"
	}
	status := d.Processing.Status
	if status == "" {
		status = "unknown"
	}
	keywords := d.Metadata.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	return Record{
		ID:                  d.ID,
		ContactID:           d.ContactID,
		Filename:            d.Filename,
		DocumentType:        d.DocumentType,
		Content:             d.Content,
		TextContent:         d.TextContent,
		UploadTimestamp:     d.UploadTimestamp,
		ProcessingTimestamp: d.ProcessingTimestamp,
		WordCount:           d.Metadata.WordCount,
		CharacterCount:      d.Metadata.CharacterCount,
		FileExtension:       d.Metadata.FileExtension,
		LanguageDetected:    lang,
		Keywords:            keywords,
		ProcessingStatus:    status,
		ComplexityScore:     d.Processing.ComplexityScore,
		Bucket:              d.Storage.Bucket,
		Key:                 d.Storage.Key,
		Size:                d.Storage.Size,
	}
}

// Hit is one search result as returned to API clients.
type Hit struct {
	DocumentID       string  `json:"document_id"`
	Filename         string  `json:"filename"`
	ContactID        string  `json:"contact_id"`
	DocumentType     string  `json:"document_type"`
	TextContent      string  `json:"text_content"`
	UploadTimestamp  string  `json:"upload_timestamp"`
	ProcessingStatus string  `json:"processing_status"`
	Score            float64 `json:"score"`
}

func hitFrom(r Record) Hit {
	return Hit{
		DocumentID:       r.ID,
		Filename:         r.Filename,
		ContactID:        r.ContactID,
		DocumentType:     r.DocumentType,
		TextContent:      r.TextContent,
		UploadTimestamp:  r.UploadTimestamp,
		ProcessingStatus: r.ProcessingStatus,
		Score:            1.0,
	}
}

// Result is a page of hits.
type Result struct {
	Results        []Hit   `json:"results"`
	TotalCount     int64   `json:"total_count"`
	Query          string  `json:"query"`
	ProcessingTime float64 `json:"processing_time"`
}

// Stats summarises the index.
type Stats struct {
	DocumentCount int64     `json:"total_documents"`
	IsIndexing    bool      `json:"is_indexing"`
	LastUpdate    time.Time `json:"last_update"`
}
