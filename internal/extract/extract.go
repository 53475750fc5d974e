// Package extract pulls plain text and lightweight metadata out of uploaded
// documents so they can be scored and indexed.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"document-gateway/internal/scoring"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MaxKeywords bounds the keyword list.
const MaxKeywords = 15

// Metadata describes one analysed document.
type Metadata struct {
	WordCount           int                 `json:"word_count"`
	CharacterCount      int                 `json:"character_count"`
	FileExtension       string              `json:"file_extension"`
	ContentType         string              `json:"content_type"`
	LanguageDetected    string              `json:"language_detected"`
	Keywords            []string            `json:"keywords"`
	Entities            map[string][]string `json:"entities"`
	PageCount           int                 `json:"page_count,omitempty"`
	HasBusinessKeywords bool                `json:"has_business_keywords"`
}

// Scoring returns the fields the complexity score reads.
func (m Metadata) Scoring() scoring.Metadata {
	return scoring.Metadata{
		WordCount:     m.WordCount,
		Entities:      m.Entities,
		Keywords:      m.Keywords,
		FileExtension: m.FileExtension,
	}
}

// Result is the extracted text plus its metadata.
type Result struct {
	Text     string
	Metadata Metadata
}

var disableConfigDir sync.Once

// Analyze extracts what it can from data. Plain text formats yield their
// text. PDFs yield a page count only. Other binaries yield metadata without
// text. An unreadable PDF is an error.
func Analyze(filename, contentType string, data []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	meta := Metadata{
		FileExtension:    ext,
		ContentType:      contentType,
		LanguageDetected: "en",
		Keywords:         []string{},
		Entities:         map[string][]string{},
	}

	var text string
	switch {
	case ext == ".pdf" || contentType == "application/pdf":
		pages, err := pdfPageCount(data)
		if err != nil {
			return Result{}, fmt.Errorf("read pdf %s: %w", filename, err)
		}
		meta.PageCount = pages
	case isText(ext, contentType) && utf8.Valid(data):
		text = string(data)
	}

	if text != "" {
		meta.WordCount = len(strings.Fields(text))
		meta.CharacterCount = utf8.RuneCountInString(text)
		meta.Keywords = Keywords(text, MaxKeywords)
		meta.Entities = Entities(text)
		meta.HasBusinessKeywords = hasBusinessKeywords(text)
	}

	return Result{Text: text, Metadata: meta}, nil
}

func pdfPageCount(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true, ".xml": true,
	".html": true, ".htm": true, ".yaml": true, ".yml": true, ".log": true, ".rtf": true,
}

var textContentTypes = map[string]bool{
	"application/json":   true,
	"application/xml":    true,
	"application/x-yaml": true,
	"application/rtf":    true,
}

func isText(ext, contentType string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.TrimSpace(strings.ToLower(ct))
	return textExtensions[ext] || strings.HasPrefix(ct, "text/") || textContentTypes[ct]
}

var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true, "will": true,
	"your": true, "they": true, "their": true, "there": true, "which": true, "would": true,
	"about": true, "been": true, "were": true, "what": true, "when": true, "where": true,
	"into": true, "than": true, "then": true, "them": true, "these": true, "those": true,
	"also": true, "some": true, "such": true, "only": true, "over": true, "more": true,
	"most": true, "other": true, "could": true, "should": true, "each": true, "very": true,
	"just": true, "like": true, "does": true, "here": true, "being": true, "because": true,
}

// Keywords returns up to limit of the most frequent words of four or more
// letters, ignoring stopwords. Ties break alphabetically.
func Keywords(text string, limit int) []string {
	counts := map[string]int{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(w) < 4 || stopwords[w] || isNumber(w) {
			continue
		}
		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var entityPatterns = map[string]*regexp.Regexp{
	"emails": regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	"urls":   regexp.MustCompile(`https?://[^\s<>"']+`),
	"phones": regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`),
	"dates":  regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	"money":  regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?`),
}

// Entities finds emails, URLs, phone numbers, dates and money amounts.
// Every category is present in the result, possibly empty. Matches are
// deduplicated in order of first appearance.
func Entities(text string) map[string][]string {
	out := make(map[string][]string, len(entityPatterns))
	for name, re := range entityPatterns {
		seen := map[string]bool{}
		list := []string{}
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if seen[m] {
				continue
			}
			seen[m] = true
			list = append(list, m)
		}
		out[name] = list
	}
	return out
}

var businessTerms = []string{
	"budget", "contract", "invoice", "proposal", "project", "pricing", "quote", "revenue", "service", "timeline",
}

func hasBusinessKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range businessTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
