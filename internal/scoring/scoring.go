// Package scoring computes a document complexity score from extracted metadata.
package scoring

// Metadata is the subset of extracted document metadata that the score reads.
type Metadata struct {
	WordCount     int
	Entities      map[string][]string
	Keywords      []string
	FileExtension string
}

// Score returns a value in [0, 1]. Each band adds a fixed weight and the
// total is capped at 1.0. All thresholds are strict.
func Score(m Metadata) float64 {
	var score float64

	switch {
	case m.WordCount > 1000:
		score += 0.3
	case m.WordCount > 500:
		score += 0.2
	case m.WordCount > 100:
		score += 0.1
	}

	entities := 0
	for _, list := range m.Entities {
		entities += len(list)
	}
	switch {
	case entities > 10:
		score += 0.3
	case entities > 5:
		score += 0.2
	case entities > 0:
		score += 0.1
	}

	switch {
	case len(m.Keywords) > 10:
		score += 0.2
	case len(m.Keywords) > 5:
		score += 0.1
	}

	// Extensions match exactly; callers pass them lowercased.
	switch m.FileExtension {
	case ".pdf", ".docx", ".pptx":
		score += 0.2
	case ".doc", ".xlsx":
		score += 0.1
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}
