package search

import "testing"

func TestFilterExpression(t *testing.T) {
	tests := []struct {
		name    string
		filters map[string]any
		want    string
	}{
		{"nil", nil, ""},
		{"empty", map[string]any{}, ""},
		{"string", map[string]any{"contact_id": "contact_1"}, `contact_id = "contact_1"`},
		{"number", map[string]any{"size": float64(42)}, `size = 42`},
		{"bool", map[string]any{"archived": false}, `archived = false`},
		{"sorted and joined", map[string]any{
			"processing_status": "completed",
			"document_type":     "proposal",
		}, `document_type = "proposal" AND processing_status = "completed"`},
		{"nil value skipped", map[string]any{"a": nil, "b": "x"}, `b = "x"`},
		{"quotes escaped", map[string]any{"filename": `say "hi"`}, `filename = "say \"hi\""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterExpression(tt.filters); got != tt.want {
				t.Errorf("FilterExpression() = %q, want %q", got, tt.want)
			}
		})
	}
}
