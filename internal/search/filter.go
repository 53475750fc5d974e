package search

import (
	"fmt"
	"sort"
	"strings"
)

// FilterExpression renders filters as `key = "v"` for strings and
// `key = v` otherwise, joined by AND in key order. Nil values are skipped.
func FilterExpression(filters map[string]any) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := filters[k]
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			parts = append(parts, fmt.Sprintf("%s = %s", k, quote(tv)))
		default:
			parts = append(parts, fmt.Sprintf("%s = %v", k, tv))
		}
	}
	return strings.Join(parts, " AND ")
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
