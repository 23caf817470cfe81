// Package tabular turns loose spreadsheet exports into validated trip
// updates. The same normalization runs on the server ingest path and in the
// observer's upload preview, so both sides agree on the canonical row for any
// input.
package tabular

import "strings"

// headerAliases maps cleaned-up column names to the canonical schema.
var headerAliases = map[string]string{
	"trip id":                  "Trip ID",
	"tripid":                   "Trip ID",
	"traveler":                 "Traveler",
	"traveller":                "Traveler",
	"usa dest":                 "USA Dest",
	"usa destination":          "USA Dest",
	"items accepted":           "Items Accepted",
	"items ready to process":   "Items Ready to process",
	"items ready":              "Items Ready to process",
	"trip verification status": "Trip Verification Status",
	"ship bundle":              "Ship Bundle",
	"total bundle weight":      "Total Bundle Weight",
	"latam departure":          "LATAM Departure",
	"latam arrival":            "LATAM Arrival",
	"max usa date":             "Max USA Date",
}

// NormalizeKey maps a raw column name to its canonical form: byte-order marks
// stripped, whitespace trimmed, runs of spaces and underscores collapsed for
// the alias lookup. Unknown keys pass through trimmed with their case intact.
// Applying it twice yields the same result as applying it once.
func NormalizeKey(raw string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, "\ufeff", ""))
	lookup := collapseSeparators(strings.ToLower(cleaned))
	if canonical, ok := headerAliases[lookup]; ok {
		return canonical
	}
	return cleaned
}

// collapseSeparators folds every run of whitespace or underscores into a
// single space.
func collapseSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if r == '_' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			inRun = true
			continue
		}
		if inRun && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeRow applies NormalizeKey to every column of a raw row. Entries with
// nil values or empty canonical keys are dropped; string values are trimmed
// and everything else passes through unchanged.
func NormalizeRow(row map[string]any) map[string]any {
	normalized := make(map[string]any, len(row))
	for key, value := range row {
		if value == nil {
			continue
		}
		header := NormalizeKey(key)
		if header == "" {
			continue
		}
		if s, ok := value.(string); ok {
			normalized[header] = strings.TrimSpace(s)
		} else {
			normalized[header] = value
		}
	}
	return normalized
}

// NormalizeRows normalizes a whole batch.
func NormalizeRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = NormalizeRow(row)
	}
	return out
}
