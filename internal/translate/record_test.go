package translate

import (
	"testing"
	"time"
)

func TestRecordToDocOmitsZeroValues(t *testing.T) {
	rec := Record{
		Timestamp:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		TargetLang: "en",
		Provider:   "openrouter",
		Model:      "some/model",
		DurationMs: 420,
		Success:    true,
	}
	doc := rec.toDoc()

	if doc["timestamp"] != "2026-08-01T12:00:00Z" {
		t.Errorf("timestamp = %v", doc["timestamp"])
	}
	for _, absent := range []string{"source_url", "domain", "prompt_tokens", "completion_tokens", "cost_usd", "error_type"} {
		if _, ok := doc[absent]; ok {
			t.Errorf("doc contains zero-valued field %q", absent)
		}
	}
	if doc["success"] != true {
		t.Errorf("success = %v", doc["success"])
	}
}

func TestRecordToDocFullRecord(t *testing.T) {
	rec := Record{
		Timestamp:        time.Now(),
		SourceURL:        "https://site.example/novel/50",
		Domain:           "site.example",
		TargetLang:       "en",
		Provider:         "openrouter",
		Model:            "some/model",
		DurationMs:       900,
		PromptTokens:     1200,
		CompletionTokens: 1100,
		CostUSD:          0.004,
		Success:          false,
		ErrorType:        "rate_limited",
	}
	doc := rec.toDoc()
	if doc["domain"] != "site.example" || doc["error_type"] != "rate_limited" {
		t.Errorf("doc = %v", doc)
	}
	if doc["prompt_tokens"] != 1200 || doc["cost_usd"] != 0.004 {
		t.Errorf("doc numeric fields = %v / %v", doc["prompt_tokens"], doc["cost_usd"])
	}
}

func TestParseRecordDocs(t *testing.T) {
	data := map[string]any{
		"Translation": []any{
			map[string]any{
				"timestamp":         "2026-08-01T12:00:00Z",
				"source_url":        "https://site.example/novel/50",
				"domain":            "site.example",
				"target_lang":       "en",
				"provider":          "openrouter",
				"model":             "some/model",
				"duration_ms":       float64(900),
				"prompt_tokens":     float64(1200),
				"completion_tokens": float64(1100),
				"cost_usd":          0.004,
				"success":           true,
			},
			"not a document",
			map[string]any{},
		},
	}

	got := parseRecordDocs(data)
	if len(got) != 1 {
		t.Fatalf("parseRecordDocs() len = %d, want 1 (malformed docs skipped)", len(got))
	}
	rec := got[0]
	if rec.Domain != "site.example" || rec.Provider != "openrouter" {
		t.Errorf("record = %+v", rec)
	}
	if rec.DurationMs != 900 || rec.PromptTokens != 1200 {
		t.Errorf("numeric fields = %d / %d", rec.DurationMs, rec.PromptTokens)
	}
	if !rec.Timestamp.Equal(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", rec.Timestamp)
	}
}

func TestParseRecordDocsEmpty(t *testing.T) {
	if got := parseRecordDocs(map[string]any{}); got != nil {
		t.Errorf("parseRecordDocs(empty) = %v, want nil", got)
	}
}
