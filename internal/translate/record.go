package translate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foliolabs/folio/internal/defra"
)

// Record is one persisted translation attempt.
type Record struct {
	Timestamp        time.Time `json:"timestamp"`
	SourceURL        string    `json:"source_url,omitempty"`
	Domain           string    `json:"domain,omitempty"`
	TargetLang       string    `json:"target_lang"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	DurationMs       int64     `json:"duration_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	Success          bool      `json:"success"`
	ErrorType        string    `json:"error_type,omitempty"`
}

// recordFields lists the Translation collection fields fetched on reads.
var recordFields = []string{
	"timestamp", "source_url", "domain", "target_lang", "provider", "model",
	"duration_ms", "prompt_tokens", "completion_tokens", "cost_usd",
	"success", "error_type",
}

// RecordStore persists translation records. Writes go through the batched
// sink so recording never blocks a translation.
type RecordStore struct {
	client *defra.Client
	sink   *defra.Sink
	logger *slog.Logger
}

// NewRecordStore creates a RecordStore.
func NewRecordStore(client *defra.Client, sink *defra.Sink, logger *slog.Logger) *RecordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{client: client, sink: sink, logger: logger.With("component", "translate-records")}
}

// Record queues one record for persistence, fire-and-forget.
func (s *RecordStore) Record(rec Record) {
	s.sink.Send(defra.WriteOp{
		Collection: "Translation",
		Document:   rec.toDoc(),
		Op:         defra.OpCreate,
	})
}

// ListOptions filter List results.
type ListOptions struct {
	Domain string
	Limit  int
}

// List returns recent translation records, newest first.
func (s *RecordStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}

	q := defra.NewQuery("Translation").
		Fields(recordFields...).
		OrderBy("timestamp", "DESC").
		Limit(opts.Limit)
	if opts.Domain != "" {
		q = q.Filter("domain", opts.Domain)
	}

	resp, err := q.Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("translation query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	return parseRecordDocs(resp.Data), nil
}

func (rec Record) toDoc() map[string]any {
	doc := map[string]any{
		"timestamp":   rec.Timestamp.UTC().Format(time.RFC3339),
		"target_lang": rec.TargetLang,
		"provider":    rec.Provider,
		"model":       rec.Model,
		"duration_ms": rec.DurationMs,
		"success":     rec.Success,
	}
	if rec.SourceURL != "" {
		doc["source_url"] = rec.SourceURL
	}
	if rec.Domain != "" {
		doc["domain"] = rec.Domain
	}
	if rec.PromptTokens > 0 {
		doc["prompt_tokens"] = rec.PromptTokens
	}
	if rec.CompletionTokens > 0 {
		doc["completion_tokens"] = rec.CompletionTokens
	}
	if rec.CostUSD > 0 {
		doc["cost_usd"] = rec.CostUSD
	}
	if rec.ErrorType != "" {
		doc["error_type"] = rec.ErrorType
	}
	return doc
}

// parseRecordDocs converts a Translation GraphQL result into records.
// Malformed documents are skipped.
func parseRecordDocs(data map[string]any) []Record {
	raw, ok := data["Translation"]
	if !ok {
		return nil
	}
	docs, ok := raw.([]any)
	if !ok {
		return nil
	}

	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		doc, ok := d.(map[string]any)
		if !ok {
			continue
		}
		rec := Record{}
		if v, ok := doc["timestamp"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				rec.Timestamp = ts
			}
		}
		if v, ok := doc["source_url"].(string); ok {
			rec.SourceURL = v
		}
		if v, ok := doc["domain"].(string); ok {
			rec.Domain = v
		}
		if v, ok := doc["target_lang"].(string); ok {
			rec.TargetLang = v
		}
		if v, ok := doc["provider"].(string); ok {
			rec.Provider = v
		}
		if v, ok := doc["model"].(string); ok {
			rec.Model = v
		}
		if v, ok := doc["duration_ms"].(float64); ok {
			rec.DurationMs = int64(v)
		}
		if v, ok := doc["prompt_tokens"].(float64); ok {
			rec.PromptTokens = int(v)
		}
		if v, ok := doc["completion_tokens"].(float64); ok {
			rec.CompletionTokens = int(v)
		}
		if v, ok := doc["cost_usd"].(float64); ok {
			rec.CostUSD = v
		}
		if v, ok := doc["success"].(bool); ok {
			rec.Success = v
		}
		if v, ok := doc["error_type"].(string); ok {
			rec.ErrorType = v
		}
		if rec.Provider == "" && rec.TargetLang == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}
