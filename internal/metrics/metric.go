// Package metrics records per-operation usage metrics. Every prediction
// and translation produces one append-only Metric document in DefraDB
// with enough attribution for cost and latency breakdowns.
package metrics

import "time"

// Operation values recorded in metrics.
const (
	OpPrediction  = "prediction"
	OpTranslation = "translation"
)

// Metric is a single recorded operation outcome.
type Metric struct {
	ID string `json:"_docID,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`

	// Attribution (for filtering/aggregation)
	Domain   string `json:"domain,omitempty"`
	Method   string `json:"method,omitempty"` // prediction tier: "pattern" or "scraping"
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Timing, tokens, cost
	DurationMs       int64   `json:"duration_ms"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd,omitempty"`

	// Status
	Validated bool   `json:"validated"`
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`
}

// metricFields lists the Metric collection fields fetched on reads.
var metricFields = []string{
	"_docID", "timestamp", "operation", "domain", "method", "provider",
	"model", "duration_ms", "prompt_tokens", "completion_tokens",
	"cost_usd", "validated", "success", "error_type",
}

// ToMap converts the metric to a map for DefraDB storage.
// Optional fields are omitted when zero.
func (m *Metric) ToMap() map[string]any {
	data := map[string]any{
		"timestamp":   m.Timestamp.UTC().Format(time.RFC3339),
		"operation":   m.Operation,
		"duration_ms": m.DurationMs,
		"validated":   m.Validated,
		"success":     m.Success,
	}

	if m.Domain != "" {
		data["domain"] = m.Domain
	}
	if m.Method != "" {
		data["method"] = m.Method
	}
	if m.Provider != "" {
		data["provider"] = m.Provider
	}
	if m.Model != "" {
		data["model"] = m.Model
	}
	if m.PromptTokens > 0 {
		data["prompt_tokens"] = m.PromptTokens
	}
	if m.CompletionTokens > 0 {
		data["completion_tokens"] = m.CompletionTokens
	}
	if m.CostUSD > 0 {
		data["cost_usd"] = m.CostUSD
	}
	if m.ErrorType != "" {
		data["error_type"] = m.ErrorType
	}

	return data
}

// parseMetric converts a raw GraphQL document to a Metric.
func parseMetric(m map[string]any) Metric {
	metric := Metric{}

	if v, ok := m["_docID"].(string); ok {
		metric.ID = v
	}
	if v, ok := m["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			metric.Timestamp = t
		}
	}
	if v, ok := m["operation"].(string); ok {
		metric.Operation = v
	}
	if v, ok := m["domain"].(string); ok {
		metric.Domain = v
	}
	if v, ok := m["method"].(string); ok {
		metric.Method = v
	}
	if v, ok := m["provider"].(string); ok {
		metric.Provider = v
	}
	if v, ok := m["model"].(string); ok {
		metric.Model = v
	}
	if v, ok := m["duration_ms"].(float64); ok {
		metric.DurationMs = int64(v)
	}
	if v, ok := m["prompt_tokens"].(float64); ok {
		metric.PromptTokens = int(v)
	}
	if v, ok := m["completion_tokens"].(float64); ok {
		metric.CompletionTokens = int(v)
	}
	if v, ok := m["cost_usd"].(float64); ok {
		metric.CostUSD = v
	}
	if v, ok := m["validated"].(bool); ok {
		metric.Validated = v
	}
	if v, ok := m["success"].(bool); ok {
		metric.Success = v
	}
	if v, ok := m["error_type"].(string); ok {
		metric.ErrorType = v
	}

	return metric
}
