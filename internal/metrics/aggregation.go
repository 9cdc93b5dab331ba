package metrics

import (
	"context"
	"sort"
)

// Summary aggregates metrics for the summary endpoint.
type Summary struct {
	Count        int `json:"count"`
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`

	TotalCostUSD          float64 `json:"total_cost_usd"`
	TotalPromptTokens     int     `json:"total_prompt_tokens"`
	TotalCompletionTokens int     `json:"total_completion_tokens"`

	AvgDurationMs float64 `json:"avg_duration_ms"`

	Operations map[string]*OperationSummary `json:"operations"`
}

// OperationSummary aggregates one operation type.
type OperationSummary struct {
	Count          int `json:"count"`
	SuccessCount   int `json:"success_count"`
	ErrorCount     int `json:"error_count"`
	ValidatedCount int `json:"validated_count"`

	TotalCostUSD float64 `json:"total_cost_usd"`

	AvgDurationMs float64 `json:"avg_duration_ms"`
	LatencyP50Ms  float64 `json:"latency_p50_ms"`
	LatencyP95Ms  float64 `json:"latency_p95_ms"`
	LatencyMaxMs  float64 `json:"latency_max_ms"`

	// Methods counts prediction tiers ("pattern", "scraping") or
	// translation providers, whichever attribution the operation carries.
	Methods map[string]int `json:"methods,omitempty"`

	latencies []float64
}

// GetSummary returns an aggregate over metrics matching the filter.
func (q *Query) GetSummary(ctx context.Context, f Filter) (*Summary, error) {
	all, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	return Summarize(all), nil
}

// Summarize aggregates a metric slice in memory.
func Summarize(all []Metric) *Summary {
	s := &Summary{
		Count:      len(all),
		Operations: make(map[string]*OperationSummary),
	}

	var totalMs float64
	for _, m := range all {
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		s.TotalCostUSD += m.CostUSD
		s.TotalPromptTokens += m.PromptTokens
		s.TotalCompletionTokens += m.CompletionTokens
		totalMs += float64(m.DurationMs)

		op := s.Operations[m.Operation]
		if op == nil {
			op = &OperationSummary{Methods: make(map[string]int)}
			s.Operations[m.Operation] = op
		}
		op.Count++
		if m.Success {
			op.SuccessCount++
		} else {
			op.ErrorCount++
		}
		if m.Validated {
			op.ValidatedCount++
		}
		op.TotalCostUSD += m.CostUSD
		switch {
		case m.Method != "":
			op.Methods[m.Method]++
		case m.Provider != "":
			op.Methods[m.Provider]++
		}
		if m.DurationMs > 0 {
			op.latencies = append(op.latencies, float64(m.DurationMs))
		}
	}

	if s.Count > 0 {
		s.AvgDurationMs = totalMs / float64(s.Count)
	}

	for _, op := range s.Operations {
		if len(op.latencies) == 0 {
			continue
		}
		sort.Float64s(op.latencies)

		var sum float64
		for _, l := range op.latencies {
			sum += l
		}
		op.AvgDurationMs = sum / float64(len(op.latencies))
		op.LatencyP50Ms = percentile(op.latencies, 50)
		op.LatencyP95Ms = percentile(op.latencies, 95)
		op.LatencyMaxMs = op.latencies[len(op.latencies)-1]
		op.latencies = nil
	}

	return s
}

// percentile calculates the p-th percentile from a sorted slice,
// interpolating linearly between neighbors.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
