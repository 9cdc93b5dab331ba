package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foliolabs/folio/internal/defra"
)

// Query provides read access to stored metrics.
type Query struct {
	client *defra.Client
}

// NewQuery creates a new metrics query helper.
func NewQuery(client *defra.Client) *Query {
	return &Query{client: client}
}

// Filter specifies query filters.
type Filter struct {
	Operation string
	Domain    string
	Method    string
	Provider  string
	Model     string
	After     time.Time
	Before    time.Time
	Success   *bool // nil = any, true = success only, false = errors only
}

// buildFilterClause builds a GraphQL filter clause from a Filter.
func buildFilterClause(f Filter) string {
	parts := []string{}

	if f.Operation != "" {
		parts = append(parts, fmt.Sprintf(`operation: {_eq: "%s"}`, f.Operation))
	}
	if f.Domain != "" {
		parts = append(parts, fmt.Sprintf(`domain: {_eq: "%s"}`, f.Domain))
	}
	if f.Method != "" {
		parts = append(parts, fmt.Sprintf(`method: {_eq: "%s"}`, f.Method))
	}
	if f.Provider != "" {
		parts = append(parts, fmt.Sprintf(`provider: {_eq: "%s"}`, f.Provider))
	}
	if f.Model != "" {
		parts = append(parts, fmt.Sprintf(`model: {_eq: "%s"}`, f.Model))
	}
	if !f.After.IsZero() {
		parts = append(parts, fmt.Sprintf(`timestamp: {_gt: "%s"}`, f.After.UTC().Format(time.RFC3339)))
	}
	if !f.Before.IsZero() {
		parts = append(parts, fmt.Sprintf(`timestamp: {_lt: "%s"}`, f.Before.UTC().Format(time.RFC3339)))
	}
	if f.Success != nil {
		parts = append(parts, fmt.Sprintf(`success: {_eq: %v}`, *f.Success))
	}

	if len(parts) == 0 {
		return ""
	}
	return "filter: {" + strings.Join(parts, ", ") + "}"
}

// List returns metrics matching the filter, newest first.
// A limit of 0 returns everything.
func (q *Query) List(ctx context.Context, f Filter, limit int) ([]Metric, error) {
	args := []string{`order: {timestamp: DESC}`}
	if clause := buildFilterClause(f); clause != "" {
		args = append(args, clause)
	}
	if limit > 0 {
		args = append(args, fmt.Sprintf("limit: %d", limit))
	}

	query := fmt.Sprintf(`{
		Metric(%s) {
			%s
		}
	}`, strings.Join(args, ", "), strings.Join(metricFields, "\n\t\t\t"))

	resp, err := q.client.Execute(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	rawMetrics, ok := resp.Data["Metric"].([]any)
	if !ok {
		return nil, nil
	}

	var out []Metric
	for _, raw := range rawMetrics {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, parseMetric(m))
	}

	return out, nil
}
