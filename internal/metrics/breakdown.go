package metrics

import "context"

// CostByProvider returns translation cost grouped by provider.
func (q *Query) CostByProvider(ctx context.Context, f Filter) (map[string]float64, error) {
	all, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	breakdown := make(map[string]float64)
	for _, m := range all {
		if m.Provider == "" {
			continue
		}
		breakdown[m.Provider] += m.CostUSD
	}
	return breakdown, nil
}

// CostByModel returns translation cost grouped by model.
func (q *Query) CostByModel(ctx context.Context, f Filter) (map[string]float64, error) {
	all, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	breakdown := make(map[string]float64)
	for _, m := range all {
		if m.Model == "" {
			continue
		}
		breakdown[m.Model] += m.CostUSD
	}
	return breakdown, nil
}

// CountByDomain returns operation counts grouped by domain.
func (q *Query) CountByDomain(ctx context.Context, f Filter) (map[string]int, error) {
	all, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	breakdown := make(map[string]int)
	for _, m := range all {
		if m.Domain == "" {
			continue
		}
		breakdown[m.Domain]++
	}
	return breakdown, nil
}

// MethodCounts returns prediction counts per tier ("pattern", "scraping").
func (q *Query) MethodCounts(ctx context.Context, f Filter) (map[string]int, error) {
	f.Operation = OpPrediction
	all, err := q.List(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, m := range all {
		if m.Method == "" {
			continue
		}
		counts[m.Method]++
	}
	return counts, nil
}
