package nav

// Stats aggregates stored patterns by confidence bucket: high is >= 0.8,
// medium is [0.5, 0.8), low is everything below.
type Stats struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// ComputeStats buckets a pattern listing for the stats endpoint.
func ComputeStats(patterns []Pattern) Stats {
	stats := Stats{Total: len(patterns)}
	for _, p := range patterns {
		switch ConfidenceBucket(p.Confidence) {
		case "high":
			stats.High++
		case "medium":
			stats.Medium++
		default:
			stats.Low++
		}
	}
	return stats
}
