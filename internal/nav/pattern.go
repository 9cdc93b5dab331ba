package nav

import (
	"math"
	"strings"
	"time"
)

const (
	// PlaceholderNumber marks the identifier position in numeric templates.
	PlaceholderNumber = "{number}"
	// PlaceholderID marks the identifier position in alphanumeric templates.
	PlaceholderID = "{id}"

	// ewmaWeight is the weight of the newest outcome when re-scoring a
	// pattern: successRate' = (1-w)*successRate + w*outcome.
	ewmaWeight = 0.3

	// confidenceCap keeps every pattern short of full certainty.
	confidenceCap = 0.95

	// reuseThreshold gates direct reuse of a stored pattern. Equality
	// falls through to re-learning.
	reuseThreshold = 0.6

	// seedConfidence and seedSuccessRate are assigned when a freshly
	// learned pattern is promoted to storage after its first validated
	// prediction.
	seedConfidence  = 0.7
	seedSuccessRate = 0.7

	// learnConfidence is the provisional score of a candidate pattern that
	// has not validated yet. Candidates are never persisted at this score.
	learnConfidence = 0.5
)

// Pattern is the learned URL shape for one domain: the chapter path with
// the identifier abstracted to a placeholder, plus the trust statistics
// that decide whether the template is reused without re-learning.
type Pattern struct {
	Domain         string         `json:"domain"`
	Template       string         `json:"template"`
	ExampleURL     string         `json:"example_url"`
	IdentifierKind IdentifierKind `json:"identifier_kind"`
	Confidence     float64        `json:"confidence"`
	SuccessRate    float64        `json:"success_rate"`
	LastUsed       time.Time      `json:"last_used"`
}

// Placeholder returns the template placeholder for the pattern's kind.
func (p *Pattern) Placeholder() string {
	if p.IdentifierKind == KindNumeric {
		return PlaceholderNumber
	}
	return PlaceholderID
}

// Usable reports whether the template can be trusted for prediction. A
// template that lost its placeholder (hand-edited storage, bad merge) must
// route to re-learning instead of silently producing wrong URLs.
func (p *Pattern) Usable() bool {
	return p.Domain != "" && strings.Contains(p.Template, p.Placeholder())
}

// RecordOutcome folds one checked prediction into the pattern's scores.
// The exponential moving average favors recent outcomes, so a pattern that
// stops working decays below the reuse threshold within a handful of uses
// without explicit invalidation. Confidence stays capped below certainty.
func (p *Pattern) RecordOutcome(ok bool, now time.Time) {
	outcome := 0.0
	if ok {
		outcome = 1.0
	}
	p.SuccessRate = (1-ewmaWeight)*p.SuccessRate + ewmaWeight*outcome
	p.Confidence = math.Min(confidenceCap, p.SuccessRate)
	p.LastUsed = now
}

// ConfidenceBucket labels a confidence value for aggregate reporting.
func ConfidenceBucket(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "high"
	case confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// Learn derives a candidate pattern from an observed URL by replacing the
// first occurrence of the extracted identifier in the URL's path+query with
// the typed placeholder. Returns nil when no identifier is found or the URL
// has no host to key the pattern on. The candidate is provisional: callers
// persist it only after a URL generated from it validates.
func Learn(rawURL string) *Pattern {
	id := Extract(rawURL)
	if id.Kind == KindNone {
		return nil
	}
	domain := Domain(rawURL)
	if domain == "" {
		return nil
	}

	p := &Pattern{
		Domain:         domain,
		ExampleURL:     rawURL,
		IdentifierKind: id.Kind,
		Confidence:     learnConfidence,
	}

	subject := pathAndQuery(rawURL)
	i := strings.Index(subject, id.Value)
	if i < 0 {
		return nil
	}
	p.Template = subject[:i] + p.Placeholder() + subject[i+len(id.Value):]
	return p
}
