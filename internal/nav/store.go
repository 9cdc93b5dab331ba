package nav

import (
	"context"
	"sort"
	"sync"
	"time"
)

// PatternStore persists learned URL patterns, exactly one per domain.
// Implementations must provide add-or-merge semantics on Upsert (racing
// writers may lose a statistics update, never corrupt a record) and treat
// Update of an absent domain as a no-op.
type PatternStore interface {
	// Get returns the stored pattern for a domain, or (nil, nil) when the
	// domain has none.
	Get(ctx context.Context, domain string) (*Pattern, error)

	// Upsert stores a pattern keyed by its domain. When a record already
	// exists the new fields replace it except SuccessRate, which carries
	// over from the existing record.
	Upsert(ctx context.Context, p *Pattern) error

	// Update applies a partial update to the stored pattern for a domain.
	Update(ctx context.Context, domain string, update PatternUpdate) error

	// All returns every stored pattern.
	All(ctx context.Context) ([]Pattern, error)
}

// PatternUpdate is a partial update; nil fields are left unchanged.
type PatternUpdate struct {
	Confidence  *float64
	SuccessRate *float64
	LastUsed    *time.Time
}

// Pruner is an optional store capability used by the maintenance sweep to
// drop patterns that have not been used since the cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore is an in-process PatternStore. It backs tests and no-storage
// deployments; a single mutex serializes writes, which satisfies the
// add-or-merge contract trivially.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[string]Pattern
}

// NewMemoryStore creates an empty in-memory pattern store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patterns: make(map[string]Pattern)}
}

// Get implements PatternStore.
func (s *MemoryStore) Get(ctx context.Context, domain string) (*Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[domain]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Upsert implements PatternStore.
func (s *MemoryStore) Upsert(ctx context.Context, p *Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := *p
	if existing, ok := s.patterns[p.Domain]; ok {
		merged.SuccessRate = existing.SuccessRate
	}
	s.patterns[p.Domain] = merged
	return nil
}

// Update implements PatternStore.
func (s *MemoryStore) Update(ctx context.Context, domain string, update PatternUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[domain]
	if !ok {
		return nil
	}
	if update.Confidence != nil {
		p.Confidence = *update.Confidence
	}
	if update.SuccessRate != nil {
		p.SuccessRate = *update.SuccessRate
	}
	if update.LastUsed != nil {
		p.LastUsed = *update.LastUsed
	}
	s.patterns[domain] = p
	return nil
}

// All implements PatternStore. Results are sorted by domain for stable
// listings.
func (s *MemoryStore) All(ctx context.Context) ([]Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// PruneBefore implements Pruner.
func (s *MemoryStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for domain, p := range s.patterns {
		if p.LastUsed.Before(cutoff) {
			delete(s.patterns, domain)
			n++
		}
	}
	return n, nil
}

var (
	_ PatternStore = (*MemoryStore)(nil)
	_ Pruner       = (*MemoryStore)(nil)
)
