package nav

import (
	"context"
	"fmt"
	"time"

	"github.com/foliolabs/folio/internal/defra"
)

// DefraStore is the durable PatternStore, backed by the UrlPattern
// collection in DefraDB. Add-or-merge uses the upsert mutation so racing
// writers resolve at the store instead of read-then-put in the engine.
type DefraStore struct {
	client *defra.Client
}

// NewDefraStore creates a DefraDB-backed pattern store.
func NewDefraStore(client *defra.Client) *DefraStore {
	return &DefraStore{client: client}
}

const patternFields = "_docID domain template example_url identifier_kind confidence success_rate last_used"

// Get implements PatternStore.
func (s *DefraStore) Get(ctx context.Context, domain string) (*Pattern, error) {
	query := fmt.Sprintf(`{
		UrlPattern(filter: {domain: {_eq: %q}}) {
			%s
		}
	}`, domain, patternFields)

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pattern query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	patterns := parsePatternDocs(resp.Data)
	if len(patterns) == 0 {
		return nil, nil
	}
	return &patterns[0], nil
}

// Upsert implements PatternStore. The update input omits success_rate so
// an existing record's observed history carries over when a domain is
// re-learned.
func (s *DefraStore) Upsert(ctx context.Context, p *Pattern) error {
	create := map[string]any{
		"domain":          p.Domain,
		"template":        p.Template,
		"example_url":     p.ExampleURL,
		"identifier_kind": string(p.IdentifierKind),
		"confidence":      p.Confidence,
		"success_rate":    p.SuccessRate,
		"last_used":       p.LastUsed.UTC().Format(time.RFC3339),
	}
	update := map[string]any{
		"template":        p.Template,
		"example_url":     p.ExampleURL,
		"identifier_kind": string(p.IdentifierKind),
		"confidence":      p.Confidence,
		"last_used":       p.LastUsed.UTC().Format(time.RFC3339),
	}
	filter := map[string]any{"domain": map[string]any{"_eq": p.Domain}}

	if _, err := s.client.Upsert(ctx, "UrlPattern", filter, create, update); err != nil {
		return fmt.Errorf("pattern upsert failed: %w", err)
	}
	return nil
}

// Update implements PatternStore. Absent domains are a no-op.
func (s *DefraStore) Update(ctx context.Context, domain string, update PatternUpdate) error {
	docID, err := s.docID(ctx, domain)
	if err != nil {
		return err
	}
	if docID == "" {
		return nil
	}

	input := map[string]any{}
	if update.Confidence != nil {
		input["confidence"] = *update.Confidence
	}
	if update.SuccessRate != nil {
		input["success_rate"] = *update.SuccessRate
	}
	if update.LastUsed != nil {
		input["last_used"] = update.LastUsed.UTC().Format(time.RFC3339)
	}
	if len(input) == 0 {
		return nil
	}

	if err := s.client.Update(ctx, "UrlPattern", docID, input); err != nil {
		return fmt.Errorf("pattern update failed: %w", err)
	}
	return nil
}

// All implements PatternStore.
func (s *DefraStore) All(ctx context.Context) ([]Pattern, error) {
	query := fmt.Sprintf(`{
		UrlPattern(order: {domain: ASC}) {
			%s
		}
	}`, patternFields)

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pattern query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	return parsePatternDocs(resp.Data), nil
}

// PruneBefore implements Pruner. DefraDB has no datetime range filter we
// can rely on across versions, so staleness is decided client-side and
// records are deleted individually.
func (s *DefraStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `{
		UrlPattern {
			_docID
			domain
			last_used
		}
	}`

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("pattern query failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return 0, fmt.Errorf("graphql error: %s", errMsg)
	}

	docs, _ := resp.Data["UrlPattern"].([]any)
	pruned := 0
	for _, d := range docs {
		doc, ok := d.(map[string]any)
		if !ok {
			continue
		}
		lastUsed, _ := doc["last_used"].(string)
		ts, err := time.Parse(time.RFC3339, lastUsed)
		if err != nil || !ts.Before(cutoff) {
			continue
		}
		docID, _ := doc["_docID"].(string)
		if docID == "" {
			continue
		}
		if err := s.client.Delete(ctx, "UrlPattern", docID); err != nil {
			return pruned, fmt.Errorf("pattern delete failed: %w", err)
		}
		pruned++
	}
	return pruned, nil
}

func (s *DefraStore) docID(ctx context.Context, domain string) (string, error) {
	query := fmt.Sprintf(`{
		UrlPattern(filter: {domain: {_eq: %q}}) {
			_docID
		}
	}`, domain)

	resp, err := s.client.Query(ctx, query)
	if err != nil {
		return "", fmt.Errorf("pattern lookup failed: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return "", fmt.Errorf("graphql error: %s", errMsg)
	}

	docs, _ := resp.Data["UrlPattern"].([]any)
	if len(docs) == 0 {
		return "", nil
	}
	doc, ok := docs[0].(map[string]any)
	if !ok {
		return "", nil
	}
	docID, _ := doc["_docID"].(string)
	return docID, nil
}

// parsePatternDocs converts a UrlPattern GraphQL result into patterns.
// Malformed documents are skipped, not fatal; the engine treats unusable
// templates as a routing signal.
func parsePatternDocs(data map[string]any) []Pattern {
	raw, ok := data["UrlPattern"]
	if !ok {
		return nil
	}
	docs, ok := raw.([]any)
	if !ok {
		return nil
	}

	out := make([]Pattern, 0, len(docs))
	for _, d := range docs {
		doc, ok := d.(map[string]any)
		if !ok {
			continue
		}
		p := Pattern{}
		if v, ok := doc["domain"].(string); ok {
			p.Domain = v
		}
		if v, ok := doc["template"].(string); ok {
			p.Template = v
		}
		if v, ok := doc["example_url"].(string); ok {
			p.ExampleURL = v
		}
		if v, ok := doc["identifier_kind"].(string); ok {
			p.IdentifierKind = IdentifierKind(v)
		}
		if v, ok := doc["confidence"].(float64); ok {
			p.Confidence = v
		}
		if v, ok := doc["success_rate"].(float64); ok {
			p.SuccessRate = v
		}
		if v, ok := doc["last_used"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				p.LastUsed = ts
			}
		}
		if p.Domain == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

var (
	_ PatternStore = (*DefraStore)(nil)
	_ Pruner       = (*DefraStore)(nil)
)
