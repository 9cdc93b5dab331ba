package defra

import (
	"context"
	"fmt"
	"strings"
)

// QueryBuilder assembles a parameterized collection query. Filter
// values travel as GraphQL variables, never interpolated into the
// document, so caller-supplied strings (domains, provider names)
// cannot break out of the query.
type QueryBuilder struct {
	collection string
	filters    []queryFilter
	fields     []string
	order      string
	limit      int
	varIndex   int
}

type queryFilter struct {
	field   string
	varName string
	varType string
	value   any
}

// NewQuery starts a builder for one collection. With no Fields call
// the query returns just _docID.
func NewQuery(collection string) *QueryBuilder {
	return &QueryBuilder{
		collection: collection,
		fields:     []string{"_docID"},
	}
}

// Filter adds an equality condition on a field.
func (q *QueryBuilder) Filter(field string, value any) *QueryBuilder {
	name := fmt.Sprintf("v%d", q.varIndex)
	q.varIndex++
	q.filters = append(q.filters, queryFilter{
		field:   field,
		varName: name,
		varType: graphQLTypeOf(value),
		value:   value,
	})
	return q
}

// Fields replaces the returned field set.
func (q *QueryBuilder) Fields(fields ...string) *QueryBuilder {
	q.fields = fields
	return q
}

// OrderBy sorts results by one field, direction "ASC" or "DESC".
func (q *QueryBuilder) OrderBy(field, direction string) *QueryBuilder {
	q.order = fmt.Sprintf("{%s: %s}", field, direction)
	return q
}

// Limit caps the number of returned documents.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Build renders the query document and its variables map.
func (q *QueryBuilder) Build() (string, map[string]any) {
	vars := make(map[string]any)
	var varDefs, conditions []string
	for _, f := range q.filters {
		varDefs = append(varDefs, fmt.Sprintf("$%s: %s", f.varName, f.varType))
		conditions = append(conditions, fmt.Sprintf("%s: {_eq: $%s}", f.field, f.varName))
		vars[f.varName] = f.value
	}

	var doc strings.Builder
	if len(varDefs) > 0 {
		fmt.Fprintf(&doc, "query(%s) ", strings.Join(varDefs, ", "))
	}
	doc.WriteString("{ ")
	doc.WriteString(q.collection)

	var args []string
	if len(conditions) > 0 {
		args = append(args, fmt.Sprintf("filter: {%s}", strings.Join(conditions, ", ")))
	}
	if q.order != "" {
		args = append(args, "order: "+q.order)
	}
	if q.limit > 0 {
		args = append(args, fmt.Sprintf("limit: %d", q.limit))
	}
	if len(args) > 0 {
		fmt.Fprintf(&doc, "(%s)", strings.Join(args, ", "))
	}

	doc.WriteString(" { ")
	doc.WriteString(strings.Join(q.fields, " "))
	doc.WriteString(" } }")
	return doc.String(), vars
}

// Execute builds the query and runs it on the client.
func (q *QueryBuilder) Execute(ctx context.Context, client *Client) (*GQLResponse, error) {
	query, vars := q.Build()
	return client.Execute(ctx, query, vars)
}

func graphQLTypeOf(v any) string {
	switch v.(type) {
	case int, int32, int64:
		return "Int"
	case float32, float64:
		return "Float"
	case bool:
		return "Boolean"
	default:
		return "String"
	}
}
