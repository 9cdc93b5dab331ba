package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxStructuredRepairAttempts caps the self-repair loop when a model
// returns JSON that does not parse or does not match the schema.
const maxStructuredRepairAttempts = 2

// adaptedResponseFormat decides how a structured translation request
// reaches a given model. Models with native json_schema support get the
// wire format; the rest get nil here and a schema instruction in the
// prompt instead, with local validation catching drift either way.
func adaptedResponseFormat(model string, rf *ResponseFormat) (*openRouterResponseFormat, error) {
	if rf == nil {
		return nil, nil
	}
	// OpenRouter can route anthropic/* to a non-Anthropic backend that
	// rejects the beta headers native structured output needs, so those
	// models always take the prompt + local validation path.
	if isAnthropicModel(model) {
		return nil, nil
	}

	schema := rf.JSONSchema
	if len(schema) > 0 {
		var err error
		schema, err = sanitizeStructuredSchemaForModel(model, schema)
		if err != nil {
			return nil, err
		}
	}

	return &openRouterResponseFormat{
		Type:       rf.Type,
		JSONSchema: schema,
	}, nil
}

// sanitizeStructuredSchemaForModel rewrites the wire copy of a schema
// for models that reject parts of it. The canonical schema is untouched;
// validateStructuredJSON still enforces the full thing locally.
// Current shim: Anthropic rejects minimum/maximum on integer fields.
func sanitizeStructuredSchemaForModel(model string, schemaRaw json.RawMessage) (json.RawMessage, error) {
	if len(schemaRaw) == 0 || !isAnthropicModel(model) {
		return schemaRaw, nil
	}

	var root any
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("parse structured schema: %w", err)
	}

	dropIntegerBounds(root)

	sanitized, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("serialize sanitized schema: %w", err)
	}
	return sanitized, nil
}

func isAnthropicModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "anthropic/")
}

// dropIntegerBounds walks a decoded schema and removes numeric bounds
// from every node typed integer.
func dropIntegerBounds(node any) {
	switch n := node.(type) {
	case map[string]any:
		if typeIsInteger(n["type"]) {
			delete(n, "minimum")
			delete(n, "maximum")
			delete(n, "exclusiveMinimum")
			delete(n, "exclusiveMaximum")
		}
		for _, v := range n {
			dropIntegerBounds(v)
		}
	case []any:
		for _, v := range n {
			dropIntegerBounds(v)
		}
	}
}

func typeIsInteger(typeVal any) bool {
	switch t := typeVal.(type) {
	case string:
		return t == "integer"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "integer" {
				return true
			}
		}
	}
	return false
}

// parseStructuredJSON pulls JSON out of model output. Models that were
// told "JSON only" still wrap answers in code fences or commentary, so
// the raw content, a fence-stripped copy, and the outermost bracketed
// span are each tried in turn.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if span := bracketedSpan(content); span != "" && span != content {
		candidates = append(candidates, span)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("normalize structured output: %w", mErr)
			}
			return normalized, nil
		}
	}

	return nil, fmt.Errorf("no parseable JSON in structured output")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// bracketedSpan returns the text from the first { or [ to the last
// matching closer, which covers "here is your JSON: {...}" replies.
func bracketedSpan(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closer := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start, closer = objectStart, "}"
		} else {
			start, closer = arrayStart, "]"
		}
	case objectStart >= 0:
		start, closer = objectStart, "}"
	case arrayStart >= 0:
		start, closer = arrayStart, "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closer)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// validateStructuredJSON checks parsed output against the canonical
// schema, bounds included, regardless of what the wire copy allowed.
func validateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}

	coreSchema, err := unwrapSchema(schemaRaw)
	if err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(coreSchema)); err != nil {
		return fmt.Errorf("load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile structured schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("decode structured JSON for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

// unwrapSchema digs the actual JSON Schema document out of the wrapper
// formats providers accept: {"name","strict","schema":{...}} and
// {"type":"json_schema","json_schema":{"schema":...}}. A bare schema
// passes through as is.
func unwrapSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root any
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid structured schema JSON: %w", err)
	}

	rootMap, ok := root.(map[string]any)
	if !ok {
		return schemaRaw, nil
	}

	if inner, ok := rootMap["schema"]; ok {
		b, err := json.Marshal(inner)
		if err != nil {
			return nil, fmt.Errorf("serialize inner schema: %w", err)
		}
		return b, nil
	}
	if rawInner, ok := rootMap["json_schema"]; ok {
		if innerMap, ok := rawInner.(map[string]any); ok {
			if innerSchema, ok := innerMap["schema"]; ok {
				b, err := json.Marshal(innerSchema)
				if err != nil {
					return nil, fmt.Errorf("serialize json_schema.schema: %w", err)
				}
				return b, nil
			}
		}
	}

	return schemaRaw, nil
}

// structuredPromptInstruction is the prompt-side path for models that
// do not take a wire response format.
func structuredPromptInstruction(schemaRaw json.RawMessage) string {
	return fmt.Sprintf(`Respond with ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema:

%s`, string(schemaRaw))
}

func structuredRepairPrompt(schemaRaw json.RawMessage, lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 12000 {
		lastOutput = lastOutput[:12000] + "\n...[truncated]"
	}

	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.

Schema:
%s

Your previous output:
%s

Validation issue:
%v`, string(schemaRaw), lastOutput, issue)
}
