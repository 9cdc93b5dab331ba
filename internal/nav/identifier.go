// Package nav implements chapter-navigation prediction: extracting chapter
// identifiers from URLs, learning per-domain URL templates, synthesizing and
// validating sibling chapter URLs, and falling back to content scraping when
// no trustworthy template exists.
package nav

import (
	"net/url"
	"regexp"
)

// IdentifierKind classifies how a chapter identifier is written in a URL.
type IdentifierKind string

const (
	// KindNumeric is a plain chapter number ("50").
	KindNumeric IdentifierKind = "numeric"
	// KindAlphanumeric is digits with an optional trailing letter ("12a"),
	// or a named special chapter ("prologue").
	KindAlphanumeric IdentifierKind = "alphanumeric"
	// KindNone means no identifier was found.
	KindNone IdentifierKind = "none"
)

// ChapterIdentifier is the result of extracting a chapter marker from a URL.
// Value is empty exactly when Kind is KindNone. MatchedPattern names the
// syntactic rule that matched; it is diagnostic only and never persisted.
type ChapterIdentifier struct {
	Value          string         `json:"value,omitempty"`
	Kind           IdentifierKind `json:"kind"`
	MatchedPattern string         `json:"matched_pattern,omitempty"`
}

type extractionRule struct {
	kind IdentifierKind
	src  string
	re   *regexp.Regexp
}

func rule(kind IdentifierKind, src string) extractionRule {
	return extractionRule{kind: kind, src: src, re: regexp.MustCompile(`(?i)` + src)}
}

// extractionRules are ordered: specific numeric forms, generic numeric
// forms, alphanumeric forms, named specials. First match wins. Numeric
// digit groups end on a word boundary so forms like "ch-2b" fall through
// to the alphanumeric rules instead of truncating to "2".
var extractionRules = []extractionRule{
	rule(KindNumeric, `chapter[-_]?s?[-_]?(\d+)\b`),
	rule(KindNumeric, `ch[-_]?(\d+)\b`),
	rule(KindNumeric, `/c(?:h)?[-_]?(\d+)\b`),
	rule(KindNumeric, `/(\d+)/[^/]*$`),
	rule(KindNumeric, `(\d+)\.html$`),
	rule(KindNumeric, `page[-_]?(\d+)\b`),
	rule(KindNumeric, `part[-_]?(\d+)\b`),
	rule(KindNumeric, `vol[-_]?(\d+)\b`),
	rule(KindNumeric, `episode[-_]?(\d+)\b`),
	rule(KindAlphanumeric, `chapter[-_]?(\d+[a-z]?)`),
	rule(KindAlphanumeric, `ch[-_]?(\d+[a-z]?)`),
	rule(KindAlphanumeric, `/c(?:h)?[-_]?(\d+[a-z]?)\b`),
	rule(KindAlphanumeric, `(\d+[a-z]?)\.html$`),
	rule(KindAlphanumeric, `(prologue|epilogue|bonus|extra|special)[-_]?(\d*)`),
}

// Extract finds the chapter identifier in a URL. Rules match against the
// URL's path plus query string, case-insensitively, so results are scheme
// and host agnostic. A miss returns Kind == KindNone; that is a routing
// signal for the engine, not an error.
func Extract(rawURL string) ChapterIdentifier {
	subject := pathAndQuery(rawURL)
	for _, r := range extractionRules {
		m := r.re.FindStringSubmatch(subject)
		if m == nil {
			continue
		}
		for _, group := range m[1:] {
			if group != "" {
				return ChapterIdentifier{Value: group, Kind: r.kind, MatchedPattern: r.src}
			}
		}
	}
	return ChapterIdentifier{Kind: KindNone}
}

// pathAndQuery returns the part of a URL that extraction rules run against.
// Unparseable input is searched as-is so bare paths still extract.
func pathAndQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	s := u.Path
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	return s
}
