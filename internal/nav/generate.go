package nav

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// identifierShape splits a steppable identifier into digits plus an
// optional single trailing letter. Named specials ("prologue") do not
// match and therefore cannot be stepped.
var identifierShape = regexp.MustCompile(`^(\d+)([a-zA-Z]?)$`)

// Next returns the URL of the following chapter, or "" when no successor
// can be synthesized. The identifier must come from Extract on the same
// URL; only the identifier substring changes, the rest of the URL is
// byte-identical.
func Next(rawURL string, id ChapterIdentifier) string {
	return step(rawURL, id, 1)
}

// Previous returns the URL of the preceding chapter, or "" when none
// exists. Chapters are 1-indexed, so identifiers at or below 1 have no
// predecessor.
func Previous(rawURL string, id ChapterIdentifier) string {
	return step(rawURL, id, -1)
}

func step(rawURL string, id ChapterIdentifier, delta int) string {
	if id.Kind == KindNone || id.Value == "" {
		return ""
	}
	stepped := stepIdentifier(id, delta)
	if stepped == "" {
		return ""
	}
	return substituteIdentifier(rawURL, id.Value, stepped)
}

// stepIdentifier computes the sibling identifier string. Letter suffixes
// step by character code within their alphabet; moving below 'a' or past
// 'z' yields "" rather than a nonsense identifier. Plain digits step
// numerically, preserving zero-padded width.
func stepIdentifier(id ChapterIdentifier, delta int) string {
	m := identifierShape.FindStringSubmatch(id.Value)
	if m == nil {
		return ""
	}
	digits, letter := m[1], m[2]

	if letter != "" {
		c := rune(letter[0]) + rune(delta)
		lower := c >= 'a' && c <= 'z'
		upper := c >= 'A' && c <= 'Z'
		if !lower && !upper {
			return ""
		}
		return digits + string(c)
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return ""
	}
	if delta < 0 && n <= 1 {
		return ""
	}
	n += delta
	if len(digits) > 1 && strings.HasPrefix(digits, "0") {
		return fmt.Sprintf("%0*d", len(digits), n)
	}
	return strconv.Itoa(n)
}

// substituteIdentifier replaces the first occurrence of the identifier in
// the URL's path+query. The search starts after "scheme://host" so
// identifier-like text in the hostname is never rewritten.
func substituteIdentifier(rawURL, oldID, newID string) string {
	start := 0
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		j := strings.IndexAny(rest, "/?#")
		if j < 0 {
			return ""
		}
		start = i + 3 + j
	}
	k := strings.Index(rawURL[start:], oldID)
	if k < 0 {
		return ""
	}
	k += start
	return rawURL[:k] + newID + rawURL[k+len(oldID):]
}
