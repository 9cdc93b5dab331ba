package reader

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	blockOpenRe  = regexp.MustCompile(`<(?:p|div|br|li|td|tr|blockquote|section|article|h[1-6])[^>]*>`)
	blockCloseRe = regexp.MustCompile(`</(?:p|div|li|td|tr|blockquote|section|article|h[1-6])>`)

	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// renderMarkdown reduces extracted article HTML to markdown-ish text:
// anchors become [text](href) with hrefs resolved against the page URL,
// headings get a # prefix, and block boundaries become line breaks. The
// output is what the navigation scraper and the translator consume, so
// links must survive the reduction.
func renderMarkdown(articleHTML string, pageURL *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(insertBlockBreaks(articleHTML)))
	if err != nil {
		return "", fmt.Errorf("failed to parse article html: %w", err)
	}

	doc.Find("script, style, noscript, iframe").Remove()

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if text == "" || href == "" || strings.HasPrefix(href, "javascript:") {
			s.Remove()
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			s.Remove()
			return
		}
		resolved := pageURL.ResolveReference(ref).String()
		s.SetText(fmt.Sprintf(" [%s](%s) ", text, resolved))
	})

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level := int(goquery.NodeName(s)[1] - '0')
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		s.SetText("\n" + strings.Repeat("#", level) + " " + text + "\n")
	})

	return normalizeText(doc.Text()), nil
}

// insertBlockBreaks adds newlines around block-level tags so the text
// extraction keeps paragraph structure.
func insertBlockBreaks(html string) string {
	html = blockOpenRe.ReplaceAllString(html, "\n$0")
	return blockCloseRe.ReplaceAllString(html, "$0\n")
}

func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
