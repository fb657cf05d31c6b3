// Package extract reduces raw HTML to a plausible article body.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minParagraphLen is the substance threshold: paragraphs at or below this
// trimmed length are boilerplate (bylines, timestamps, cookie notices).
const minParagraphLen = 20

// junkSelector matches elements that never carry article text.
const junkSelector = "script, style, noscript, header, footer, nav, aside, iframe, .ad, .advert, .popup"

var blankLines = regexp.MustCompile(`\n{2,}`)

// ArticleText parses rawHTML, strips non-content elements, and returns the
// concatenated text of substantial paragraphs separated by blank lines.
// Returns "" when nothing qualifies; the caller decides whether that is an
// error. Pure and CPU-bound.
func ArticleText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	doc.Find(junkSelector).Remove()

	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > minParagraphLen {
			parts = append(parts, text)
		}
	})

	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	// No paragraph markup at all: treat blank-line-separated blocks of the
	// remaining body text as paragraphs. This makes extraction a no-op on
	// already-clean text.
	if doc.Find("p").Length() == 0 {
		for _, block := range blankLines.Split(doc.Find("body").Text(), -1) {
			block = strings.TrimSpace(block)
			if len(block) > minParagraphLen {
				parts = append(parts, block)
			}
		}
	}

	return strings.Join(parts, "\n\n")
}

// FromPage extracts article text from a fetched page. It runs the
// paragraph heuristic first and, when the result is shorter than minLen,
// retries with readability. The readability result is adopted only if it
// clears the same bar, so a genuinely empty page still comes back short.
func FromPage(rawHTML, pageURL string, minLen int) string {
	text := ArticleText(rawHTML)
	if len(text) >= minLen {
		return text
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return text
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		return text
	}

	alt := strings.TrimSpace(article.TextContent)
	if len(alt) >= minLen {
		return alt
	}
	return text
}
