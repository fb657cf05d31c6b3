package extract

import (
	"strings"
	"testing"
)

func TestArticleTextKeepsSubstantialParagraphs(t *testing.T) {
	html := `<html><body>
		<p>This is the first paragraph of the article, long enough to count.</p>
		<p>Short.</p>
		<p>A second substantial paragraph with enough characters in it.</p>
	</body></html>`

	text := ArticleText(html)
	if !strings.Contains(text, "first paragraph") {
		t.Error("expected first paragraph in output")
	}
	if !strings.Contains(text, "second substantial") {
		t.Error("expected second paragraph in output")
	}
	if strings.Contains(text, "Short.") {
		t.Error("expected short paragraph to be dropped")
	}
	if !strings.Contains(text, "\n\n") {
		t.Error("expected paragraphs separated by a blank line")
	}
}

func TestArticleTextRemovesJunkElements(t *testing.T) {
	html := `<html><body>
		<nav><p>Home News Sports Weather navigation links here</p></nav>
		<header><p>Site header text that should never appear anywhere</p></header>
		<script>var tracking = "analytics payload goes here";</script>
		<style>p { color: red; font-size: 14px; }</style>
		<div class="ad"><p>Buy our fantastic product today, limited offer!</p></div>
		<div class="popup"><p>Subscribe to our newsletter for daily updates!</p></div>
		<iframe src="https://ads.example"></iframe>
		<p>The actual article body paragraph that we want to keep.</p>
		<footer><p>Copyright notice and footer links that are not content</p></footer>
	</body></html>`

	text := ArticleText(html)
	if !strings.Contains(text, "actual article body") {
		t.Fatal("expected article paragraph in output")
	}
	for _, junk := range []string{"navigation links", "Site header", "tracking", "color: red", "fantastic product", "newsletter", "Copyright"} {
		if strings.Contains(text, junk) {
			t.Errorf("expected junk %q to be removed", junk)
		}
	}
}

func TestArticleTextEmptyWhenNothingQualifies(t *testing.T) {
	html := `<html><body><p>Tiny.</p><p>Also tiny</p><div>x</div></body></html>`
	if text := ArticleText(html); text != "" {
		t.Errorf("expected empty output, got %q", text)
	}
}

func TestArticleTextIdempotent(t *testing.T) {
	html := `<html><body>
		<p>First paragraph of clean article text, definitely long enough.</p>
		<p>Second paragraph of clean article text, also long enough here.</p>
	</body></html>`

	once := ArticleText(html)
	twice := ArticleText(once)
	if once != twice {
		t.Errorf("expected idempotent extraction:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestArticleTextTrimmed(t *testing.T) {
	html := `<p>   A paragraph padded with whitespace on both sides here.   </p>`
	text := ArticleText(html)
	if text != strings.TrimSpace(text) {
		t.Error("expected trimmed output")
	}
}

func TestFromPageParagraphPassWins(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 3; i++ {
		b.WriteString("<p>This qualifying paragraph carries one hundred characters of plausible article body text for tests.</p>")
	}
	b.WriteString("</body></html>")

	text := FromPage(b.String(), "https://news.example/story", 150)
	if len(text) < 150 {
		t.Errorf("expected at least 150 chars, got %d", len(text))
	}
}

func TestFromPageShortStaysShort(t *testing.T) {
	html := `<html><body><p>Nothing here.</p></body></html>`
	text := FromPage(html, "https://news.example/empty", 150)
	if len(text) >= 150 {
		t.Errorf("expected short result for empty page, got %d chars", len(text))
	}
}
