// Package classify sends article text to a reasoning model and parses the
// structured credibility verdict out of its reply.
package classify

import (
	"context"
	"fmt"
	"strings"
)

// Verdict labels. Anything the model returns outside REAL/FAKE collapses
// to LabelError.
const (
	LabelReal  = "REAL"
	LabelFake  = "FAKE"
	LabelError = "Error"
)

const (
	defaultMaxArticleChars = 8000
	defaultMaxTokens       = 512

	fallbackCredibility = "Could not analyze source."
)

// Verdict is the structured classification result for one submission.
// Immutable once produced; appended to conversation history verbatim.
type Verdict struct {
	Label             string  `json:"label"`
	Confidence        float64 `json:"confidence"`
	SourceCredibility string  `json:"sourceCredibility"`
	Domain            string  `json:"domain,omitempty"`
}

// IsError reports whether this is the internally-defaulted error verdict.
func (v Verdict) IsError() bool {
	return v.Label == LabelError
}

const classifyPrompt = `Please analyze the following news article content and its source domain.
Provide your analysis in a strict JSON format. Do not include any text outside of the JSON object.

The JSON object should have three keys:
1. "classification": A string, either "REAL" or "FAKE".
2. "confidenceScore": A number between 0 and 1 representing your confidence in the classification.
3. "sourceCredibility": A brief, neutral, 2-3 sentence analysis of the news source with the domain "%s".

Here is the article text to analyze:
---
%s
---`

// Classifier produces verdicts through a Provider.
type Classifier struct {
	provider  Provider
	maxChars  int
	maxTokens int
}

// NewClassifier creates a classifier. maxChars bounds how much article
// text goes into the prompt; zero values take defaults.
func NewClassifier(provider Provider, maxChars, maxTokens int) *Classifier {
	if maxChars <= 0 {
		maxChars = defaultMaxArticleChars
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Classifier{provider: provider, maxChars: maxChars, maxTokens: maxTokens}
}

// Classify sends articleText and the source domain to the model and
// returns the parsed verdict. Transport failures surface as
// ErrUnavailable; malformed model output never fails — it degrades into
// an Error-labeled verdict the caller can still persist and show.
func (c *Classifier) Classify(ctx context.Context, articleText, domain string) (Verdict, error) {
	if c.provider == nil {
		return Verdict{}, fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}
	if strings.TrimSpace(articleText) == "" {
		return Verdict{}, fmt.Errorf("article text cannot be empty")
	}

	text := articleText
	if len(text) > c.maxChars {
		text = text[:c.maxChars]
	}

	promptDomain := domain
	if promptDomain == "" {
		promptDomain = "N/A"
	}
	prompt := fmt.Sprintf(classifyPrompt, promptDomain, text)

	responseText, err := c.provider.Generate(ctx, prompt, c.maxTokens)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return parseVerdict(responseText, domain), nil
}

// parseVerdict turns raw model output into a Verdict, substituting safe
// defaults field by field when the output is malformed or incomplete.
func parseVerdict(responseText, domain string) Verdict {
	parsed := ParseJSONResponse(responseText)
	if parsed == nil {
		return Verdict{
			Label:             LabelError,
			Confidence:        0,
			SourceCredibility: fallbackCredibility,
			Domain:            domain,
		}
	}

	return Verdict{
		Label:             normalizeLabel(getString(parsed, "classification", LabelError)),
		Confidence:        clampConfidence(getFloat(parsed, "confidenceScore", 0)),
		SourceCredibility: getString(parsed, "sourceCredibility", fallbackCredibility),
		Domain:            domain,
	}
}

func normalizeLabel(label string) string {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case LabelReal:
		return LabelReal
	case LabelFake:
		return LabelFake
	}
	return LabelError
}

func clampConfidence(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
