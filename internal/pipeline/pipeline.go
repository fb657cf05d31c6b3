// Package pipeline sequences quota check, retrieval, extraction,
// classification, and persistence into one request lifecycle. Every
// submission reaches exactly one terminal outcome with the browser
// session released; nothing here retries — a caller who wants retry
// resubmits.
package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/credlens/credlens/internal/browse"
	"github.com/credlens/credlens/internal/classify"
	"github.com/credlens/credlens/internal/extract"
	"github.com/credlens/credlens/internal/quota"
	"github.com/credlens/credlens/internal/source"
	"github.com/credlens/credlens/internal/store"
)

// MinArticleLen is the readable-article policy: extracted text below this
// length is not considered a real article.
const MinArticleLen = 150

const titlePrefixLen = 50

// Retriever fetches rendered HTML for a URL.
type Retriever interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Outcome is a successful pipeline result. A verdict with the Error label
// still counts as success: the user gets a response object to inspect.
type Outcome struct {
	Verdict  classify.Verdict
	ThreadID string
}

// Analyzer runs submissions through the pipeline.
type Analyzer struct {
	store      *store.Store
	ledger     *quota.Ledger
	retriever  Retriever
	classifier *classify.Classifier
	minLen     int
}

// New creates an analyzer. A zero minArticleLen takes the default policy.
func New(s *store.Store, ledger *quota.Ledger, retriever Retriever, classifier *classify.Classifier, minArticleLen int) *Analyzer {
	if minArticleLen <= 0 {
		minArticleLen = MinArticleLen
	}
	return &Analyzer{
		store:      s,
		ledger:     ledger,
		retriever:  retriever,
		classifier: classifier,
		minLen:     minArticleLen,
	}
}

// Submit runs one analysis: quota check, source resolution, retrieval and
// extraction for URLs, classification, and the persistence append. Quota
// is consumed only on full success. The returned error, when non-nil, is
// always a *Error.
func (a *Analyzer) Submit(ctx context.Context, userID, rawInput, threadID string) (*Outcome, error) {
	if userID == "" || strings.TrimSpace(rawInput) == "" {
		return nil, failf(KindBadRequest, "Missing required fields", nil)
	}

	decision, err := a.ledger.Check(userID)
	if err != nil {
		return nil, failf(KindInternal, "Failed to check usage quota", err)
	}
	if !decision.Allowed {
		return nil, failf(KindQuotaExceeded, "Daily usage limit reached.", nil)
	}

	in := source.Resolve(rawInput)

	textToAnalyze := in.Text
	if in.IsURL {
		log.Printf("Fetching %s for user %s", in.URL, userID)
		html, err := a.retriever.Fetch(ctx, in.URL)
		if err != nil {
			return nil, mapRetrieveErr(err)
		}

		textToAnalyze = extract.FromPage(html, in.URL, a.minLen)
		if len(textToAnalyze) < a.minLen {
			return nil, failf(KindNoReadableArticle,
				"Could not extract a readable article from this URL. The page might not be a news article or is heavily protected.", nil)
		}
	}

	verdict, err := a.classifier.Classify(ctx, textToAnalyze, in.Domain)
	if err != nil {
		if errors.Is(err, classify.ErrUnavailable) {
			return nil, failf(KindClassifierUnavailable,
				"The analysis service is currently unavailable. Please try again shortly.", err)
		}
		return nil, failf(KindInternal, "Analysis failed", err)
	}

	if threadID == "" {
		threadID, err = a.store.CreateThread(userID, threadTitle(in, rawInput))
		if err != nil {
			return nil, failf(KindInternal, "Failed to create conversation", err)
		}
	} else if thread, err := a.store.GetThread(userID, threadID); err != nil {
		return nil, failf(KindInternal, "Failed to load conversation", err)
	} else if thread == nil {
		return nil, failf(KindBadRequest, "Unknown conversation id", nil)
	}

	if err := a.store.AppendMessage(userID, threadID, rawInput, verdict); err != nil {
		return nil, failf(KindInternal, "Failed to save result", err)
	}

	if err := a.ledger.RecordSuccess(userID); err != nil {
		// The verdict is already persisted; losing one quota tick is the
		// lesser failure. Log and return success.
		log.Printf("Failed to record quota usage for %s: %v", userID, err)
	}

	log.Printf("Analysis complete for user %s: %s (%.2f)", userID, verdict.Label, verdict.Confidence)
	return &Outcome{Verdict: verdict, ThreadID: threadID}, nil
}

func mapRetrieveErr(err error) *Error {
	if errors.Is(err, browse.ErrTimeout) {
		return failf(KindTimeout, "Failed to load the URL. The request timed out.", err)
	}
	return failf(KindUnreachable, "Failed to fetch content from the URL. The site may be using advanced blocking techniques.", err)
}

// threadTitle derives a new thread's title: the source domain when known,
// otherwise a prefix of the raw input.
func threadTitle(in source.Input, rawInput string) string {
	if in.Domain != "" {
		return in.Domain
	}
	runes := []rune(strings.TrimSpace(rawInput))
	if len(runes) > titlePrefixLen {
		return string(runes[:titlePrefixLen]) + "..."
	}
	return string(runes)
}
