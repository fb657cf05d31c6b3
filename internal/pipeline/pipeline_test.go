package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/credlens/credlens/internal/browse"
	"github.com/credlens/credlens/internal/classify"
	"github.com/credlens/credlens/internal/quota"
	"github.com/credlens/credlens/internal/store"
)

type stubRetriever struct {
	html   string
	err    error
	called int
}

func (r *stubRetriever) Fetch(_ context.Context, _ string) (string, error) {
	r.called++
	return r.html, r.err
}

type stubProvider struct {
	response string
	err      error
	called   int
}

func (p *stubProvider) Generate(_ context.Context, _ string, _ int) (string, error) {
	p.called++
	return p.response, p.err
}

func (p *stubProvider) IsConfigured() bool { return true }

const goodVerdict = `{"classification": "REAL", "confidenceScore": 0.85, "sourceCredibility": "Established regional outlet."}`

// articleHTML renders three qualifying paragraphs totaling ~300 chars.
func articleHTML() string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 3; i++ {
		b.WriteString("<p>This qualifying paragraph carries one hundred characters of plausible article body text for tests.</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

type fixture struct {
	analyzer  *Analyzer
	store     *store.Store
	ledger    *quota.Ledger
	retriever *stubRetriever
	provider  *stubProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		store:     s,
		ledger:    quota.NewLedger(s, 0, 0),
		retriever: &stubRetriever{html: articleHTML()},
		provider:  &stubProvider{response: goodVerdict},
	}
	f.analyzer = New(s, f.ledger, f.retriever, classify.NewClassifier(f.provider, 0, 0), 0)
	return f
}

func failKind(t *testing.T, err error) *Error {
	t.Helper()
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *pipeline.Error, got %T: %v", err, err)
	}
	return pe
}

func TestSubmitURLSuccess(t *testing.T) {
	f := newFixture(t)

	out, err := f.analyzer.Submit(context.Background(), "alice", "https://news.example/story", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Verdict.Label != classify.LabelReal {
		t.Errorf("expected REAL, got %q", out.Verdict.Label)
	}
	if out.Verdict.Domain != "news.example" {
		t.Errorf("expected domain in verdict, got %q", out.Verdict.Domain)
	}
	if out.ThreadID == "" {
		t.Fatal("expected a new thread id")
	}
	if f.provider.called != 1 {
		t.Errorf("expected one classification call, got %d", f.provider.called)
	}

	thread, _ := f.store.GetThread("alice", out.ThreadID)
	if thread == nil || thread.Title != "news.example" {
		t.Fatalf("expected thread titled by domain, got %+v", thread)
	}
	messages, _ := f.store.GetThreadMessages("alice", out.ThreadID)
	if len(messages) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(messages))
	}

	d, _ := f.ledger.Check("alice")
	if d.Used != 1 {
		t.Errorf("expected quota usage 1 after success, got %d", d.Used)
	}
}

func TestSubmitTextSkipsRetriever(t *testing.T) {
	f := newFixture(t)

	out, err := f.analyzer.Submit(context.Background(), "alice",
		"Officials confirm the miracle cure works on everyone instantly.", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.retriever.called != 0 {
		t.Error("text input must never invoke the page retriever")
	}
	if out.Verdict.Domain != "" {
		t.Errorf("expected no domain for text input, got %q", out.Verdict.Domain)
	}

	thread, _ := f.store.GetThread("alice", out.ThreadID)
	if !strings.HasPrefix(thread.Title, "Officials confirm") {
		t.Errorf("expected title from input prefix, got %q", thread.Title)
	}
}

func TestSubmitLongTextTitleTruncated(t *testing.T) {
	f := newFixture(t)
	input := strings.Repeat("word ", 30)

	out, err := f.analyzer.Submit(context.Background(), "alice", input, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	thread, _ := f.store.GetThread("alice", out.ThreadID)
	if !strings.HasSuffix(thread.Title, "...") {
		t.Errorf("expected truncated title, got %q", thread.Title)
	}
	if len([]rune(thread.Title)) != titlePrefixLen+3 {
		t.Errorf("expected %d-rune title, got %d", titlePrefixLen+3, len([]rune(thread.Title)))
	}
}

func TestSubmitAppendsToExistingThread(t *testing.T) {
	f := newFixture(t)

	first, err := f.analyzer.Submit(context.Background(), "alice", "https://news.example/one", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.analyzer.Submit(context.Background(), "alice", "https://news.example/two", first.ThreadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ThreadID != first.ThreadID {
		t.Error("expected append to the existing thread")
	}

	messages, _ := f.store.GetThreadMessages("alice", first.ThreadID)
	if len(messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(messages))
	}

	threads, _ := f.store.GetThreadList("alice")
	if len(threads) != 1 {
		t.Errorf("expected no extra thread, got %d", len(threads))
	}
}

func TestSubmitUnknownThreadID(t *testing.T) {
	f := newFixture(t)
	_, err := f.analyzer.Submit(context.Background(), "alice", "https://news.example/a", "bogus-id")
	pe := failKind(t, err)
	if pe.Kind != KindBadRequest {
		t.Errorf("expected bad request, got %q", pe.Kind)
	}
}

func TestSubmitQuotaExceeded(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < quota.FreeDailyLimit; i++ {
		f.ledger.Check("alice")
		f.ledger.RecordSuccess("alice")
	}

	_, err := f.analyzer.Submit(context.Background(), "alice", "https://news.example/story", "")
	pe := failKind(t, err)
	if pe.Kind != KindQuotaExceeded {
		t.Fatalf("expected quota denial, got %q", pe.Kind)
	}
	if pe.StatusCode() != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", pe.StatusCode())
	}
	if f.retriever.called != 0 || f.provider.called != 0 {
		t.Error("denied request must not fetch or classify")
	}
}

func TestSubmitNoReadableArticle(t *testing.T) {
	f := newFixture(t)
	f.retriever.html = `<html><body><p>Tiny.</p><p>Nothing else here</p></body></html>`

	_, err := f.analyzer.Submit(context.Background(), "alice", "https://news.example/empty", "")
	pe := failKind(t, err)
	if pe.Kind != KindNoReadableArticle {
		t.Fatalf("expected no readable article, got %q", pe.Kind)
	}
	if pe.StatusCode() != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", pe.StatusCode())
	}
	if f.provider.called != 0 {
		t.Error("unreadable page must not be classified")
	}

	d, _ := f.ledger.Check("alice")
	if d.Used != 0 {
		t.Errorf("failed run must not consume quota, got %d", d.Used)
	}
}

func TestSubmitRetrieverTimeout(t *testing.T) {
	f := newFixture(t)
	f.retriever.err = fmt.Errorf("%w: https://slow.example", browse.ErrTimeout)

	_, err := f.analyzer.Submit(context.Background(), "alice", "https://slow.example/story", "")
	pe := failKind(t, err)
	if pe.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %q", pe.Kind)
	}
	if pe.StatusCode() != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", pe.StatusCode())
	}

	d, _ := f.ledger.Check("alice")
	if d.Used != 0 {
		t.Error("timeout must not consume quota")
	}
}

func TestSubmitRetrieverUnreachable(t *testing.T) {
	f := newFixture(t)
	f.retriever.err = fmt.Errorf("%w: net::ERR_BLOCKED", browse.ErrUnreachable)

	_, err := f.analyzer.Submit(context.Background(), "alice", "https://blocked.example/story", "")
	pe := failKind(t, err)
	if pe.Kind != KindUnreachable {
		t.Errorf("expected unreachable, got %q", pe.Kind)
	}
}

func TestSubmitClassifierUnavailable(t *testing.T) {
	f := newFixture(t)
	f.provider.err = fmt.Errorf("API returned 503")

	_, err := f.analyzer.Submit(context.Background(), "alice", "https://news.example/story", "")
	pe := failKind(t, err)
	if pe.Kind != KindClassifierUnavailable {
		t.Fatalf("expected classifier unavailable, got %q", pe.Kind)
	}

	threads, _ := f.store.GetThreadList("alice")
	if len(threads) != 0 {
		t.Error("failed classification must not create a thread")
	}
	d, _ := f.ledger.Check("alice")
	if d.Used != 0 {
		t.Error("failed classification must not consume quota")
	}
}

func TestSubmitMalformedModelOutputStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.provider.response = "Sorry, I cannot help with that."

	out, err := f.analyzer.Submit(context.Background(), "alice", "https://news.example/story", "")
	if err != nil {
		t.Fatalf("malformed model output must not fail the pipeline: %v", err)
	}
	if out.Verdict.Label != classify.LabelError {
		t.Errorf("expected Error verdict, got %q", out.Verdict.Label)
	}
	if out.Verdict.Confidence != 0 {
		t.Errorf("expected confidence 0, got %v", out.Verdict.Confidence)
	}

	messages, _ := f.store.GetThreadMessages("alice", out.ThreadID)
	if len(messages) != 1 {
		t.Error("degraded verdict must still be persisted")
	}
	d, _ := f.ledger.Check("alice")
	if d.Used != 1 {
		t.Error("degraded verdict is a success and consumes quota")
	}
}

func TestSubmitMissingFields(t *testing.T) {
	f := newFixture(t)

	if _, err := f.analyzer.Submit(context.Background(), "", "some input", ""); err == nil {
		t.Error("expected error for missing user id")
	}
	_, err := f.analyzer.Submit(context.Background(), "alice", "   ", "")
	pe := failKind(t, err)
	if pe.Kind != KindBadRequest {
		t.Errorf("expected bad request, got %q", pe.Kind)
	}
}
