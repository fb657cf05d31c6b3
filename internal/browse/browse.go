// Package browse fetches rendered HTML through a short-lived stealth
// browser session. Target sites actively block automated clients, so the
// session masks automation signals and presents a realistic user-agent.
package browse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrTimeout means the navigation deadline elapsed before the DOM was parsed.
var ErrTimeout = errors.New("page load timed out")

// ErrUnreachable means the navigation or network failed — the site may be
// down, blocking, or the URL bogus. Distinct from extraction failures.
var ErrUnreachable = errors.New("page blocked or unreachable")

const defaultNavTimeout = 30 * time.Second

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/104.0.0.0 Safari/537.36"

// resourceTypes maps config names to CDP resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
}

// Retriever fetches pages through per-call browser sessions. Safe for
// concurrent use; every call owns its own browser.
type Retriever struct {
	timeout time.Duration
	blocked map[proto.NetworkResourceType]bool
}

// NewRetriever creates a retriever. blockTypes lists resource classes to
// abort before they leave the session (images, stylesheets, fonts, media);
// a zero timeout takes the 30s default.
func NewRetriever(timeout time.Duration, blockTypes []string) *Retriever {
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	blocked := make(map[proto.NetworkResourceType]bool, len(blockTypes))
	for _, name := range blockTypes {
		if rt, ok := resourceTypes[strings.ToLower(name)]; ok {
			blocked[rt] = true
		}
	}
	return &Retriever{timeout: timeout, blocked: blocked}
}

// Fetch navigates to pageURL and returns the serialized HTML once the DOM
// is parsed. The browser session is scoped to this call and torn down on
// every exit path.
func (r *Retriever) Fetch(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars")

	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("%w: launching browser: %v", ErrUnreachable, err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", r.mapErr(ctx, fmt.Errorf("connecting: %w", err))
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return "", r.mapErr(ctx, fmt.Errorf("opening page: %w", err))
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		log.Printf("browse: user-agent override failed: %v", err)
	}

	if len(r.blocked) > 0 {
		router := page.HijackRequests()
		router.MustAdd("*", func(h *rod.Hijack) {
			if r.blocked[h.Request.Type()] {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
			h.ContinueRequest(&proto.FetchContinueRequest{})
		})
		go router.Run()
		defer router.Stop()
	}

	// Wait only until the DOM is parsed, not full resource completion.
	wait := page.WaitEvent(&proto.PageDomContentEventFired{})
	if err := page.Navigate(pageURL); err != nil {
		return "", r.mapErr(ctx, fmt.Errorf("navigating %s: %w", pageURL, err))
	}
	wait()

	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %s", ErrTimeout, pageURL)
	}

	html, err := page.HTML()
	if err != nil {
		return "", r.mapErr(ctx, fmt.Errorf("capturing page: %w", err))
	}
	return html, nil
}

// mapErr folds an internal failure into the retriever's two-way taxonomy:
// deadline exhaustion is a Timeout, everything else is Unreachable.
func (r *Retriever) mapErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
