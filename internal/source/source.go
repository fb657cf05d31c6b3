// Package source decides whether a submission is a bare URL or free text.
package source

import (
	"net/url"
	"regexp"
	"strings"
)

// urlPattern is deliberately permissive: the first http(s) run in the
// input counts, even when it is embedded in surrounding prose.
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Input is the resolved form of a raw submission.
type Input struct {
	IsURL  bool
	URL    string
	Domain string // hostname with a leading "www." stripped; empty for text
	Text   string // the raw input when no URL was found
}

// Resolve detects the first embedded URL in rawInput. Pure function, no
// network access.
func Resolve(rawInput string) Input {
	match := urlPattern.FindString(rawInput)
	if match == "" {
		return Input{Text: rawInput}
	}

	return Input{
		IsURL:  true,
		URL:    match,
		Domain: DomainOf(match),
	}
}

// DomainOf extracts the hostname from a URL, stripping a leading "www.".
// Returns "" when the URL does not parse.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
