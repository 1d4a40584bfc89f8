// Package validate classifies raw input strings as supported source URLs
// and extracts a stable content identifier when the URL shape carries one.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"tokrelay/internal/failure"
)

// SourceURL is a validated input plus the content identifier extracted from
// it, if any. Short-link URLs carry no numeric ID until resolved upstream.
type SourceURL struct {
	Raw string
	ID  string
}

var defaultAllowedHosts = []string{
	"tiktok.com",
	"www.tiktok.com",
	"m.tiktok.com",
	"vm.tiktok.com",
	"vt.tiktok.com",
}

// idPatterns are tried in order; the first capture group wins.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`tiktok\.com/@[\w.-]+/video/(\d+)`),
	regexp.MustCompile(`tiktok\.com/v/(\d+)`),
	regexp.MustCompile(`vm\.tiktok\.com/([\w\d]+)`),
	regexp.MustCompile(`vt\.tiktok\.com/([\w\d]+)`),
}

type Validator struct {
	allowed map[string]struct{}
}

func NewValidator(hosts []string) *Validator {
	if len(hosts) == 0 {
		hosts = defaultAllowedHosts
	}
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}
	return &Validator{allowed: allowed}
}

// Validate accepts a raw URL whose host is on the allow-list. Photo posts
// are rejected up front: no backend can resolve a slideshow to a single
// media file, so callers get a specific non-retryable message.
func (v *Validator) Validate(rawURL string) (SourceURL, *failure.BackendFailure) {
	if strings.TrimSpace(rawURL) == "" {
		return SourceURL{}, failure.New("validator", failure.KindInvalidInput, "no URL provided")
	}

	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return SourceURL{}, failure.New("validator", failure.KindInvalidInput, "invalid URL format")
	}

	host := strings.ToLower(parsed.Hostname())
	if _, ok := v.allowed[host]; !ok {
		return SourceURL{}, failure.New("validator", failure.KindInvalidInput, "unsupported host %q", host)
	}

	if strings.Contains(parsed.Path, "/photo/") {
		return SourceURL{}, failure.New("validator", failure.KindUnsupportedContentType,
			"photo posts are not supported, only video URLs")
	}

	return SourceURL{Raw: rawURL, ID: extractID(rawURL)}, nil
}

// extractID returns the first pattern capture, or "" when no shape matches.
// Absence of an ID does not invalidate the URL.
func extractID(rawURL string) string {
	for _, p := range idPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}
