package backend

import (
	"context"
	"fmt"
	"os"
	"strings"

	"tokrelay/internal/failure"
	"tokrelay/internal/validate"
)

// CookieYtDlp is the authenticated scrape strategy: the same extraction
// library run, but with a session-cookie credential file supplied when one
// is present on disk. The credential is consumed read-only; rotation is an
// operational concern outside this service.
type CookieYtDlp struct {
	dl          *YtDlp
	cookiesFile string
}

func NewCookieYtDlp(dl *YtDlp, cookiesFile string) *CookieYtDlp {
	return &CookieYtDlp{dl: dl, cookiesFile: cookiesFile}
}

func (d *CookieYtDlp) Name() string { return "ytdlp-cookies" }

// HasCredential reports whether the cookie file exists.
func (d *CookieYtDlp) HasCredential() bool {
	info, err := os.Stat(d.cookiesFile)
	return err == nil && info.Mode().IsRegular()
}

func (d *CookieYtDlp) Extract(ctx context.Context, src validate.SourceURL) (*Result, *failure.BackendFailure) {
	var extra []string
	hasCredential := d.HasCredential()
	if hasCredential {
		extra = []string{"--cookies", d.cookiesFile}
	}

	res, f := d.dl.run(ctx, src, d.Name(), extra)
	if f != nil && isAuthSignature(f.RawMessage) {
		return nil, failure.New(d.Name(), failure.KindUpstreamAuthRequired,
			"%s (%s)", f.RawMessage, d.remediation(hasCredential))
	}
	return res, f
}

// remediation tells the operator what to actually do, distinguishing a
// missing credential file from a stale one.
func (d *CookieYtDlp) remediation(hasCredential bool) string {
	if !hasCredential {
		return fmt.Sprintf("no cookie file at %s; export session cookies from a logged-in browser to enable authenticated extraction", d.cookiesFile)
	}
	return fmt.Sprintf("cookie file %s was rejected by the site; the session has likely expired, re-export fresh cookies", d.cookiesFile)
}

var authSignatures = []string{
	"log in",
	"login required",
	"sign in",
	"cookies",
	"authentication",
	"requires an account",
}

func isAuthSignature(raw string) bool {
	lowered := strings.ToLower(raw)
	for _, sig := range authSignatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}
	return false
}
