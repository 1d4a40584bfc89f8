// Package failure defines the unified error taxonomy shared by every
// extraction backend. Raw upstream error text is preserved only as a
// diagnostic; control decisions are made on Kind alone.
package failure

import (
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindInvalidInput           Kind = "invalid_input"
	KindNotFound               Kind = "not_found"
	KindPrivateOrForbidden     Kind = "private_or_forbidden"
	KindUnsupportedContentType Kind = "unsupported_content_type"
	KindUpstreamUnavailable    Kind = "upstream_unavailable"
	KindUpstreamAuthRequired   Kind = "upstream_auth_required"
	KindTimeout                Kind = "timeout"
	KindRateLimited            Kind = "rate_limited"
	KindUnknown                Kind = "unknown"
)

// BackendFailure is the classified outcome of one failed backend attempt.
type BackendFailure struct {
	Backend    string
	Kind       Kind
	RawMessage string
}

func (f *BackendFailure) Error() string {
	if f.RawMessage == "" {
		return fmt.Sprintf("%s: %s", f.Backend, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", f.Backend, f.Kind, f.RawMessage)
}

// New builds a classified failure for the named backend.
func New(backend string, kind Kind, format string, args ...any) *BackendFailure {
	return &BackendFailure{
		Backend:    backend,
		Kind:       kind,
		RawMessage: fmt.Sprintf(format, args...),
	}
}

// Intrinsic reports whether the failure is a property of the URL itself
// rather than of the backend that produced it. Intrinsic failures apply
// identically to every backend, so falling through the chain is wasted work.
func (k Kind) Intrinsic() bool {
	switch k {
	case KindInvalidInput, KindUnsupportedContentType, KindPrivateOrForbidden:
		return true
	}
	return false
}

// HTTPStatus maps a kind to the response status surfaced to callers.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindUnsupportedContentType:
		return http.StatusBadRequest
	case KindPrivateOrForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable, KindUpstreamAuthRequired:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// classRule maps an upstream error substring to a kind. Order matters:
// the first matching rule wins.
type classRule struct {
	substr string
	kind   Kind
}

var extractorRules = []classRule{
	{"private", KindPrivateOrForbidden},
	{"unavailable", KindNotFound},
	{"404", KindNotFound},
	{"not found", KindNotFound},
	{"forbidden", KindPrivateOrForbidden},
	{"403", KindPrivateOrForbidden},
	{"timed out", KindTimeout},
	{"timeout", KindTimeout},
	{"context deadline exceeded", KindTimeout},
	{"executable file not found", KindUpstreamUnavailable},
	{"connection refused", KindUpstreamUnavailable},
}

// ClassifyExtractorError maps a raw extractor error message to a kind using
// case-insensitive substring containment. Unmatched messages degrade to
// Unknown with the raw text preserved by the caller.
func ClassifyExtractorError(raw string) Kind {
	lowered := strings.ToLower(raw)
	for _, r := range extractorRules {
		if strings.Contains(lowered, r.substr) {
			return r.kind
		}
	}
	return KindUnknown
}

// MoreSpecific picks the failure that gives callers the better diagnosis:
// any classified kind beats Unknown, and a later classified failure beats
// an earlier one (the chain is ordered by backend priority).
func MoreSpecific(a, b *BackendFailure) *BackendFailure {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Kind == KindUnknown && a.Kind != KindUnknown {
		return a
	}
	return b
}
