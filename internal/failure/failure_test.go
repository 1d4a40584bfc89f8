package failure

import (
	"net/http"
	"testing"
)

func TestClassifyExtractorError(t *testing.T) {
	tests := []struct {
		raw  string
		want Kind
	}{
		{"ERROR: Private video", KindPrivateOrForbidden},
		{"ERROR: Video unavailable", KindNotFound},
		{"HTTP Error 404: Not Found", KindNotFound},
		{"HTTP Error 403: Forbidden", KindPrivateOrForbidden},
		{"unable to download: Forbidden", KindPrivateOrForbidden},
		{"read tcp: i/o timeout", KindTimeout},
		{"context deadline exceeded", KindTimeout},
		{`exec: "yt-dlp": executable file not found in $PATH`, KindUpstreamUnavailable},
		{"dial tcp 127.0.0.1:443: connect: connection refused", KindUpstreamUnavailable},
		{"something entirely new from upstream", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ClassifyExtractorError(tt.raw); got != tt.want {
				t.Errorf("ClassifyExtractorError(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	if got := ClassifyExtractorError("PRIVATE VIDEO"); got != KindPrivateOrForbidden {
		t.Errorf("got %v, want %v", got, KindPrivateOrForbidden)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindUnsupportedContentType, http.StatusBadRequest},
		{KindPrivateOrForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindUpstreamUnavailable, http.StatusServiceUnavailable},
		{KindUpstreamAuthRequired, http.StatusServiceUnavailable},
		{KindTimeout, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.kind.HTTPStatus(); got != tt.want {
			t.Errorf("%v.HTTPStatus() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestIntrinsic(t *testing.T) {
	intrinsic := []Kind{KindInvalidInput, KindUnsupportedContentType, KindPrivateOrForbidden}
	for _, k := range intrinsic {
		if !k.Intrinsic() {
			t.Errorf("%v should be intrinsic", k)
		}
	}

	transient := []Kind{KindNotFound, KindUpstreamUnavailable, KindUpstreamAuthRequired, KindTimeout, KindUnknown}
	for _, k := range transient {
		if k.Intrinsic() {
			t.Errorf("%v should not be intrinsic", k)
		}
	}
}

func TestMoreSpecific(t *testing.T) {
	unknown := New("a", KindUnknown, "mystery")
	notFound := New("b", KindNotFound, "gone")

	if got := MoreSpecific(nil, notFound); got != notFound {
		t.Error("nil vs failure should pick the failure")
	}
	if got := MoreSpecific(notFound, unknown); got != notFound {
		t.Error("classified failure should beat a later Unknown")
	}
	if got := MoreSpecific(unknown, notFound); got != notFound {
		t.Error("later classified failure should beat an earlier Unknown")
	}

	timeout := New("c", KindTimeout, "slow")
	if got := MoreSpecific(notFound, timeout); got != timeout {
		t.Error("between two classified failures the later one should win")
	}
}

func TestBackendFailureError(t *testing.T) {
	f := New("tikwm", KindNotFound, "lookup rejected: %s", "no data")
	want := "tikwm: not_found: lookup rejected: no data"
	if f.Error() != want {
		t.Errorf("Error() = %q, want %q", f.Error(), want)
	}
}
