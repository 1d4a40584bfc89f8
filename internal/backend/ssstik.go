package backend

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tokrelay/internal/failure"
	"tokrelay/internal/validate"
)

// Ssstik is the HTML-based remote lookup strategy. The upstream markup is
// not a controlled contract, so extraction is deliberately tolerant: known
// selectors first, then a loose pattern scan over the raw document.
type Ssstik struct {
	base   string
	client *http.Client
}

func NewSsstik(base string, client *http.Client) *Ssstik {
	if client == nil {
		client = &http.Client{}
	}
	return &Ssstik{base: strings.TrimRight(base, "/"), client: client}
}

func (s *Ssstik) Name() string { return "ssstik" }

var mp4HrefPattern = regexp.MustCompile(`https?://[^"'\s<>]+\.mp4[^"'\s<>]*`)

func (s *Ssstik) Extract(ctx context.Context, src validate.SourceURL) (*Result, *failure.BackendFailure) {
	form := url.Values{}
	form.Set("id", src.Raw)
	form.Set("locale", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.base+"/abc?url=dl", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, failure.New(s.Name(), failure.KindUnknown, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("HX-Request", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, failure.New(s.Name(), failure.KindTimeout, "lookup request timed out")
		}
		return nil, failure.New(s.Name(), failure.KindUpstreamUnavailable, "lookup request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure.New(s.Name(), failure.KindUpstreamUnavailable,
			"lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, failure.New(s.Name(), failure.KindUnknown, "read lookup response: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, failure.New(s.Name(), failure.KindUnknown, "parse lookup response: %v", err)
	}

	mediaURL := s.findMediaURL(doc, body)
	if mediaURL == "" {
		return nil, failure.New(s.Name(), failure.KindNotFound,
			"no media link found in lookup markup")
	}

	res := &Result{
		MediaURL: mediaURL,
		Title:    "TikTok Video",
		Author:   "Unknown",
	}
	if caption := strings.TrimSpace(doc.Find("p.maintext").First().Text()); caption != "" {
		res.Title = caption
		res.Caption = caption
	}
	if author := strings.TrimSpace(doc.Find("h2").First().Text()); author != "" {
		res.Author = author
	}
	if thumb, ok := doc.Find("img.result_overlay_a").First().Attr("src"); ok {
		res.ThumbnailURL = thumb
	}
	return res, nil
}

// findMediaURL tries the known download-anchor selectors, then falls back
// to scanning the raw markup for any mp4 href.
func (s *Ssstik) findMediaURL(doc *goquery.Document, raw []byte) string {
	for _, sel := range []string{"a.without_watermark", "a.download_link", "a[download]"} {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && href != "" {
			return s.absolutize(href)
		}
	}
	if m := mp4HrefPattern.Find(raw); m != nil {
		return string(m)
	}
	return ""
}

func (s *Ssstik) absolutize(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return s.base + "/" + strings.TrimLeft(u, "/")
}
