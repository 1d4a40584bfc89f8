package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tokrelay/internal/failure"
	"tokrelay/internal/validate"
)

// Tikwm is a remote lookup strategy: a third-party JSON API resolves the
// source URL to a direct watermark-free media URL. Nothing is downloaded
// locally; the media is relayed by reference.
type Tikwm struct {
	base   string
	client *http.Client
}

func NewTikwm(base string, client *http.Client) *Tikwm {
	if client == nil {
		client = &http.Client{}
	}
	return &Tikwm{base: strings.TrimRight(base, "/"), client: client}
}

func (t *Tikwm) Name() string { return "tikwm" }

type tikwmResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Play         string  `json:"play"`
		Title        string  `json:"title"`
		Cover        string  `json:"cover"`
		Duration     float64 `json:"duration"`
		PlayCount    int64   `json:"play_count"`
		DiggCount    int64   `json:"digg_count"`
		CommentCount int64   `json:"comment_count"`
		ShareCount   int64   `json:"share_count"`
		Author       struct {
			UniqueID string `json:"unique_id"`
			Nickname string `json:"nickname"`
		} `json:"author"`
	} `json:"data"`
}

func (t *Tikwm) Extract(ctx context.Context, src validate.SourceURL) (*Result, *failure.BackendFailure) {
	endpoint := fmt.Sprintf("%s/api/?url=%s&hd=1", t.base, url.QueryEscape(src.Raw))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, failure.New(t.Name(), failure.KindUnknown, "build request: %v", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, failure.New(t.Name(), failure.KindTimeout, "lookup request timed out")
		}
		return nil, failure.New(t.Name(), failure.KindUpstreamUnavailable, "lookup request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure.New(t.Name(), failure.KindUpstreamUnavailable,
			"lookup returned status %d", resp.StatusCode)
	}

	var payload tikwmResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, failure.New(t.Name(), failure.KindUnknown, "cannot parse lookup response: %v", err)
	}

	// code 0 is the API's success flag; anything else carries a message
	// worth classifying before giving up.
	if payload.Code != 0 || payload.Data.Play == "" {
		msg := payload.Msg
		if msg == "" {
			msg = "success flag absent in lookup payload"
		}
		kind := failure.ClassifyExtractorError(msg)
		if kind == failure.KindUnknown {
			kind = failure.KindNotFound
		}
		return nil, failure.New(t.Name(), kind, "lookup rejected: %s", msg)
	}

	return &Result{
		MediaURL:     t.absolutize(payload.Data.Play),
		Title:        firstNonEmpty(payload.Data.Title, "TikTok Video"),
		Author:       firstNonEmpty(payload.Data.Author.Nickname, payload.Data.Author.UniqueID, "Unknown"),
		Caption:      payload.Data.Title,
		ThumbnailURL: t.absolutize(payload.Data.Cover),
		Stats: &Stats{
			Duration: int(payload.Data.Duration),
			Plays:    payload.Data.PlayCount,
			Likes:    payload.Data.DiggCount,
			Comments: payload.Data.CommentCount,
			Shares:   payload.Data.ShareCount,
		},
	}, nil
}

// absolutize resolves the relative media paths the API sometimes returns.
func (t *Tikwm) absolutize(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return t.base + "/" + strings.TrimLeft(u, "/")
}
