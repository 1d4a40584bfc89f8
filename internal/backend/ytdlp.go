package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"tokrelay/internal/failure"
	"tokrelay/internal/store"
	"tokrelay/internal/validate"
)

// Request identity presented to the upstream site. TikTok serves the
// watermark-free variant to browser-looking clients.
const (
	chromeUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	tiktokReferrer = "https://www.tiktok.com/"
)

// ytdlpInfo is the subset of the yt-dlp info JSON we consume.
type ytdlpInfo struct {
	ID           string  `json:"id"`
	Ext          string  `json:"ext"`
	Title        string  `json:"title"`
	AltTitle     string  `json:"alt_title"`
	Description  string  `json:"description"`
	Uploader     string  `json:"uploader"`
	Thumbnail    string  `json:"thumbnail"`
	Duration     float64 `json:"duration"`
	ViewCount    int64   `json:"view_count"`
	LikeCount    int64   `json:"like_count"`
	CommentCount int64   `json:"comment_count"`
	RepostCount  int64   `json:"repost_count"`
}

// YtDlp drives the yt-dlp binary to download the media into the artifact
// store. This is the library-extraction strategy: best format, browser
// request identity, geo-bypass, bounded network retries.
type YtDlp struct {
	binary  string
	retries int
	store   *store.ArtifactStore
	log     *slog.Logger
}

func NewYtDlp(binary string, retries int, st *store.ArtifactStore, log *slog.Logger) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	if retries <= 0 {
		retries = 3
	}
	return &YtDlp{binary: binary, retries: retries, store: st, log: log}
}

func (d *YtDlp) Name() string { return "ytdlp" }

func (d *YtDlp) Extract(ctx context.Context, src validate.SourceURL) (*Result, *failure.BackendFailure) {
	return d.run(ctx, src, d.Name(), nil)
}

// run is shared with the cookie-authenticated variant, which only differs
// in the extra arguments and failure interpretation.
func (d *YtDlp) run(ctx context.Context, src validate.SourceURL, name string, extraArgs []string) (*Result, *failure.BackendFailure) {
	// Artifact naming goes through the store's reservation so ID-less
	// inputs get a collision-resistant token instead of all targeting the
	// same output path. The extension slot stays with the library, which
	// negotiates the container format itself.
	reserved := d.store.ReserveFilename(src.ID, "mp4")
	base := strings.TrimSuffix(reserved, ".mp4")

	args := []string{
		"-f", "best",
		"-o", filepath.Join(d.store.Dir(), base+".%(ext)s"),
		"--print-json",
		"--no-warnings",
		"--no-playlist",
		"--user-agent", chromeUA,
		"--referer", tiktokReferrer,
		"--geo-bypass",
		"--retries", strconv.Itoa(d.retries),
	}
	args = append(args, extraArgs...)
	args = append(args, src.Raw)

	cmd := exec.CommandContext(ctx, d.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, failure.New(name, failure.KindTimeout, "extraction timed out")
		}
		raw := strings.TrimSpace(stderr.String())
		if raw == "" {
			raw = err.Error()
		}
		return nil, failure.New(name, failure.ClassifyExtractorError(raw), "%s", raw)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(firstLine(stdout.Bytes()), &info); err != nil {
		return nil, failure.New(name, failure.KindUnknown, "cannot parse extractor output: %v", err)
	}
	if info.Ext == "" {
		info.Ext = "mp4"
	}

	// Trust the disk over the reported extension.
	filename := base + "." + info.Ext
	if !d.store.Exists(filename) {
		actual, ok := d.store.FindByID(base)
		if !ok {
			return nil, failure.New(name, failure.KindUnknown,
				"download reported success but file %s not found", filename)
		}
		d.log.Debug("reconciled negotiated extension",
			slog.String("expected", filename), slog.String("actual", actual))
		filename = actual
	}

	res := &Result{
		Filename:     filename,
		Title:        firstNonEmpty(info.Title, "TikTok Video"),
		Author:       firstNonEmpty(info.Uploader, "Unknown"),
		Caption:      firstNonEmpty(info.Description, info.AltTitle, info.Title),
		ThumbnailURL: info.Thumbnail,
	}
	if info.Duration > 0 || info.ViewCount > 0 || info.LikeCount > 0 {
		res.Stats = &Stats{
			Duration: int(info.Duration),
			Plays:    info.ViewCount,
			Likes:    info.LikeCount,
			Comments: info.CommentCount,
			Shares:   info.RepostCount,
		}
	}
	return res, nil
}

// firstLine isolates the info JSON when yt-dlp emits trailing output.
func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
