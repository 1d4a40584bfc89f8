// Package service implements the extraction orchestration core: validate,
// admit, sweep, then drive the configured backend chain until one strategy
// produces a result or all are exhausted.
package service

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"tokrelay/internal/backend"
	"tokrelay/internal/config"
	"tokrelay/internal/failure"
	"tokrelay/internal/history"
	"tokrelay/internal/models"
	"tokrelay/internal/ratelimit"
	"tokrelay/internal/store"
	"tokrelay/internal/validate"
)

// Error is the unified orchestration failure surfaced to the handler layer.
type Error struct {
	Kind       failure.Kind
	Message    string
	RetryAfter time.Duration
	Attempted  []string
}

func (e *Error) Error() string {
	return e.Message
}

type Service struct {
	cfg       *config.Config
	log       *slog.Logger
	validator *validate.Validator
	limiter   *ratelimit.Limiter
	store     *store.ArtifactStore
	backends  []backend.Extractor
	history   *history.Store
}

// NewService wires the orchestrator. history may be nil to disable
// recording; backends are tried in the order given.
func NewService(
	cfg *config.Config,
	log *slog.Logger,
	validator *validate.Validator,
	limiter *ratelimit.Limiter,
	st *store.ArtifactStore,
	backends []backend.Extractor,
	hist *history.Store,
) *Service {
	return &Service{
		cfg:       cfg,
		log:       log,
		validator: validator,
		limiter:   limiter,
		store:     st,
		backends:  backends,
		history:   hist,
	}
}

// Download runs one extraction request end to end. identity is the
// rate-limit bucket key (client IP or a global constant, per config).
func (s *Service) Download(ctx context.Context, rawURL, identity string) (*models.DownloadResponse, *Error) {
	src, vfail := s.validator.Validate(rawURL)
	if vfail != nil {
		return nil, &Error{Kind: vfail.Kind, Message: vfail.RawMessage}
	}

	if res := s.limiter.Admit(identity); !res.Allowed {
		return nil, &Error{
			Kind:       failure.KindRateLimited,
			Message:    "rate limit exceeded, try again later",
			RetryAfter: res.RetryAfter,
		}
	}

	// Staleness cleanup piggybacks on traffic instead of a background
	// timer. Best-effort only.
	s.store.SweepStale(s.cfg.Relay.StaleAge)

	var (
		winner    *backend.Result
		winnerBy  string
		last      *failure.BackendFailure
		attempted []string
	)

	for _, b := range s.backends {
		attempted = append(attempted, b.Name())

		res, f := s.extractOne(ctx, b, src)
		if f == nil {
			winner = res
			winnerBy = b.Name()
			break
		}

		s.log.Warn("backend failed",
			slog.String("backend", b.Name()),
			slog.String("kind", string(f.Kind)),
			slog.String("url", src.Raw),
			slog.String("error", f.RawMessage))

		last = failure.MoreSpecific(last, f)

		// Intrinsic failures are properties of the URL, not the backend;
		// the rest of the chain would fail the same way.
		if f.Kind.Intrinsic() && !s.cfg.Relay.FallbackOnIntrinsic {
			break
		}
	}

	if winner == nil {
		if last == nil {
			return nil, &Error{Kind: failure.KindUnknown, Message: "no extraction backends configured"}
		}
		return nil, &Error{Kind: last.Kind, Message: last.RawMessage, Attempted: attempted}
	}

	if winner.MediaURL != "" && s.cfg.Relay.StoreRemote {
		s.localize(ctx, src, winner)
	}

	resp := s.normalize(winner, winnerBy)
	s.record(ctx, src, winner, winnerBy)

	s.log.Info("extraction succeeded",
		slog.String("backend", winnerBy),
		slog.String("url", src.Raw),
		slog.String("video", resp.Video))

	return resp, nil
}

// extractOne runs a single backend under the configured timeout. A panic
// inside an adapter is recovered and mapped to Unknown so one misbehaving
// strategy cannot take the process down.
func (s *Service) extractOne(ctx context.Context, b backend.Extractor, src validate.SourceURL) (res *backend.Result, f *failure.BackendFailure) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			f = failure.New(b.Name(), failure.KindUnknown, "backend panicked: %v", r)
		}
	}()

	bctx, cancel := context.WithTimeout(ctx, s.cfg.Backends.Timeout)
	defer cancel()

	return b.Extract(bctx, src)
}

// localize pulls a relayed media URL into the artifact store so the
// deployment serves the bytes itself. Best-effort: on failure the result
// keeps relaying by reference.
func (s *Service) localize(ctx context.Context, src validate.SourceURL, res *backend.Result) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.Backends.Timeout)
	defer cancel()

	name := s.store.ReserveFilename(src.ID, extFromURL(res.MediaURL))
	if err := s.store.Download(dctx, res.MediaURL, name); err != nil {
		s.log.Warn("failed to store remote media, relaying by reference",
			slog.String("url", res.MediaURL),
			slog.String("error", err.Error()))
		return
	}
	res.Filename = name
	res.MediaURL = ""
}

// extFromURL guesses the media extension from the URL path.
func extFromURL(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return "mp4"
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext == "" || len(ext) > 5 {
		return "mp4"
	}
	return ext
}

func (s *Service) normalize(res *backend.Result, backendName string) *models.DownloadResponse {
	out := &models.DownloadResponse{
		Success:   true,
		Title:     res.Title,
		Author:    res.Author,
		Caption:   res.Caption,
		Thumbnail: res.ThumbnailURL,
		Backend:   backendName,
	}
	if res.Filename != "" {
		out.Filename = res.Filename
		out.Video = "/files/" + res.Filename
	} else {
		out.Video = res.MediaURL
	}
	if res.Stats != nil {
		out.Stats = &models.VideoStats{
			Duration: res.Stats.Duration,
			Plays:    res.Stats.Plays,
			Likes:    res.Stats.Likes,
			Comments: res.Stats.Comments,
			Shares:   res.Stats.Shares,
		}
	}
	return out
}

func (s *Service) record(ctx context.Context, src validate.SourceURL, res *backend.Result, backendName string) {
	if s.history == nil {
		return
	}
	err := s.history.Record(ctx, models.HistoryEntry{
		URL:      src.Raw,
		VideoID:  src.ID,
		Title:    res.Title,
		Author:   res.Author,
		Backend:  backendName,
		Filename: res.Filename,
	})
	if err != nil {
		s.log.Warn("failed to record history", slog.String("error", err.Error()))
	}
}

// ResolveFile maps a previously returned filename to a servable path.
func (s *Service) ResolveFile(filename string) (string, *Error) {
	path, err := s.store.ResolvePath(filename)
	if err != nil {
		return "", &Error{Kind: failure.KindInvalidInput, Message: err.Error()}
	}
	if !s.store.Exists(filename) {
		return "", &Error{Kind: failure.KindNotFound, Message: "file not found"}
	}
	return path, nil
}

// RecentHistory lists the latest recorded extractions.
func (s *Service) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, *Error) {
	if s.history == nil {
		return nil, &Error{Kind: failure.KindNotFound, Message: "history is disabled"}
	}
	entries, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, &Error{Kind: failure.KindUnknown, Message: err.Error()}
	}
	return entries, nil
}

// DownloadDir exposes the managed directory for health reporting.
func (s *Service) DownloadDir() string {
	return s.store.Dir()
}
