// Package store owns the managed directory of downloaded media artifacts:
// unique filename reservation, traversal-safe path resolution, and the
// staleness sweep that keeps the directory from growing without bound.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cap on a single stored artifact; a misbehaving upstream must not be able
// to fill the disk.
const maxArtifactSize = 500 << 20

type ArtifactStore struct {
	dir    string
	log    *slog.Logger
	client *http.Client

	// removeFile is os.Remove in production; tests swap it to exercise
	// sweep behavior on deletion failures.
	removeFile func(string) error
}

// NewArtifactStore creates the managed directory if absent and returns the
// store. The directory path is made absolute so containment checks are
// meaningful.
func NewArtifactStore(dir string, log *slog.Logger) (*ArtifactStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir %s: %w", abs, err)
	}
	return &ArtifactStore{
		dir:        abs,
		log:        log,
		client:     &http.Client{},
		removeFile: os.Remove,
	}, nil
}

func (s *ArtifactStore) Dir() string {
	return s.dir
}

// ReserveFilename derives a name from the content identifier when one is
// available. IDs are stable across requests for the same video, so repeated
// downloads overwrite rather than accumulate. Without an ID a random token
// guarantees uniqueness across concurrent reservations.
func (s *ArtifactStore) ReserveFilename(contentID, ext string) string {
	if ext == "" {
		ext = "mp4"
	}
	if contentID != "" && isSafeToken(contentID) {
		return contentID + "." + ext
	}
	return uuid.New().String() + "." + ext
}

// ResolvePath maps a previously returned filename to its absolute path
// under the managed directory. Names carrying separators or traversal
// sequences are rejected before any filesystem access.
func (s *ArtifactStore) ResolvePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty filename")
	}
	if strings.Contains(filename, "..") ||
		strings.ContainsAny(filename, `/\`) ||
		filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	full := filepath.Join(s.dir, filename)
	if !strings.HasPrefix(full, s.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("filename %q escapes download dir", filename)
	}
	return full, nil
}

func (s *ArtifactStore) Exists(filename string) bool {
	path, err := s.ResolvePath(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// FindByID returns the filename of an artifact whose base name matches the
// content identifier, regardless of extension. Used to reconcile the actual
// path when the extraction library negotiates a different container format
// than requested.
func (s *ArtifactStore) FindByID(contentID string) (string, bool) {
	if contentID == "" || !isSafeToken(contentID) {
		return "", false
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, contentID+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return filepath.Base(matches[0]), true
}

// Download streams a remote media URL into the managed directory under a
// previously reserved filename. Request lifetime is bounded by ctx; the
// body is size-capped.
func (s *ArtifactStore) Download(ctx context.Context, mediaURL, filename string) error {
	path, err := s.ResolvePath(filename)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download media: status code %d", resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(resp.Body, maxArtifactSize)); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to save media: %w", err)
	}
	return nil
}

// SweepStale deletes regular files whose modification time is older than
// maxAge. Each deletion is independent: failure on one file never aborts
// the sweep of the rest.
func (s *ArtifactStore) SweepStale(maxAge time.Duration) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("sweep: cannot read download dir", slog.String("error", err.Error()))
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := s.removeFile(path); err != nil {
			s.log.Warn("sweep: failed to remove stale artifact",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		s.log.Debug("sweep: removed stale artifact", slog.String("file", entry.Name()))
	}
}

// isSafeToken reports whether an extracted identifier can be embedded in a
// filename as-is.
func isSafeToken(tok string) bool {
	for _, r := range tok {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return tok != ""
}
