package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	s, err := NewArtifactStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}
	return s
}

func writeArtifact(t *testing.T, s *ArtifactStore, name, content string) string {
	t.Helper()
	path := filepath.Join(s.Dir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestNewArtifactStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")
	s, err := NewArtifactStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}

	info, err := os.Stat(s.Dir())
	if err != nil || !info.IsDir() {
		t.Fatalf("managed dir not created: %v", err)
	}

	// Idempotent on an existing dir.
	if _, err := NewArtifactStore(dir, testLogger()); err != nil {
		t.Fatalf("second NewArtifactStore: %v", err)
	}
}

func TestReserveFilename(t *testing.T) {
	s := newTestStore(t)

	if got := s.ReserveFilename("1234567890", "mp4"); got != "1234567890.mp4" {
		t.Errorf("ReserveFilename with ID = %q, want 1234567890.mp4", got)
	}

	anon := s.ReserveFilename("", "mp4")
	if !strings.HasSuffix(anon, ".mp4") || len(anon) < 20 {
		t.Errorf("ReserveFilename without ID = %q, want random token with extension", anon)
	}

	// Unsafe identifiers fall back to a random token.
	unsafe := s.ReserveFilename("../../etc/passwd", "mp4")
	if strings.Contains(unsafe, "..") {
		t.Errorf("unsafe ID leaked into filename: %q", unsafe)
	}
}

func TestReserveFilenameConcurrentUniqueness(t *testing.T) {
	s := newTestStore(t)

	const n = 200
	var wg sync.WaitGroup
	names := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names <- s.ReserveFilename("", "mp4")
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]struct{}, n)
	for name := range names {
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate filename reserved: %q", name)
		}
		seen[name] = struct{}{}
	}
}

func TestResolvePathRejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	bad := []string{
		"",
		"../secret.mp4",
		"..",
		"a/../../b.mp4",
		"/etc/passwd",
		`..\windows.mp4`,
		"sub/video.mp4",
	}
	for _, name := range bad {
		if _, err := s.ResolvePath(name); err == nil {
			t.Errorf("ResolvePath(%q) should fail", name)
		}
	}

	path, err := s.ResolvePath("video.mp4")
	if err != nil {
		t.Fatalf("ResolvePath(video.mp4): %v", err)
	}
	if filepath.Dir(path) != s.Dir() {
		t.Errorf("resolved path %q not under managed dir %q", path, s.Dir())
	}
}

func TestExists(t *testing.T) {
	s := newTestStore(t)

	if s.Exists("nope.mp4") {
		t.Error("Exists should be false for a missing file")
	}

	writeArtifact(t, s, "yes.mp4", "data")
	if !s.Exists("yes.mp4") {
		t.Error("Exists should be true for a written file")
	}

	if s.Exists("../yes.mp4") {
		t.Error("Exists must not resolve traversal names")
	}
}

func TestFindByID(t *testing.T) {
	s := newTestStore(t)
	writeArtifact(t, s, "42.webm", "data")

	name, ok := s.FindByID("42")
	if !ok || name != "42.webm" {
		t.Errorf("FindByID(42) = %q, %v; want 42.webm, true", name, ok)
	}

	if _, ok := s.FindByID("99"); ok {
		t.Error("FindByID should miss for an unknown ID")
	}
	if _, ok := s.FindByID("../42"); ok {
		t.Error("FindByID must reject unsafe identifiers")
	}
}

func TestDownloadStoresRemoteMedia(t *testing.T) {
	s := newTestStore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote media bytes"))
	}))
	defer srv.Close()

	name := s.ReserveFilename("42", "mp4")
	if err := s.Download(context.Background(), srv.URL+"/video.mp4", name); err != nil {
		t.Fatalf("Download: %v", err)
	}

	path, err := s.ResolvePath(name)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact not on disk: %v", err)
	}
	if string(data) != "remote media bytes" {
		t.Errorf("stored bytes = %q, want the upstream body", data)
	}
}

func TestDownloadRejectsUpstreamError(t *testing.T) {
	s := newTestStore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	err := s.Download(context.Background(), srv.URL+"/video.mp4", "42.mp4")
	if err == nil {
		t.Fatal("expected an error for a non-200 upstream status")
	}
	if !strings.Contains(err.Error(), "410") {
		t.Errorf("error should carry the upstream status: %v", err)
	}
	if s.Exists("42.mp4") {
		t.Error("no artifact should be written on a failed download")
	}
}

func TestDownloadRejectsUnsafeFilename(t *testing.T) {
	s := newTestStore(t)

	if err := s.Download(context.Background(), "http://unused.invalid/v.mp4", "../escape.mp4"); err == nil {
		t.Fatal("traversal filename must be rejected before any network access")
	}
}

func TestSweepStale(t *testing.T) {
	s := newTestStore(t)

	oldPath := writeArtifact(t, s, "old.mp4", "old")
	newPath := writeArtifact(t, s, "new.mp4", "new")

	stale := time.Now().Add(-time.Hour)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	s.SweepStale(30 * time.Minute)

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("stale file should have been removed")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("fresh file should have been retained")
	}
}

func TestSweepContinuesPastRemovalFailure(t *testing.T) {
	s := newTestStore(t)

	stale := time.Now().Add(-time.Hour)
	stuckPath := writeArtifact(t, s, "aaa-stuck.mp4", "stuck")
	oldPath := writeArtifact(t, s, "zzz-old.mp4", "old")
	os.Chtimes(stuckPath, stale, stale)
	os.Chtimes(oldPath, stale, stale)

	// Deletion of the first eligible file fails; the sweep must still
	// reach and remove the second.
	s.removeFile = func(path string) error {
		if path == stuckPath {
			return fmt.Errorf("remove %s: operation not permitted", path)
		}
		return os.Remove(path)
	}

	s.SweepStale(30 * time.Minute)

	if _, err := os.Stat(stuckPath); err != nil {
		t.Error("file whose removal failed should remain on disk")
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("removal failure on one file must not abort the rest of the sweep")
	}
}

func TestSweepSkipsDirectoriesAndContinues(t *testing.T) {
	s := newTestStore(t)

	// A subdirectory older than the threshold must not abort the sweep of
	// eligible files around it.
	subdir := filepath.Join(s.Dir(), "aaa-subdir")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	stale := time.Now().Add(-time.Hour)
	os.Chtimes(subdir, stale, stale)

	oldPath := writeArtifact(t, s, "zzz-old.mp4", "old")
	os.Chtimes(oldPath, stale, stale)

	s.SweepStale(30 * time.Minute)

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("eligible file should still be removed when other entries are skipped")
	}
	if _, err := os.Stat(subdir); err != nil {
		t.Error("directories must survive the sweep")
	}
}
