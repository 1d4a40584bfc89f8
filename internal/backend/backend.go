// Package backend holds the extraction strategies the orchestrator drives.
// Each adapter resolves a validated source URL to media plus metadata, or
// fails with a classified BackendFailure. Cross-backend fallback is the
// orchestrator's job; an adapter never retries beyond its own configured
// network-level retry count.
package backend

import (
	"context"

	"tokrelay/internal/failure"
	"tokrelay/internal/validate"
)

// Stats are optional, backend-dependent engagement numbers.
type Stats struct {
	Duration int
	Plays    int64
	Likes    int64
	Comments int64
	Shares   int64
}

// Result is the normalized outcome of one successful extraction. Exactly
// one of Filename (artifact stored locally) or MediaURL (relayed by
// reference) is set.
type Result struct {
	Filename     string
	MediaURL     string
	Title        string
	Author       string
	Caption      string
	ThumbnailURL string
	Stats        *Stats
}

// Extractor is one concrete strategy for resolving a source URL.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, src validate.SourceURL) (*Result, *failure.BackendFailure)
}
