// SPDX-License-Identifier: MIT

// Package janitor bounds workspace disk usage. It is the only safety net
// against orphaned artifacts from crashed or killed jobs, so it runs for the
// entire process lifetime.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dlgram/dlgram/internal/fsutil"
	"github.com/dlgram/dlgram/internal/metrics"
)

// Sweeper deletes workspace files older than the retention threshold.
type Sweeper struct {
	Dir      string
	MaxAge   time.Duration
	Interval time.Duration
	Logger   zerolog.Logger
}

// Run sweeps on a fixed interval until ctx is done. It never returns an
// error: individual sweep failures are logged and the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(time.Now())
		}
	}
}

// SweepOnce removes every regular file in the workspace whose mtime age
// exceeds MaxAge. Files vanishing mid-sweep are benign: in-flight jobs clean
// up after themselves concurrently.
func (s *Sweeper) SweepOnce(now time.Time) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		s.Logger.Warn().Err(err).Str("event", "janitor.list_failed").Msg("could not list workspace")
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		if !fsutil.WithinRoot(s.Dir, path) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // vanished between list and stat
		}
		if now.Sub(info.ModTime()) <= s.MaxAge {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.Logger.Warn().Err(err).Str("event", "janitor.remove_failed").Str("path", path).Msg("could not remove expired file")
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.AddJanitorRemoved(removed)
		s.Logger.Info().
			Str("event", "janitor.swept").
			Int("removed", removed).
			Msg("expired workspace files removed")
	}
}
