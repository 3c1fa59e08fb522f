// SPDX-License-Identifier: MIT

package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/dlgram/dlgram/internal/metrics"
)

// ErrProbeTimeout indicates the metadata probe exceeded its wall-clock bound.
var ErrProbeTimeout = errors.New("metadata probe timed out")

// Prober runs metadata-only queries against a source URL.
type Prober struct {
	Binary  string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Probe enumerates the available formats for url without downloading media.
// It runs the tool with JSON output for a single entry and decodes the
// document into Metadata.
func (p *Prober) Probe(ctx context.Context, url string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Binary, "-j", "--no-playlist", url)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.IncProbe("timeout")
			return nil, ErrProbeTimeout
		}
		metrics.IncProbe("error")
		p.Logger.Warn().
			Err(err).
			Str("event", "probe.failed").
			Str("url", url).
			Msg("probe subprocess failed")
		return nil, fmt.Errorf("probe %s: %w", url, err)
	}

	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		metrics.IncProbe("decode_error")
		return nil, fmt.Errorf("decode probe output: %w", err)
	}

	metrics.IncProbe("ok")
	p.Logger.Debug().
		Str("event", "probe.ok").
		Str("url", url).
		Int("formats", len(meta.Formats)).
		Msg("probe completed")
	return &meta, nil
}
