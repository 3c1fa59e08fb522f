// SPDX-License-Identifier: MIT

package bot

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dlgram/dlgram/internal/fsutil"
	"github.com/dlgram/dlgram/internal/log"
	"github.com/dlgram/dlgram/internal/metrics"
	"github.com/dlgram/dlgram/internal/session"
	"github.com/dlgram/dlgram/internal/ytdlp"
)

// runDownload owns one DownloadJob from subprocess start to cleanup. It runs
// outside the conversation lock; state is touched only inside Serialize
// sections so inbound events for the same conversation stay ordered.
func (o *Orchestrator) runDownload(ctx context.Context, sess *session.Session) {
	conversationID := sess.ConversationID
	defer o.recoverEvent(conversationID)
	logger := o.logger(conversationID).With().Str(log.FieldJobID, sess.JobID).Logger()

	start := o.deps.Clock()
	base := fsutil.ArtifactBase(o.cfg.Workspace, conversationID, sess.Chosen.ID, start)
	args := buildArgs(sess, base+".%(ext)s")

	_ = o.deps.Delivery.EditText(ctx, conversationID, sess.PromptID, "🚀 *Starting download...*")

	job, err := o.deps.Downloader.Start(ctx, args)
	if err != nil {
		logger.Error().Err(err).Str("event", "job.start_failed").Msg("could not start download subprocess")
		o.finishFailure(sess, ReasonDownloadFailed, "spawn_error")
		return
	}

	// One goroutine owns the output stream and publishes the latest parsed
	// percentage; a second samples it on a fixed tick and issues at most one
	// status edit per tick. Both stop once the subprocess terminates.
	tracker := &ytdlp.Tracker{}
	finished := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		for line := range job.Lines() {
			if pct, ok := ytdlp.ParseProgress(line); ok {
				tracker.Observe(pct)
			}
		}
		return nil
	})
	g.Go(func() error {
		o.reportProgress(ctx, finished, sess, tracker)
		return nil
	})

	waitErr := job.Wait()
	close(finished)
	_ = g.Wait()
	metrics.ObserveDownloadDuration(o.deps.Clock().Sub(start))

	cancelled := false
	o.store.Serialize(conversationID, func() {
		cancelled = sess.Cancelled
		// The subprocess has exited; the cancel hook has nothing left to abort.
		sess.CancelJob = nil
	})

	switch {
	case cancelled:
		removeArtifacts(base)
		o.finishCancelled(sess)
		return
	case waitErr != nil:
		logReason := "exit_error"
		if job.Expired() {
			logReason = "wall_clock_ceiling"
		}
		logger.Warn().
			Err(waitErr).
			Str("event", "job.failed").
			Str(log.FieldReason, logReason).
			Strs("tail", job.Tail()).
			Msg("download subprocess failed")
		removeArtifacts(base)
		o.finishFailure(sess, ReasonDownloadFailed, logReason)
		return
	}

	artifact, size, err := findArtifact(base)
	if err != nil {
		logger.Warn().Err(err).Str("event", "job.artifact_missing").Msg("no artifact after successful exit")
		removeArtifacts(base)
		o.finishFailure(sess, ReasonDownloadFailed, "artifact_missing")
		return
	}
	if size > o.cfg.MaxPayloadBytes {
		// Deleted immediately; retention would invite disk exhaustion.
		logger.Info().
			Str("event", "job.artifact_too_large").
			Str(log.FieldPath, artifact).
			Int64(log.FieldSize, size).
			Msg("artifact exceeds the delivery ceiling")
		removeArtifacts(base)
		o.finishFailure(sess, ReasonArtifactTooLarge, "artifact_too_large")
		return
	}

	o.store.Serialize(conversationID, func() {
		o.transition(sess, session.Delivering)
	})
	o.deliver(sess, base, artifact, size)
}

// deliver uploads the artifact and finalises the session. Runs outside the
// conversation lock: uploads may take a while and must not stall other
// events sharing a lock shard.
func (o *Orchestrator) deliver(sess *session.Session, base, artifact string, size int64) {
	conversationID := sess.ConversationID
	logger := o.logger(conversationID)
	ctx := context.Background()

	_ = o.deps.Delivery.EditText(ctx, conversationID, sess.PromptID, "📤 *Uploading...*")

	media := Media{
		Path:      artifact,
		ThumbPath: o.fetchThumbnail(sess.Thumbnail, base),
		Caption:   sess.Title,
		Kind:      sess.Kind,
		Duration:  sess.Duration,
	}
	err := o.deps.Delivery.SendMedia(ctx, conversationID, media)

	o.store.Serialize(conversationID, func() {
		removeArtifacts(base)
		if err != nil {
			logger.Warn().Err(err).Str("event", "job.delivery_failed").Msg("media delivery failed")
			metrics.IncDownload(string(ReasonDeliveryFailed))
			if !o.ownsSession(sess) {
				// A newer link already replaced this session; only the prompt
				// belongs to this job.
				_ = o.deps.Delivery.EditText(ctx, conversationID, sess.PromptID, ReasonDeliveryFailed.UserMessage())
				return
			}
			o.failSession(ctx, sess, ReasonDeliveryFailed)
			return
		}
		o.transition(sess, session.Done)
		o.removeIfCurrent(sess)
		_ = o.deps.Delivery.DeleteMessage(ctx, conversationID, sess.PromptID)
		metrics.IncDownload("done")
		logger.Info().
			Str("event", "job.done").
			Str(log.FieldPath, artifact).
			Int64(log.FieldSize, size).
			Msg("media delivered")
	})
}

// reportProgress samples the tracker on the configured interval. Updates are
// strictly increasing with no consecutive duplicates; ticks without a new
// higher value are skipped silently.
func (o *Orchestrator) reportProgress(ctx context.Context, finished <-chan struct{}, sess *session.Session, tracker *ytdlp.Tracker) {
	logger := o.logger(sess.ConversationID)
	ticker := time.NewTicker(o.cfg.ProgressInterval)
	defer ticker.Stop()

	lastSent := -1.0
	for {
		select {
		case <-finished:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			pct, ok := tracker.Latest()
			if !ok || pct <= lastSent {
				continue
			}
			lastSent = pct
			text := fmt.Sprintf("⏬ *Downloading: %.1f%%*\n%s", pct, renderBar(pct))
			if err := o.deps.Delivery.EditText(ctx, sess.ConversationID, sess.PromptID, text); err != nil {
				logger.Debug().
					Err(err).
					Str("event", "progress.edit_failed").
					Float64(log.FieldPercent, pct).
					Msg("progress edit rejected")
			}
		}
	}
}

// finishFailure finalises a failed job under the conversation lock.
func (o *Orchestrator) finishFailure(sess *session.Session, reason Reason, logReason string) {
	o.store.Serialize(sess.ConversationID, func() {
		metrics.IncDownload(logReason)
		if !o.ownsSession(sess) {
			// A newer link already replaced this session; only the prompt
			// belongs to this job.
			_ = o.deps.Delivery.EditText(context.Background(), sess.ConversationID, sess.PromptID, reason.UserMessage())
			return
		}
		o.failSession(context.Background(), sess, reason)
	})
}

// finishCancelled finalises a user-cancelled or superseded job.
func (o *Orchestrator) finishCancelled(sess *session.Session) {
	o.store.Serialize(sess.ConversationID, func() {
		metrics.IncDownload("cancelled")
		_ = o.deps.Delivery.DeleteMessage(context.Background(), sess.ConversationID, sess.PromptID)
		if o.ownsSession(sess) {
			o.transition(sess, session.Expired)
			o.store.Remove(sess.ConversationID)
		}
		logger := o.logger(sess.ConversationID)
		logger.Info().
			Str("event", "job.cancelled").
			Msg("download job cancelled")
	})
}

// ownsSession reports whether sess is still the stored session for its
// conversation (a new link may have replaced it mid-job).
func (o *Orchestrator) ownsSession(sess *session.Session) bool {
	current, ok := o.store.Get(sess.ConversationID)
	return ok && current == sess
}

func (o *Orchestrator) removeIfCurrent(sess *session.Session) {
	if o.ownsSession(sess) {
		o.store.Remove(sess.ConversationID)
	}
}

// fetchThumbnail downloads the probed thumbnail next to the artifact.
// Best effort: delivery proceeds without one.
func (o *Orchestrator) fetchThumbnail(url, base string) string {
	if url == "" {
		return ""
	}
	resp, err := o.deps.HTTP.Get(url)
	if err != nil {
		return ""
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		return ""
	}

	path := base + "_thumb.jpg"
	f, err := os.Create(path)
	if err != nil {
		return ""
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return ""
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return ""
	}
	return path
}

func buildArgs(sess *session.Session, template string) []string {
	if sess.Kind == ytdlp.KindAudio {
		return []string{
			"-f", sess.Chosen.ID,
			"-x", "--audio-format", "mp3",
			"--audio-quality", "0",
			"--newline",
			"-o", template,
			sess.SourceURL,
		}
	}
	return []string{
		"-f", sess.Chosen.ID,
		"--newline",
		"-o", template,
		sess.SourceURL,
	}
}

// findArtifact locates the produced file by its collision-free prefix; the
// tool substitutes the container extension.
func findArtifact(base string) (string, int64, error) {
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return "", 0, err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, "_thumb.jpg") {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		return m, info.Size(), nil
	}
	return "", 0, fmt.Errorf("no artifact for prefix %s", base)
}

// removeArtifacts clears every workspace file belonging to the job. Races
// with the janitor are benign: a vanished file is already gone.
func removeArtifacts(base string) {
	matches, _ := filepath.Glob(base + "*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func renderBar(pct float64) string {
	const segments = 10
	filled := int(math.Round(pct / 100 * segments))
	if filled > segments {
		filled = segments
	}
	return strings.Repeat("▓", filled) + strings.Repeat("░", segments-filled)
}
