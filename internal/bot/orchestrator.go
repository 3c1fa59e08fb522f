// SPDX-License-Identifier: MIT

package bot

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dlgram/dlgram/internal/log"
	"github.com/dlgram/dlgram/internal/session"
	"github.com/dlgram/dlgram/internal/ytdlp"
)

// Choice tokens understood by HandleChoice.
const (
	tokenKindVideo = "kind:video"
	tokenKindAudio = "kind:audio"
	tokenFormat    = "fmt:"
	tokenCancel    = "cancel"
)

const welcomeText = "🎬 *Media Downloader*\n\nSend a link (YouTube, TikTok, Instagram, ...) and pick the media type and quality. The bot delivers the file right here."

// HandleText processes a free-text submission bound to a conversation.
// A panic while handling one conversation's event never escapes: the
// session is failed and removed, other conversations are unaffected.
func (o *Orchestrator) HandleText(ctx context.Context, conversationID, text string) {
	defer o.recoverEvent(conversationID)

	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "/"):
		o.handleCommand(ctx, conversationID, text)
	case isAbsoluteURL(text):
		o.submitLink(ctx, conversationID, text)
	default:
		_, _ = o.deps.Delivery.SendText(ctx, conversationID, "📥 Please send a valid media link.")
	}
}

// HandleChoice processes a discrete choice action bound to a conversation.
// Unknown or stale tokens cause no state transition.
func (o *Orchestrator) HandleChoice(ctx context.Context, conversationID, token string) {
	defer o.recoverEvent(conversationID)

	o.store.Serialize(conversationID, func() {
		sess, ok := o.store.Get(conversationID)
		if !ok {
			_, _ = o.deps.Delivery.SendText(ctx, conversationID, ReasonSessionExpired.UserMessage())
			return
		}
		if o.expireIfIdle(ctx, sess) {
			return
		}

		switch {
		case token == tokenCancel:
			o.cancel(ctx, sess)
		case token == tokenKindVideo:
			o.chooseKind(ctx, sess, ytdlp.KindVideo)
		case token == tokenKindAudio:
			o.chooseKind(ctx, sess, ytdlp.KindAudio)
		case strings.HasPrefix(token, tokenFormat):
			o.chooseFormat(ctx, sess, strings.TrimPrefix(token, tokenFormat))
		default:
			logger := o.logger(conversationID)
			logger.Debug().
				Str("event", "choice.unknown_token").
				Str("token", token).
				Msg("ignoring unknown choice token")
		}
	})
}

func (o *Orchestrator) handleCommand(ctx context.Context, conversationID, text string) {
	cmd := strings.SplitN(text, " ", 2)[0]
	switch strings.TrimPrefix(cmd, "/") {
	case "start", "help":
		_, _ = o.deps.Delivery.SendText(ctx, conversationID, welcomeText)
	case "status":
		_, _ = o.deps.Delivery.SendText(ctx, conversationID, "✅ Bot is up. Send a link to start a download.")
	}
}

// submitLink validates and probes a link, then creates the session. The
// probe runs before the per-conversation lock is taken so a slow source
// never stalls other conversations sharing a lock shard.
func (o *Orchestrator) submitLink(ctx context.Context, conversationID, link string) {
	logger := o.logger(conversationID)

	promptID, err := o.deps.Delivery.SendText(ctx, conversationID, "🔍 Analyzing link...")
	if err != nil {
		logger.Warn().Err(err).Str("event", "link.prompt_failed").Msg("could not open prompt message")
		return
	}

	meta, err := o.deps.Prober.Probe(ctx, link)
	if err != nil {
		reason := ReasonInvalidLink
		if errors.Is(err, ytdlp.ErrProbeTimeout) {
			reason = ReasonProbeTimeout
		}
		logger.Info().
			Err(err).
			Str("event", "link.rejected").
			Str(log.FieldReason, string(reason)).
			Str(log.FieldURL, link).
			Msg("link rejected by probe")
		_ = o.deps.Delivery.EditText(ctx, conversationID, promptID, reason.UserMessage())
		return
	}

	o.store.Serialize(conversationID, func() {
		now := o.deps.Clock()
		if prior, ok := o.store.Get(conversationID); ok {
			// A new link implicitly invalidates and replaces the prior
			// session, stopping any subprocess it still owns.
			if prior.CancelJob != nil {
				prior.Cancelled = true
				prior.CancelJob()
			}
			o.store.Remove(conversationID)
			logger.Info().
				Str("event", "session.replaced").
				Str(log.FieldStage, prior.Stage.String()).
				Msg("prior session replaced by new link")
		}

		sess := session.New(conversationID, link, now)
		sess.Title = meta.Title
		sess.Thumbnail = meta.Thumbnail
		sess.Duration = int(meta.Duration)
		sess.AllFormats = meta.Formats
		sess.PromptID = promptID
		o.store.Put(conversationID, sess)

		rows := [][]Choice{
			{{Label: "🎥 Video", Token: tokenKindVideo}, {Label: "🎵 Audio", Token: tokenKindAudio}},
			{{Label: "❌ Cancel", Token: tokenCancel}},
		}
		text := "🎬 *" + escapeMarkdown(meta.Title) + "*\n\nWhat should I download?"
		if err := o.deps.Delivery.EditChoices(ctx, conversationID, promptID, text, rows); err != nil {
			logger.Warn().Err(err).Str("event", "link.kind_prompt_failed").Msg("could not present media-kind choices")
		}
		logger.Info().
			Str("event", "session.created").
			Str(log.FieldURL, link).
			Int("formats", len(meta.Formats)).
			Msg("session created")
	})
}

func (o *Orchestrator) chooseKind(ctx context.Context, sess *session.Session, kind ytdlp.MediaKind) {
	if sess.Stage != session.AwaitingMediaKind {
		return
	}
	logger := o.logger(sess.ConversationID)

	filtered := ytdlp.FilterByKind(sess.AllFormats, kind)
	if len(filtered) == 0 {
		o.failSession(ctx, sess, ReasonNoFormats)
		return
	}
	ytdlp.SortForPresentation(filtered)
	filtered = ytdlp.Truncate(filtered, o.cfg.MaxChoices)

	sess.Kind = kind
	sess.Formats = filtered
	o.transition(sess, session.AwaitingFormat)
	sess.Touch(o.deps.Clock())

	rows := make([][]Choice, 0, len(filtered)/2+2)
	row := make([]Choice, 0, 2)
	for _, f := range filtered {
		row = append(row, Choice{Label: f.Label(), Token: tokenFormat + f.ID})
		if len(row) == 2 {
			rows = append(rows, row)
			row = make([]Choice, 0, 2)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Choice{{Label: "❌ Cancel", Token: tokenCancel}})

	text := "🎬 *" + escapeMarkdown(sess.Title) + "*\n\nPick a quality:"
	if err := o.deps.Delivery.EditChoices(ctx, sess.ConversationID, sess.PromptID, text, rows); err != nil {
		logger.Warn().Err(err).Str("event", "kind.format_prompt_failed").Msg("could not present format choices")
	}
	logger.Info().
		Str("event", "kind.chosen").
		Str(log.FieldKind, kind.String()).
		Int("choices", len(filtered)).
		Msg("media kind chosen")
}

func (o *Orchestrator) chooseFormat(ctx context.Context, sess *session.Session, formatID string) {
	if sess.Stage != session.AwaitingFormat {
		return
	}
	logger := o.logger(sess.ConversationID)

	var chosen *ytdlp.Format
	for i := range sess.Formats {
		if sess.Formats[i].ID == formatID {
			chosen = &sess.Formats[i]
			break
		}
	}
	if chosen == nil {
		// Stale or fabricated id: no transition, no job.
		logger.Debug().
			Str("event", "format.unknown_id").
			Str(log.FieldFormatID, formatID).
			Msg("ignoring format id not in the presented list")
		return
	}

	sess.Chosen = chosen
	sess.JobID = uuid.NewString()
	o.transition(sess, session.Downloading)
	sess.Touch(o.deps.Clock())

	// The job outlives this event; it is bounded by the runner's ceiling and
	// cancelled through the session, never by the inbound event context.
	jobCtx, cancel := context.WithCancel(context.Background())
	sess.CancelJob = cancel

	logger.Info().
		Str("event", "format.chosen").
		Str(log.FieldFormatID, chosen.ID).
		Str(log.FieldJobID, sess.JobID).
		Msg("starting download job")
	go func() {
		defer cancel()
		o.runDownload(jobCtx, sess)
	}()
}

// cancel handles the user's cancel action for any non-terminal stage.
func (o *Orchestrator) cancel(ctx context.Context, sess *session.Session) {
	logger := o.logger(sess.ConversationID)

	if sess.Stage == session.Downloading && sess.CancelJob != nil {
		// The job finaliser observes the cancellation, stops the subprocess
		// and only then cleans the workspace and removes the session.
		sess.Cancelled = true
		sess.CancelJob()
		logger.Info().Str("event", "session.cancel_requested").Msg("cancelling active download")
		return
	}

	o.transition(sess, session.Expired)
	o.store.Remove(sess.ConversationID)
	_ = o.deps.Delivery.DeleteMessage(ctx, sess.ConversationID, sess.PromptID)
	logger.Info().Str("event", "session.cancelled").Msg("session cancelled by user")
}

// expireIfIdle applies the lazy inactivity timeout. Returns true when the
// session was expired and removed.
func (o *Orchestrator) expireIfIdle(ctx context.Context, sess *session.Session) bool {
	if sess.Stage.IsTerminal() || !sess.ExpiredAt(o.deps.Clock(), o.cfg.SessionTTL) {
		return false
	}
	if sess.CancelJob != nil {
		sess.Cancelled = true
		sess.CancelJob()
	}
	o.transition(sess, session.Expired)
	o.store.Remove(sess.ConversationID)
	_ = o.deps.Delivery.EditText(ctx, sess.ConversationID, sess.PromptID, ReasonSessionExpired.UserMessage())
	logger := o.logger(sess.ConversationID)
	logger.Info().
		Str("event", "session.expired").
		Msg("session expired after inactivity")
	return true
}

// failSession moves the session to Failed with a reason, notifies the user
// and removes it from the store. Must run under the conversation lock.
func (o *Orchestrator) failSession(ctx context.Context, sess *session.Session, reason Reason) {
	o.transition(sess, session.Failed)
	o.store.Remove(sess.ConversationID)
	_ = o.deps.Delivery.EditText(ctx, sess.ConversationID, sess.PromptID, reason.UserMessage())
	logger := o.logger(sess.ConversationID)
	logger.Info().
		Str("event", "session.failed").
		Str(log.FieldReason, string(reason)).
		Msg("session failed")
}

// transition advances the stage, enforcing the forward-only invariant.
func (o *Orchestrator) transition(sess *session.Session, next session.Stage) {
	logger := o.logger(sess.ConversationID)
	if !sess.Stage.CanAdvanceTo(next) {
		logger.Error().
			Str("event", "session.bad_transition").
			Str(log.FieldOldStage, sess.Stage.String()).
			Str(log.FieldNewStage, next.String()).
			Msg("refusing stage regression")
		return
	}
	logger.Debug().
		Str("event", "session.transition").
		Str(log.FieldOldStage, sess.Stage.String()).
		Str(log.FieldNewStage, next.String()).
		Msg("stage transition")
	sess.Stage = next
}

// recoverEvent is the per-conversation fault boundary: a panic fails only
// the offending conversation.
func (o *Orchestrator) recoverEvent(conversationID string) {
	if r := recover(); r != nil {
		logger := o.logger(conversationID)
		logger.Error().
			Interface("panic", r).
			Str("event", "event.panic").
			Msg("recovered panic while handling conversation event")
		if sess, ok := o.store.Get(conversationID); ok {
			if sess.CancelJob != nil {
				sess.CancelJob()
			}
			o.store.Remove(conversationID)
		}
	}
}

func (o *Orchestrator) logger(conversationID string) zerolog.Logger {
	l := o.deps.Logger.With().Str(log.FieldConversation, conversationID).Logger()
	return l
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func escapeMarkdown(text string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`").Replace(text)
}
