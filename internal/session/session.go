// SPDX-License-Identifier: MIT

// Package session holds the per-conversation state machine data and the
// concurrency-safe store that owns it.
package session

import (
	"context"
	"time"

	"github.com/dlgram/dlgram/internal/ytdlp"
)

// Stage enumerates the lifecycle of one conversation's download flow. It
// only advances forward, except for transitions into Failed or Expired,
// which are reachable from any non-terminal stage.
type Stage int

const (
	AwaitingLink Stage = iota
	AwaitingMediaKind
	AwaitingFormat
	Downloading
	Delivering
	Done
	Failed
	Expired
)

var stageNames = map[Stage]string{
	AwaitingLink:      "awaiting_link",
	AwaitingMediaKind: "awaiting_media_kind",
	AwaitingFormat:    "awaiting_format",
	Downloading:       "downloading",
	Delivering:        "delivering",
	Done:              "done",
	Failed:            "failed",
	Expired:           "expired",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether the stage ends the session.
func (s Stage) IsTerminal() bool {
	return s == Done || s == Failed || s == Expired
}

// CanAdvanceTo reports whether moving from s to next respects the forward-only
// rule: the enumerated order, plus Failed/Expired from anywhere non-terminal.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if s.IsTerminal() {
		return false
	}
	if next == Failed || next == Expired {
		return true
	}
	return next > s
}

// Session is the unit of truth for one conversation's in-flight download
// flow. It is created on the first accepted link and mutated only by the
// orchestrator while holding the store's per-conversation lock.
type Session struct {
	ConversationID string
	SourceURL      string
	Title          string
	Thumbnail      string
	Duration       int // seconds, 0 if the probe did not report one
	Kind           ytdlp.MediaKind
	Formats        []ytdlp.Format // filtered, sorted, truncated choice list
	AllFormats     []ytdlp.Format // full probe result, filtered on kind choice
	Chosen         *ytdlp.Format
	Stage          Stage
	PromptID       int    // live prompt/status message handle
	JobID          string // correlation id for the download job, set on format choice

	CreatedAt    time.Time
	LastActivity time.Time

	// CancelJob aborts an active download subprocess. Set when the job is
	// started and cleared once the subprocess has exited; nil otherwise.
	CancelJob context.CancelFunc
	// Cancelled marks a user-requested abort so the job finaliser can tell
	// it apart from a failure.
	Cancelled bool
}

// New creates a session in AwaitingMediaKind: the link was already accepted
// and probed by the time a session exists.
func New(conversationID, url string, now time.Time) *Session {
	return &Session{
		ConversationID: conversationID,
		SourceURL:      url,
		Stage:          AwaitingMediaKind,
		CreatedAt:      now,
		LastActivity:   now,
	}
}

// Touch records activity for lazy expiry.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// ExpiredAt reports whether the session has been inactive longer than ttl.
func (s *Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivity) > ttl
}
