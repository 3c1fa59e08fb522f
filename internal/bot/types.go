// SPDX-License-Identifier: MIT

// Package bot implements the interactive download orchestrator: the
// per-conversation state machine from link submission to media delivery.
package bot

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dlgram/dlgram/internal/session"
	"github.com/dlgram/dlgram/internal/ytdlp"
)

// Choice is one selectable option presented to the user. Token comes back
// verbatim through HandleChoice.
type Choice struct {
	Label string
	Token string
}

// Media is a final artifact handed to the transport for upload.
type Media struct {
	Path      string
	ThumbPath string
	Caption   string
	Kind      ytdlp.MediaKind
	Duration  int // seconds, 0 if unknown
}

// Delivery is the outbound contract to the chat transport. Failures are
// terminal for the current job but never for the process.
type Delivery interface {
	SendText(ctx context.Context, conversationID, text string) (int, error)
	SendChoices(ctx context.Context, conversationID, text string, rows [][]Choice) (int, error)
	EditText(ctx context.Context, conversationID string, messageID int, text string) error
	EditChoices(ctx context.Context, conversationID string, messageID int, text string, rows [][]Choice) error
	DeleteMessage(ctx context.Context, conversationID string, messageID int) error
	SendMedia(ctx context.Context, conversationID string, media Media) error
}

// Prober enumerates available formats for a source URL without downloading.
type Prober interface {
	Probe(ctx context.Context, url string) (*ytdlp.Metadata, error)
}

// Job is one running download subprocess.
type Job interface {
	Lines() <-chan string
	Wait() error
	Stop()
	Expired() bool
	Tail() []string
}

// Downloader spawns download jobs.
type Downloader interface {
	Start(ctx context.Context, args []string) (Job, error)
}

// NewToolDownloader adapts a ytdlp.Runner to the Downloader contract.
func NewToolDownloader(r *ytdlp.Runner) Downloader {
	return toolDownloader{r}
}

type toolDownloader struct {
	r *ytdlp.Runner
}

func (d toolDownloader) Start(ctx context.Context, args []string) (Job, error) {
	h, err := d.r.Start(ctx, args)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Config carries the orchestrator tunables. All values come from the daemon
// configuration; the orchestrator holds no process-wide state.
type Config struct {
	Workspace        string
	MaxPayloadBytes  int64
	ProgressInterval time.Duration
	SessionTTL       time.Duration
	MaxChoices       int
}

// Deps bundles the orchestrator's collaborators so tests can inject fakes.
type Deps struct {
	Prober     Prober
	Downloader Downloader
	Delivery   Delivery
	HTTP       *http.Client // thumbnail sidecar fetches
	Clock      func() time.Time
	Logger     zerolog.Logger
}

// Orchestrator drives the conversation state machine. One instance serves
// all conversations; per-conversation ordering comes from the store.
type Orchestrator struct {
	cfg   Config
	deps  Deps
	store *session.Store
}

// New constructs an orchestrator. Nil Clock defaults to time.Now; nil HTTP
// defaults to a client suited for thumbnail fetches.
func New(cfg Config, deps Deps, store *session.Store) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	return &Orchestrator{cfg: cfg, deps: deps, store: store}
}

// Store exposes the session store for wiring and tests.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}
