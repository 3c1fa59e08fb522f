// SPDX-License-Identifier: MIT

// Command dlgramd runs the interactive media-download bot daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dlgram/dlgram/internal/api"
	"github.com/dlgram/dlgram/internal/bot"
	"github.com/dlgram/dlgram/internal/config"
	"github.com/dlgram/dlgram/internal/fsutil"
	"github.com/dlgram/dlgram/internal/health"
	"github.com/dlgram/dlgram/internal/janitor"
	xlog "github.com/dlgram/dlgram/internal/log"
	"github.com/dlgram/dlgram/internal/session"
	"github.com/dlgram/dlgram/internal/telegram"
	"github.com/dlgram/dlgram/internal/ytdlp"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("dlgramd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	xlog.Configure(xlog.Config{Level: cfg.LogLevel, Service: "dlgram", Version: version})
	logger := xlog.WithComponent("daemon")

	// Startup-fatal conditions only: workspace and transport. Everything
	// downstream recovers at the conversation level.
	if err := fsutil.EnsureWorkspace(cfg.Workspace); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.workspace_failed").Msg("cannot prepare workspace")
	}

	tgAPI, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.transport_failed").Msg("cannot reach the messaging transport")
	}
	logger.Info().
		Str("event", "daemon.transport_ready").
		Str("bot", tgAPI.Self.UserName).
		Msg("transport authenticated")

	store := session.NewStore()
	prober := &ytdlp.Prober{
		Binary:  cfg.ToolPath,
		Timeout: cfg.ProbeTimeout,
		Logger:  xlog.WithComponent("probe"),
	}
	runner := &ytdlp.Runner{
		Binary:  cfg.ToolPath,
		Ceiling: cfg.DownloadCeiling,
		Grace:   5 * time.Second,
		Logger:  xlog.WithComponent("runner"),
	}
	orch := bot.New(
		bot.Config{
			Workspace:        cfg.Workspace,
			MaxPayloadBytes:  cfg.MaxPayloadBytes,
			ProgressInterval: cfg.ProgressInterval,
			SessionTTL:       cfg.SessionTTL,
			MaxChoices:       cfg.MaxChoices,
		},
		bot.Deps{
			Prober:     prober,
			Downloader: bot.NewToolDownloader(runner),
			Delivery:   telegram.NewSender(tgAPI),
			Logger:     xlog.WithComponent("orchestrator"),
		},
		store,
	)
	poller := telegram.NewPoller(tgAPI, orch, xlog.WithComponent("poller"))
	sweeper := &janitor.Sweeper{
		Dir:      cfg.Workspace,
		MaxAge:   cfg.Retention,
		Interval: cfg.JanitorInterval,
		Logger:   xlog.WithComponent("janitor"),
	}

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewDirChecker("workspace", cfg.Workspace))
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(hm),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("event", "daemon.listening").Str("addr", cfg.ListenAddr).Msg("operational surface up")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return poller.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
	}
	logger.Info().Str("event", "daemon.stopped").Msg("shutdown complete")
}
