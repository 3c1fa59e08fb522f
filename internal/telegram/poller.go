// SPDX-License-Identifier: MIT

package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/dlgram/dlgram/internal/bot"
)

// Poller consumes transport updates via long polling and feeds them to the
// orchestrator, one goroutine per update so a slow conversation never blocks
// the stream.
type Poller struct {
	api    *tgbotapi.BotAPI
	orch   *bot.Orchestrator
	logger zerolog.Logger
}

// NewPoller wires the update stream to the orchestrator.
func NewPoller(api *tgbotapi.BotAPI, orch *bot.Orchestrator, logger zerolog.Logger) *Poller {
	return &Poller{api: api, orch: orch, logger: logger}
}

// Run blocks until ctx is done or the update stream closes.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := p.api.GetUpdatesChan(cfg)

	p.logger.Info().Str("event", "poller.started").Msg("listening for updates")
	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go p.dispatch(ctx, update)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Str("event", "poller.panic").
				Msg("recovered panic while dispatching update")
		}
	}()

	switch {
	case update.Message != nil:
		conv := strconv.FormatInt(update.Message.Chat.ID, 10)
		p.orch.HandleText(ctx, conv, update.Message.Text)
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		// Ack first so the client's loading indicator clears.
		_, _ = p.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, ""))
		conv := strconv.FormatInt(update.CallbackQuery.Message.Chat.ID, 10)
		p.orch.HandleChoice(ctx, conv, update.CallbackQuery.Data)
	}
}
