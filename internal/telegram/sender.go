// SPDX-License-Identifier: MIT

// Package telegram adapts the chat transport to the orchestrator's inbound
// and outbound contracts. The wire protocol itself lives in the bot API
// dependency; this package is glue only.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dlgram/dlgram/internal/bot"
	"github.com/dlgram/dlgram/internal/ytdlp"
)

// Sender implements the outbound delivery contract over the bot API.
type Sender struct {
	api *tgbotapi.BotAPI
}

// NewSender wraps an authenticated bot API client.
func NewSender(api *tgbotapi.BotAPI) *Sender {
	return &Sender{api: api}
}

var _ bot.Delivery = (*Sender)(nil)

func (s *Sender) SendText(_ context.Context, conversationID, text string) (int, error) {
	chatID, err := chatIDFor(conversationID)
	if err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}
	return sent.MessageID, nil
}

func (s *Sender) SendChoices(_ context.Context, conversationID, text string, rows [][]bot.Choice) (int, error) {
	chatID, err := chatIDFor(conversationID)
	if err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboardFor(rows)
	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send choices: %w", err)
	}
	return sent.MessageID, nil
}

func (s *Sender) EditText(_ context.Context, conversationID string, messageID int, text string) error {
	chatID, err := chatIDFor(conversationID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("edit text: %w", err)
	}
	return nil
}

func (s *Sender) EditChoices(_ context.Context, conversationID string, messageID int, text string, rows [][]bot.Choice) error {
	chatID, err := chatIDFor(conversationID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	markup := keyboardFor(rows)
	msg.ReplyMarkup = &markup
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("edit choices: %w", err)
	}
	return nil
}

func (s *Sender) DeleteMessage(_ context.Context, conversationID string, messageID int) error {
	chatID, err := chatIDFor(conversationID)
	if err != nil {
		return err
	}
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *Sender) SendMedia(_ context.Context, conversationID string, media bot.Media) error {
	chatID, err := chatIDFor(conversationID)
	if err != nil {
		return err
	}

	file := tgbotapi.FilePath(media.Path)
	var payload tgbotapi.Chattable
	if media.Kind == ytdlp.KindAudio {
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Title = media.Caption
		if media.ThumbPath != "" {
			audio.Thumb = tgbotapi.FilePath(media.ThumbPath)
		}
		payload = audio
	} else {
		video := tgbotapi.NewVideo(chatID, file)
		video.Caption = media.Caption
		video.Duration = media.Duration
		video.SupportsStreaming = true
		if media.ThumbPath != "" {
			video.Thumb = tgbotapi.FilePath(media.ThumbPath)
		}
		payload = video
	}

	if _, err := s.api.Send(payload); err != nil {
		return fmt.Errorf("send media: %w", err)
	}
	return nil
}

func keyboardFor(rows [][]bot.Choice) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Token))
		}
		kb = append(kb, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

func chatIDFor(conversationID string) (int64, error) {
	id, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("conversation id %q: %w", conversationID, err)
	}
	return id, nil
}
