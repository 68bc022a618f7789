package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tikup-service/tikup_service/pkg/logger"
)

// TelegramSink delivers notifications through the Telegram Bot API
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	logger *logger.Logger
}

// NewTelegramSink creates a sink over an authorized bot client
func NewTelegramSink(bot *tgbotapi.BotAPI, logger *logger.Logger) *TelegramSink {
	return &TelegramSink{bot: bot, logger: logger}
}

// SendMessage sends an HTML-formatted message to the given chat
func (s *TelegramSink) SendMessage(ctx context.Context, chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", chatID, err)
	}
	return nil
}

// EditCaption replaces the caption of a previously sent media message and
// removes its inline buttons
func (s *TelegramSink) EditCaption(ctx context.Context, chatID string, messageID int, caption string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	edit := tgbotapi.NewEditMessageCaption(id, messageID, caption)
	edit.ParseMode = tgbotapi.ModeHTML
	empty := tgbotapi.NewInlineKeyboardMarkup()
	empty.InlineKeyboard = [][]tgbotapi.InlineKeyboardButton{}
	edit.ReplyMarkup = &empty

	if _, err := s.bot.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message %d in chat %s: %w", messageID, chatID, err)
	}
	return nil
}
