package services

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
)

// callbackSep separates the intent action from its payload in callback data.
const callbackSep = "|"

// telegramAPI is the part of *tgbotapi.BotAPI the service needs.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramService is the outbound side of the bot. It also serves as the
// Notifier for the deal service.
type TelegramService struct {
	api telegramAPI
	log logging.Logger
}

func NewTelegramService(api telegramAPI, log logging.Logger) *TelegramService {
	return &TelegramService{api: api, log: log.With("component", "tg")}
}

func (t *TelegramService) Notify(ctx context.Context, userID int64, n models.Notification) error {
	return t.SendMessage(ctx, userID, n.Text, n.Keyboard)
}

// SendMessage sends HTML text with an optional inline keyboard.
func (t *TelegramService) SendMessage(ctx context.Context, chatID int64, text string, kb models.Keyboard) error {
	if t == nil || chatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if len(kb) > 0 {
		msg.ReplyMarkup = InlineMarkup(kb)
	}
	return t.send(ctx, "sendMessage", chatID, msg)
}

// SendReplyKeyboard — обычная ReplyKeyboard (кнопки под строкой ввода).
func (t *TelegramService) SendReplyKeyboard(ctx context.Context, chatID int64, text string, keyboard [][]string) error {
	if t == nil || chatID == 0 {
		return nil
	}
	rows := make([][]tgbotapi.KeyboardButton, 0, len(keyboard))
	for _, r := range keyboard {
		row := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, label := range r {
			row = append(row, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, row)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return t.send(ctx, "sendReplyKeyboard", chatID, msg)
}

// EditMessage replaces the text (and inline keyboard) of a bot message.
func (t *TelegramService) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb models.Keyboard) error {
	if t == nil || chatID == 0 || messageID == 0 {
		return nil
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if len(kb) > 0 {
		markup := InlineMarkup(kb)
		edit.ReplyMarkup = &markup
	}
	return t.send(ctx, "editMessageText", chatID, edit)
}

// AnswerCallback stops the client spinner; alert shows a modal instead of a toast.
func (t *TelegramService) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if t == nil || callbackID == "" {
		return nil
	}
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := t.api.Request(cb); err != nil {
		t.log.Warn(ctx, "answer callback failed", "error", err)
		return fmt.Errorf("telegram answerCallbackQuery failed: %w", err)
	}
	return nil
}

func (t *TelegramService) send(ctx context.Context, op string, chatID int64, c tgbotapi.Chattable) error {
	if _, err := t.api.Send(c); err != nil {
		t.log.Warn(ctx, "telegram send failed", "op", op, "chat_id", chatID, "error", err)
		return fmt.Errorf("telegram %s failed: %w", op, err)
	}
	t.log.Debug(ctx, "telegram sent", "op", op, "chat_id", chatID)
	return nil
}

// InlineMarkup turns intents into an inline keyboard. URL intents become
// link buttons; everything else becomes callback data "action|payload".
func InlineMarkup(kb models.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, in := range r {
			if in.Action == models.IntentURL {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(in.Label, in.Payload))
				continue
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(in.Label, EncodeCallback(in)))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func EncodeCallback(in models.Intent) string {
	if in.Payload == "" {
		return in.Action
	}
	return in.Action + callbackSep + in.Payload
}

// DecodeCallback is the inverse of EncodeCallback.
func DecodeCallback(data string) (action, payload string) {
	action, payload, _ = strings.Cut(data, callbackSep)
	return action, payload
}
