package services

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
)

type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	err      error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: f.err == nil}, f.err
}

func TestTelegramService_Notify(t *testing.T) {
	api := &fakeAPI{}
	tg := NewTelegramService(api, logging.Discard())

	err := tg.Notify(context.Background(), 42, models.Notification{
		Text:     "<b>hi</b>",
		Keyboard: PaymentDoneKeyboard(7),
	})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)

	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)

	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "paid|7", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestTelegramService_SkipsEmptyChat(t *testing.T) {
	api := &fakeAPI{}
	tg := NewTelegramService(api, logging.Discard())
	require.NoError(t, tg.SendMessage(context.Background(), 0, "x", nil))
	assert.Empty(t, api.sent)
}

func TestTelegramService_SendError(t *testing.T) {
	api := &fakeAPI{err: errors.New("Forbidden: bot was blocked by the user")}
	tg := NewTelegramService(api, logging.Discard())
	err := tg.Notify(context.Background(), 1, models.Notification{Text: "x"})
	assert.Error(t, err)
}

func TestTelegramService_ReplyKeyboard(t *testing.T) {
	api := &fakeAPI{}
	tg := NewTelegramService(api, logging.Discard())
	require.NoError(t, tg.SendReplyKeyboard(context.Background(), 5, "menu", [][]string{{"a", "b"}, {"c"}}))

	msg := api.sent[0].(tgbotapi.MessageConfig)
	markup, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.Keyboard, 2)
	assert.Equal(t, "b", markup.Keyboard[0][1].Text)
}

func TestInlineMarkup_URLAndCallbacks(t *testing.T) {
	kb := models.Keyboard{
		{{Action: models.IntentURL, Label: "support", Payload: "https://t.me/support"}},
		{{Action: models.IntentBackToMenu, Label: "menu"}},
		{{Action: models.IntentPaymentMethod, Label: "TON", Payload: models.JoinPayload("12", "TON")}},
	}
	m := InlineMarkup(kb)
	require.Len(t, m.InlineKeyboard, 3)
	require.NotNil(t, m.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/support", *m.InlineKeyboard[0][0].URL)
	assert.Equal(t, "menu", *m.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "pay|12:TON", *m.InlineKeyboard[2][0].CallbackData)
}

func TestDecodeCallback(t *testing.T) {
	action, payload := DecodeCallback("pay|12:TON")
	assert.Equal(t, models.IntentPaymentMethod, action)
	assert.Equal(t, []string{"12", "TON"}, models.SplitPayload(payload))

	action, payload = DecodeCallback("menu")
	assert.Equal(t, "menu", action)
	assert.Empty(t, payload)
}
