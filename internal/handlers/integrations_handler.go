package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ozergarant/internal/logging"
)

// secretHeader is set by Telegram when the webhook was registered with a
// secret_token.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateFeeder is the bot runner's webhook entry point.
type UpdateFeeder interface {
	Feed(ctx context.Context, upd tgbotapi.Update) error
}

type IntegrationsHandler struct {
	feeder UpdateFeeder
	secret string
	log    logging.Logger
}

func NewIntegrationsHandler(feeder UpdateFeeder, secret string, log logging.Logger) *IntegrationsHandler {
	return &IntegrationsHandler{feeder: feeder, secret: secret, log: log.With("component", "tg.webhook")}
}

// Webhook accepts Telegram updates. Anything we cannot use still gets 200,
// otherwise Telegram keeps redelivering it.
//
// @Summary  Telegram webhook
// @Tags     Integrations
// @Accept   json
// @Success  200
// @Failure  401  {object}  map[string]string
// @Router   /integrations/telegram/webhook [post]
func (h *IntegrationsHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()
	if h.secret != "" {
		got := c.GetHeader(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warn(ctx, "webhook secret mismatch", "remote", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad secret token"})
			return
		}
	}

	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.log.Warn(ctx, "bind update failed", "error", err)
		c.Status(http.StatusOK)
		return
	}
	if err := h.feeder.Feed(ctx, upd); err != nil {
		h.log.Warn(ctx, "update not queued", "update_id", upd.UpdateID, "error", err)
	}
	c.Status(http.StatusOK)
}
