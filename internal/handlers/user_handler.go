package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ozergarant/internal/logging"
	"ozergarant/internal/middleware"
	"ozergarant/internal/services"
)

type UserHandler struct {
	users services.UserService
	deals services.DealService
	log   logging.Logger
}

func NewUserHandler(users services.UserService, deals services.DealService, log logging.Logger) *UserHandler {
	return &UserHandler{users: users, deals: deals, log: log.With("component", "http.users")}
}

// @Summary  Пользователь бота по Telegram id
// @Tags     Users
// @Produce  json
// @Security BearerAuth
// @Param    id   path      int  true  "Telegram user id"
// @Success  200  {object}  models.User
// @Failure  404  {object}  map[string]string
// @Router   /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, "get user", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// @Summary  Сделки пользователя (создатель или участник), новые первыми
// @Tags     Users
// @Produce  json
// @Security BearerAuth
// @Param    id   path      int  true  "Telegram user id"
// @Success  200  {array}   models.Deal
// @Router   /api/users/{id}/deals [get]
func (h *UserHandler) ListDeals(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	deals, err := h.deals.ListForUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, "list user deals", err)
		return
	}
	if deals == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, deals)
}

// @Summary  Заблокировать пользователя
// @Tags     Users
// @Security BearerAuth
// @Param    id   path  int  true  "Telegram user id"
// @Success  204
// @Router   /api/users/{id}/ban [post]
func (h *UserHandler) Ban(c *gin.Context) { h.setBanned(c, true) }

// @Summary  Разблокировать пользователя
// @Tags     Users
// @Security BearerAuth
// @Param    id   path  int  true  "Telegram user id"
// @Success  204
// @Router   /api/users/{id}/ban [delete]
func (h *UserHandler) Unban(c *gin.Context) { h.setBanned(c, false) }

func (h *UserHandler) setBanned(c *gin.Context, banned bool) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	if err := h.users.SetBanned(c.Request.Context(), id, banned); err != nil {
		writeError(c, h.log, "set banned", err)
		return
	}
	h.log.Info(c.Request.Context(), "ban changed by admin",
		"user_id", id, "banned", banned, "by", middleware.UsernameFrom(c))
	c.Status(http.StatusNoContent)
}
