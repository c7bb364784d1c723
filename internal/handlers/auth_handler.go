package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"ozergarant/internal/authz"
	"ozergarant/internal/logging"
	"ozergarant/internal/middleware"
	"ozergarant/internal/models"
)

// Account is one admin API login taken from config.
type Account struct {
	Username     string
	PasswordHash string // bcrypt
	RoleID       int
}

type AuthHandler struct {
	accounts []Account
	secret   []byte
	ttl      time.Duration
	log      logging.Logger
	now      func() time.Time
}

func NewAuthHandler(accounts []Account, secret []byte, ttl time.Duration, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		secret:   secret,
		ttl:      ttl,
		log:      log.With("component", "auth"),
		now:      time.Now,
	}
}

func (h *AuthHandler) lookup(username string) (Account, bool) {
	for _, a := range h.accounts {
		if a.Username != "" && subtle.ConstantTimeCompare([]byte(a.Username), []byte(username)) == 1 {
			return a, true
		}
	}
	return Account{}, false
}

// @Summary      Вход в admin API
// @Description  Проверяет логин/пароль из конфига и возвращает JWT
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Данные для входа"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /admin/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	username := strings.TrimSpace(req.Username)

	acc, ok := h.lookup(username)
	if !ok || acc.PasswordHash == "" {
		h.log.Warn(ctx, "login rejected", "username", username, "reason", "unknown account")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		h.log.Warn(ctx, "login rejected", "username", username, "reason", "bad password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	now := h.now()
	token, err := middleware.IssueToken(h.secret, acc.Username, acc.RoleID, h.ttl, now)
	if err != nil {
		h.log.Error(ctx, "sign token failed", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate access token"})
		return
	}
	h.log.Info(ctx, "login ok", "username", username, "role", authz.Name(acc.RoleID))

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   now.Add(h.ttl).UTC(),
		"role":         authz.Name(acc.RoleID),
	})
}
