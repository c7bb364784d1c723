package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozergarant/internal/authz"
)

var secret = []byte("s3cret")

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(secret))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	api := r.Group("/api", RequireRoles(authz.RoleAdmin, authz.RoleAudit), ReadOnlyGuard())
	api.GET("/me", func(c *gin.Context) {
		role, _ := RoleFrom(c)
		c.JSON(http.StatusOK, gin.H{"user": UsernameFrom(c), "role": role})
	})
	api.POST("/write", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func call(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_PublicPathSkipsToken(t *testing.T) {
	assert.Equal(t, http.StatusOK, call(newEngine(), http.MethodGet, "/healthz", "").Code)
}

func TestAuth_ValidToken(t *testing.T) {
	tok, err := IssueToken(secret, "admin", authz.RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)

	w := call(newEngine(), http.MethodGet, "/api/me", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"admin","role":50}`, w.Body.String())
}

func TestAuth_Rejects(t *testing.T) {
	r := newEngine()

	expired, err := IssueToken(secret, "admin", authz.RoleAdmin, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	otherKey, err := IssueToken([]byte("other"), "admin", authz.RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RoleID: authz.RoleAdmin}).SignedString(secret)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"missing":   "",
		"expired":   expired,
		"other key": otherKey,
		"no exp":    noExp,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/me", tok).Code)
		})
	}
}

func TestAuth_EmptySecretCannotIssue(t *testing.T) {
	_, err := IssueToken(nil, "admin", authz.RoleAdmin, time.Hour, time.Now())
	assert.Error(t, err)
}

func TestAuthz_Roles(t *testing.T) {
	r := newEngine()
	audit, err := IssueToken(secret, "auditor", authz.RoleAudit, time.Hour, time.Now())
	require.NoError(t, err)
	stranger, err := IssueToken(secret, "x", 10, time.Hour, time.Now())
	require.NoError(t, err)
	admin, err := IssueToken(secret, "admin", authz.RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/me", audit).Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/write", audit).Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/me", stranger).Code)
	assert.Equal(t, http.StatusNoContent, call(r, http.MethodPost, "/api/write", admin).Code)
}
