package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/model"
	"github.com/Gopher0727/Eiga/internal/testinfra"
	"github.com/Gopher0727/Eiga/middleware/jwt"
	logger "github.com/Gopher0727/Eiga/middleware/log"
	"github.com/Gopher0727/Eiga/utils/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newManager(t *testing.T, cfg *config.RateLimitConfig) (*MiddlewareManager, *jwt.TokenManager) {
	t.Helper()
	rdb, _ := testinfra.NewRedis(t)
	tokens := jwt.NewTokenManager("middleware-secret", 1, 1)
	limiter := ratelimit.NewWindowLimiter(rdb, zap.NewNop(), false)
	return NewMiddlewareManager(tokens, limiter, logger.NewNop(), cfg), tokens
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":  c.GetString("user_id"),
		"role":     c.GetString("role"),
		"trace_id": logger.GetTraceID(c.Request.Context()),
	})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	m, tokens := newManager(t, &config.RateLimitConfig{})
	r := gin.New()
	r.GET("/me", m.JWTAuth(), whoami)

	token, err := tokens.GenerateToken("user-1", "alice", model.RoleMember)
	require.NoError(t, err)

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := serve(r, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
	})

	t.Run("query fallback for websocket", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejections", func(t *testing.T) {
		for name, header := range map[string]string{
			"missing":   "",
			"no scheme": token,
			"garbage":   "Bearer not-a-jwt",
		} {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := serve(r, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code, name)
			assert.Contains(t, w.Body.String(), `"error":"unauthorized"`, name)
		}
	})
}

func TestOptionalAuthAndRequireAdmin(t *testing.T) {
	m, tokens := newManager(t, &config.RateLimitConfig{})
	r := gin.New()
	r.GET("/public", m.OptionalAuth(), whoami)
	r.GET("/admin", m.JWTAuth(), m.RequireAdmin(), whoami)

	member, _ := tokens.GenerateToken("user-1", "alice", model.RoleMember)
	admin, _ := tokens.GenerateToken("user-9", "root", model.RoleAdmin)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/public", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/public?token=bogus", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/public?token="+member, nil))
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/admin?token="+member, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/admin?token="+admin, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterByEndpoint(t *testing.T) {
	m, _ := newManager(t, &config.RateLimitConfig{RedeemPerMinute: 2})
	r := gin.New()
	r.POST("/redeem", m.RateLimiterByEndpoint(ratelimit.EndpointRedeem), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/redeem", nil)
		req.RemoteAddr = ip + ":5555"
		return serve(r, req)
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	w := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
}

func TestTraceIDAndRecovery(t *testing.T) {
	m, _ := newManager(t, &config.RateLimitConfig{})
	r := gin.New()
	r.Use(m.TraceID(), m.Recovery(), m.Logger())
	r.GET("/trace", whoami)
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/trace", nil)
	req.Header.Set(logger.TraceHeader, "trace-abc")
	w := serve(r, req)
	assert.Equal(t, "trace-abc", w.Header().Get(logger.TraceHeader))
	assert.Contains(t, w.Body.String(), `"trace_id":"trace-abc"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/trace", nil))
	assert.NotEmpty(t, w.Header().Get(logger.TraceHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"server"`)
}

func TestCORSPreflight(t *testing.T) {
	m, _ := newManager(t, &config.RateLimitConfig{})
	r := gin.New()
	r.Use(m.CORS())
	r.GET("/x", whoami)

	w := serve(r, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
