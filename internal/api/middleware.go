package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/model"
	"github.com/Gopher0727/Eiga/middleware/jwt"
	logger "github.com/Gopher0727/Eiga/middleware/log"
	"github.com/Gopher0727/Eiga/utils/ratelimit"
)

type MiddlewareManager struct {
	tokenManager *jwt.TokenManager
	rateLimiter  ratelimit.Limiter
	log          *logger.Logger
	rateLimitCfg *config.RateLimitConfig
}

func NewMiddlewareManager(
	tokenManager *jwt.TokenManager,
	rateLimiter ratelimit.Limiter,
	log *logger.Logger,
	rateLimitCfg *config.RateLimitConfig,
) *MiddlewareManager {
	return &MiddlewareManager{
		tokenManager: tokenManager,
		rateLimiter:  rateLimiter,
		log:          log,
		rateLimitCfg: rateLimitCfg,
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"ok":      false,
		"error":   "unauthorized",
		"message": message,
	})
}

// bearerToken 读取 Authorization 头；浏览器 WebSocket 无法设置请求头，退回 ?token=
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// JWTAuth 校验会话令牌，并把调用者身份写入 gin.Context
func (m *MiddlewareManager) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "authorization required")
			return
		}

		claims, err := m.tokenManager.ParseToken(token)
		if err != nil {
			m.log.WarnContext(c.Request.Context(), "token validation failed",
				zap.Error(err),
				zap.String("ip", c.ClientIP()),
			)

			switch {
			case errors.Is(err, jwt.ErrExpiredToken):
				unauthorized(c, "token has expired")
			case errors.Is(err, jwt.ErrTokenNotYetValid):
				unauthorized(c, "token not yet valid")
			default:
				unauthorized(c, "invalid token")
			}
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.UserName)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// OptionalAuth 有合法令牌时写入身份，否则以匿名身份继续
func (m *MiddlewareManager) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := m.tokenManager.ParseToken(token); err == nil {
				c.Set("user_id", claims.UserID)
				c.Set("username", claims.UserName)
				c.Set("role", claims.Role)
			}
		}
		c.Next()
	}
}

// RequireAdmin 仅允许管理员，需在 JWTAuth 之后使用
func (m *MiddlewareManager) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"ok":      false,
				"error":   "forbidden",
				"message": "admin only",
			})
			return
		}
		c.Next()
	}
}

// RateLimiterByEndpoint 按分组限流，已登录按用户计数，否则按 IP
func (m *MiddlewareManager) RateLimiterByEndpoint(endpoint ratelimit.Endpoint) gin.HandlerFunc {
	rule := ratelimit.RuleFor(endpoint, m.rateLimitCfg)

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var key string
		if userID := c.GetString("user_id"); userID != "" {
			key = fmt.Sprintf("user:%s:%s", userID, endpoint)
		} else {
			key = fmt.Sprintf("ip:%s:%s", c.ClientIP(), endpoint)
		}

		allowed, err := m.rateLimiter.Allow(ctx, key, rule.Limit, rule.Window)
		if err != nil {
			m.log.ErrorContext(ctx, "rate limit check failed",
				zap.Error(err),
				zap.String("key", key),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"ok":      false,
				"error":   "server",
				"message": "rate limit check failed",
			})
			return
		}

		if !allowed {
			remaining, _ := m.rateLimiter.Remaining(ctx, key, rule.Limit, rule.Window)
			c.Header("Retry-After", fmt.Sprint(int(rule.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":          false,
				"error":       "rate_limited",
				"retry_after": int(rule.Window.Seconds()),
				"remaining":   remaining,
			})
			return
		}

		c.Next()
	}
}

// TraceID 为每个请求生成或沿用 X-Request-ID，并写入请求 context 供日志使用
func (m *MiddlewareManager) TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logger.WithTraceID(c.Request.Context(), c.GetHeader(logger.TraceHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(logger.TraceHeader, logger.GetTraceID(ctx))
		c.Next()
	}
}

func (m *MiddlewareManager) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if userID := c.GetString("user_id"); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			m.log.ErrorContext(ctx, "server error", fields...)
		case status >= 400:
			m.log.WarnContext(ctx, "client error", fields...)
		default:
			m.log.InfoContext(ctx, "request completed", fields...)
		}
	}
}

func (m *MiddlewareManager) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (m *MiddlewareManager) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				m.log.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"ok":      false,
					"error":   "server",
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
