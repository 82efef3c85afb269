package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/config"
)

// Endpoint 限流分组，每组有独立的额度
type Endpoint string

const (
	EndpointRedeem   Endpoint = "redeem"
	EndpointComment  Endpoint = "comment"
	EndpointReaction Endpoint = "reaction"
	EndpointAPI      Endpoint = "api"
)

// Limiter 限流器
type Limiter interface {
	// Allow 消耗一个额度，超限返回 false
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Remaining 返回当前窗口剩余额度
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// WindowLimiter 基于 Redis INCR + EXPIRE 的固定窗口计数，多实例共享
type WindowLimiter struct {
	rdb      *redis.Client
	log      *zap.Logger
	failOpen bool // Redis 不可用时放行
	now      func() time.Time
}

func NewWindowLimiter(rdb *redis.Client, log *zap.Logger, failOpen bool) *WindowLimiter {
	return &WindowLimiter{
		rdb:      rdb,
		log:      log,
		failOpen: failOpen,
		now:      time.Now,
	}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := l.bucketKey(key, window)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.failOpen {
			l.log.Warn("rate limit store unavailable, allowing request", zap.String("key", key), zap.Error(err))
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if incr.Val() > int64(limit) {
		l.log.Info("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", incr.Val()),
			zap.Int("limit", limit),
		)
		return false, nil
	}
	return true, nil
}

func (l *WindowLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	count, err := l.rdb.Get(ctx, l.bucketKey(key, window)).Int()
	if err == redis.Nil {
		return limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit: %w", err)
	}
	return max(limit-count, 0), nil
}

func (l *WindowLimiter) bucketKey(key string, window time.Duration) string {
	slot := l.now().UnixNano() / int64(window)
	return fmt.Sprintf("eiga:ratelimit:%s:%d", key, slot)
}

// Rule 单个分组的额度
type Rule struct {
	Limit  int
	Window time.Duration
}

const defaultPerMinute = 100

// RuleFor 返回分组对应的额度，未知分组或未配置时使用默认值
func RuleFor(endpoint Endpoint, cfg *config.RateLimitConfig) Rule {
	var limit int
	switch endpoint {
	case EndpointRedeem:
		limit = cfg.RedeemPerMinute
	case EndpointComment:
		limit = cfg.CommentPerMinute
	case EndpointReaction:
		limit = cfg.ReactionPerMinute
	case EndpointAPI:
		limit = cfg.APIPerMinute
	}
	if limit <= 0 {
		limit = defaultPerMinute
	}
	return Rule{Limit: limit, Window: time.Minute}
}
