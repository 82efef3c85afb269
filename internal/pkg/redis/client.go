package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Gopher0727/Eiga/config"
)

// PubSubClient is the slice of Redis the realtime layer depends on.
type PubSubClient interface {
	Close() error
	GetClient() *redis.Client
	Ping(ctx context.Context) error
	Join(ctx context.Context, timeout time.Duration, channels ...string) (*redis.PubSub, error)
	PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error)
	Publish(ctx context.Context, channel string, message any) error
	PublishJSON(ctx context.Context, channel string, v any) error
}

type Client struct {
	client *redis.Client
}

func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Client{client: rdb}, nil
}

// NewFromClient wraps an already configured go-redis client.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{client: rdb}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Join subscribes to channels and blocks until the server confirms the
// subscription or timeout elapses. The caller owns the returned PubSub.
func (c *Client) Join(ctx context.Context, timeout time.Duration, channels ...string) (*redis.PubSub, error) {
	joinCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pubsub := c.client.Subscribe(joinCtx, channels...)
	// 等待订阅确认
	if _, err := pubsub.Receive(joinCtx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to join channels %v: %w", channels, err)
	}
	return pubsub, nil
}

func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error) {
	pubsub := c.client.PSubscribe(ctx, patterns...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to psubscribe to patterns: %w", err)
	}
	return pubsub, nil
}

func (c *Client) Publish(ctx context.Context, channel string, message any) error {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

func (c *Client) PublishJSON(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", channel, err)
	}
	return c.Publish(ctx, channel, data)
}
