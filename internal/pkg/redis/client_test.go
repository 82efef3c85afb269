package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/Eiga/config"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("connects to a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.RedisConfig{Host: mr.Host(), Port: atoiPort(t, mr.Port()), PoolSize: 2}

		client, err := NewClient(cfg)
		require.NoError(t, err)
		defer client.Close()
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("fails on unreachable address", func(t *testing.T) {
		client, err := NewClient(&config.RedisConfig{Host: "127.0.0.1", Port: 1})
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}

func TestClient_JoinAndPublish(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	sub, err := client.Join(ctx, time.Second, "discussion:42")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.PublishJSON(ctx, "discussion:42", map[string]string{"kind": "comment-created"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "discussion:42", msg.Channel)
	assert.JSONEq(t, `{"kind":"comment-created"}`, msg.Payload)
}

func TestClient_JoinFailsWhenServerDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	sub, err := client.Join(context.Background(), 200*time.Millisecond, "discussion:1")
	assert.Error(t, err)
	assert.Nil(t, sub)
}

func TestClient_PSubscribe(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	sub, err := client.PSubscribe(ctx, "discussion:*")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.Publish(ctx, "discussion:7", "hello"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "discussion:7", msg.Channel)
	assert.Equal(t, "discussion:*", msg.Pattern)
	assert.Equal(t, "hello", msg.Payload)
}

func TestClient_PublishJSONRejectsUnencodable(t *testing.T) {
	client, _ := setupTestRedis(t)
	err := client.PublishJSON(context.Background(), "discussion:1", make(chan int))
	assert.Error(t, err)
}
