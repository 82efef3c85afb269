package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/pkg/redis"
	"github.com/Gopher0727/Eiga/internal/testinfra"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "discussion:film-1", Topic("film-1"))

	subject, ok := SubjectFromTopic(Topic("film-1"))
	assert.True(t, ok)
	assert.Equal(t, "film-1", subject)

	_, ok = SubjectFromTopic("chat:broadcast")
	assert.False(t, ok)
	_, ok = SubjectFromTopic("discussion:")
	assert.False(t, ok)
}

func TestEvent_CarriesIdentifiersOnly(t *testing.T) {
	data, err := json.Marshal(ReactionSet("film-1", 42, "user-1", "brilliant"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"reaction-set","subject_id":"film-1","comment_id":"42","user_id":"user-1","type":"brilliant"}`, string(data))

	data, err = json.Marshal(CommentDeleted("film-1", 7))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"comment-updated","subject_id":"film-1","comment_id":"7","tags":["deleted"]}`, string(data))

	assert.Equal(t, KindRatingCreated, RatingChanged("film-1", "u", true).Kind)
	assert.Equal(t, KindRatingUpdated, RatingChanged("film-1", "u", false).Kind)
}

func TestRedisPublisher_Publish(t *testing.T) {
	rdb, _ := testinfra.NewRedis(t)
	client := redis.NewFromClient(rdb)
	pub := NewRedisPublisher(client, time.Second, logger.NewNop())
	ctx := context.Background()

	sub, err := client.Join(ctx, time.Second, Topic("film-1"))
	require.NoError(t, err)
	defer sub.Close()

	ev := CommentCreated("film-1", 99, false)
	assert.True(t, pub.Publish(ctx, ev))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, Topic("film-1"), msg.Channel)
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, ev, got)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	assert.False(t, pub.Publish(ctx, Event{Kind: KindCommentCreated}), "event without subject")
}

func TestRedisPublisher_UnreachableReturnsFalse(t *testing.T) {
	rdb, mr := testinfra.NewRedis(t)
	pub := NewRedisPublisher(redis.NewFromClient(rdb), 200*time.Millisecond, logger.NewNop())
	mr.Close()

	start := time.Now()
	assert.False(t, pub.Publish(context.Background(), CommentCreated("film-1", 1, false)))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	assert.True(t, r.Publish(context.Background(), HighlightToggled("film-1", 1)))
	r.FailNext(true)
	assert.False(t, r.Publish(context.Background(), HighlightToggled("film-1", 2)))
	assert.Len(t, r.Events(), 1)
}

func newHubServer(t *testing.T) (*Hub, *RedisPublisher, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rdb, _ := testinfra.NewRedis(t)
	client := redis.NewFromClient(rdb)
	hub := NewHub(client, config.WebsocketConfig{PongWaitSeconds: 5, SendBuffer: 8}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, hub.Start(ctx))

	r := gin.New()
	r.GET("/ws/subjects/:subject_id", func(c *gin.Context) {
		if user := c.Query("user"); user != "" {
			c.Set("user_id", user)
		}
		hub.ServeWS(c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, NewRedisPublisher(client, time.Second, logger.NewNop()), srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_FansOutToSubjectRoom(t *testing.T) {
	hub, pub, srv := newHubServer(t)
	ctx := context.Background()

	viewer := dial(t, srv, "/ws/subjects/film-1?user=u1")
	require.Eventually(t, func() bool { return hub.Subscribers("film-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	// film-2 has no watcher here, so the first frame must be the film-1 event
	require.True(t, pub.Publish(ctx, CommentCreated("film-2", 1, false)))
	require.True(t, pub.Publish(ctx, ReactionRemoved("film-1", 2, "u9")))

	require.NoError(t, viewer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := viewer.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ReactionRemoved("film-1", 2, "u9"), got)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, _, srv := newHubServer(t)

	viewer := dial(t, srv, "/ws/subjects/film-3?user=u1")
	require.Eventually(t, func() bool { return hub.Subscribers("film-3") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, viewer.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers("film-3") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RequiresIdentity(t *testing.T) {
	_, _, srv := newHubServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/subjects/film-1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
