package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/model"
	"github.com/Gopher0727/Eiga/internal/notify"
	"github.com/Gopher0727/Eiga/internal/outbox"
	"github.com/Gopher0727/Eiga/internal/pkg/idgen"
	"github.com/Gopher0727/Eiga/internal/realtime"
	"github.com/Gopher0727/Eiga/internal/repository"
	"github.com/Gopher0727/Eiga/internal/service"
	"github.com/Gopher0727/Eiga/internal/testinfra"
	"github.com/Gopher0727/Eiga/middleware/jwt"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testUserHeader stands in for the session layer: "id:username:role".
const testUserHeader = "X-Test-User"

const (
	aliceHeader = "user-alice:alice:member"
	bobHeader   = "user-bob:bob:member"
	adminHeader = "user-admin:admin:admin"
)

type testServer struct {
	engine   *gin.Engine
	invites  repository.IInviteRepository
	users    repository.IUserRepository
	tokens   *jwt.TokenManager
	recorder *realtime.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testinfra.NewDB(t)
	log := logger.NewNop()
	ids, err := idgen.New(1)
	require.NoError(t, err)

	ob := outbox.NewInline(time.Second, log)
	recorder := realtime.NewRecorder()
	invites := repository.NewInviteRepository(db)
	users := repository.NewUserRepository(db)
	comments := repository.NewCommentRepository(db)
	reactions := repository.NewReactionRepository(db)
	tokens := jwt.NewTokenManager("handler-test-secret", 1, 1)

	inviteSvc := service.NewInviteService(repository.NewTxManager(db), invites, users, ob, notify.NewLogMessenger(log), config.InviteConfig{
		Prefix:        service.DefaultCodePrefix,
		Segments:      service.DefaultCodeSegments,
		SegmentLength: service.DefaultCodeSegmentLength,
		ValidFor:      24 * time.Hour,
		WelcomeURL:    "https://eiga.example/welcome",
	}, log)
	discussionSvc := service.NewDiscussionService(comments, ids, ob, recorder, config.DiscussionConfig{
		MinContentLength: 2,
		MaxContentLength: 500,
		MaxTitleLength:   60,
	}, log)
	reactionSvc := service.NewReactionService(comments, reactions, ids, ob, recorder, log)

	inviteH := NewInviteHandler(inviteSvc, tokens, log)
	commentH := NewCommentHandler(discussionSvc, log)
	reactionH := NewReactionHandler(reactionSvc, log)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if parts := strings.SplitN(c.GetHeader(testUserHeader), ":", 3); len(parts) == 3 {
			c.Set("user_id", parts[0])
			c.Set("username", parts[1])
			c.Set("role", parts[2])
		}
		c.Next()
	})

	r.POST("/invites/redeem", inviteH.Redeem)
	r.POST("/admin/invites", inviteH.Issue)
	r.DELETE("/admin/invites/expired", inviteH.PurgeExpired)

	r.GET("/subjects/:subject_id/comments", commentH.ListThreads)
	r.POST("/subjects/:subject_id/comments", commentH.Create)
	r.GET("/comments/:id", commentH.Get)
	r.PATCH("/comments/:id", commentH.Edit)
	r.POST("/comments/:id/edit", commentH.Edit)
	r.DELETE("/comments/:id", commentH.Delete)
	r.POST("/comments/:id/delete", commentH.Delete)
	r.POST("/comments/:id/highlight", commentH.ToggleHighlight)

	r.PUT("/comments/:id/reaction", reactionH.Set)
	r.DELETE("/comments/:id/reaction", reactionH.Remove)
	r.GET("/comments/:id/reactions", reactionH.Summary)

	return &testServer{
		engine:   r,
		invites:  invites,
		users:    users,
		tokens:   tokens,
		recorder: recorder,
	}
}

func (s *testServer) seedInvite(t *testing.T, code string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, s.invites.Create(context.Background(), &model.InviteCode{
		Code:      code,
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: expiresAt,
	}))
}

func (s *testServer) doJSON(method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) doForm(path, user string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// createComment posts a root comment, or a reply when parent is set, and
// returns the new id.
func (s *testServer) createComment(t *testing.T, subject, user, content, parent string) string {
	t.Helper()
	body := map[string]any{"content": content}
	if parent != "" {
		body["parent_id"] = parent
	}
	w := s.doJSON(http.MethodPost, "/subjects/"+subject+"/comments", user, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	id, ok := resp["id"].(string)
	require.True(t, ok, "id should be a string: %v", resp["id"])
	return id
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
