package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/Eiga/internal/realtime"
	"github.com/Gopher0727/Eiga/internal/service"
)

func TestReactionHandler_Flow(t *testing.T) {
	s := newTestServer(t)
	id := s.createComment(t, "film-2", aliceHeader, "a hot take", "")

	w := s.doJSON(http.MethodPut, "/comments/"+id+"/reaction", bobHeader, map[string]string{"type": "insightful"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, true, resp["created"])
	assert.Equal(t, true, resp["changed"])

	// 相同类型幂等
	w = s.doJSON(http.MethodPut, "/comments/"+id+"/reaction", bobHeader, map[string]string{"type": "insightful"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	assert.Equal(t, false, resp["created"])
	assert.Equal(t, false, resp["changed"])

	w = s.doJSON(http.MethodPut, "/comments/"+id+"/reaction", bobHeader, map[string]string{"type": "controversial"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["changed"])

	w = s.doJSON(http.MethodPut, "/comments/"+id+"/reaction", aliceHeader, map[string]string{"type": "brilliant"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.doJSON(http.MethodGet, "/comments/"+id+"/reactions", bobHeader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["summary"].(map[string]any)
	counts := summary["counts"].(map[string]any)
	assert.EqualValues(t, 1, counts["controversial"])
	assert.EqualValues(t, 1, counts["brilliant"])
	assert.Equal(t, "controversial", summary["mine"])

	w = s.doJSON(http.MethodDelete, "/comments/"+id+"/reaction", bobHeader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["removed"])

	w = s.doJSON(http.MethodDelete, "/comments/"+id+"/reaction", bobHeader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["removed"])

	var kinds []realtime.Kind
	for _, ev := range s.recorder.Events() {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []realtime.Kind{
		realtime.KindCommentCreated,
		realtime.KindReactionSet,
		realtime.KindReactionSet,
		realtime.KindReactionSet,
		realtime.KindReactionRemoved,
	}, kinds)
}

func TestReactionHandler_Failures(t *testing.T) {
	s := newTestServer(t)
	id := s.createComment(t, "film-2", aliceHeader, "another take", "")

	tests := []struct {
		name   string
		path   string
		user   string
		body   map[string]string
		status int
		reason service.Reason
	}{
		{"anonymous", "/comments/" + id + "/reaction", "", map[string]string{"type": "insightful"}, http.StatusUnauthorized, service.ReasonUnauthorized},
		{"unknown type", "/comments/" + id + "/reaction", bobHeader, map[string]string{"type": "meh"}, http.StatusBadRequest, service.ReasonInvalid},
		{"missing type", "/comments/" + id + "/reaction", bobHeader, map[string]string{}, http.StatusBadRequest, service.ReasonInvalid},
		{"missing comment", "/comments/424242/reaction", bobHeader, map[string]string{"type": "insightful"}, http.StatusNotFound, service.ReasonNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.doJSON(http.MethodPut, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, string(tt.reason), decode(t, w)["error"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[service.Reason]int{
		service.ReasonInvalid:        http.StatusBadRequest,
		service.ReasonMaxDepth:       http.StatusBadRequest,
		service.ReasonUnauthorized:   http.StatusUnauthorized,
		service.ReasonForbidden:      http.StatusForbidden,
		service.ReasonNotFound:       http.StatusNotFound,
		service.ReasonParentNotFound: http.StatusNotFound,
		service.ReasonInvalidCode:    http.StatusNotFound,
		service.ReasonUsed:           http.StatusConflict,
		service.ReasonEmailInUse:     http.StatusConflict,
		service.ReasonUsernameInUse:  http.StatusConflict,
		service.ReasonExpired:        http.StatusGone,
		service.ReasonCreateFailed:   http.StatusInternalServerError,
		service.ReasonServer:         http.StatusInternalServerError,
	}
	for reason, status := range tests {
		assert.Equal(t, status, statusFor(reason), reason)
	}
}

func TestWantsJSON(t *testing.T) {
	newCtx := func(contentType, accept string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
		if contentType != "" {
			c.Request.Header.Set("Content-Type", contentType)
		}
		if accept != "" {
			c.Request.Header.Set("Accept", accept)
		}
		return c
	}

	assert.True(t, wantsJSON(newCtx("application/json", "")))
	assert.True(t, wantsJSON(newCtx("", "")))
	assert.False(t, wantsJSON(newCtx("application/x-www-form-urlencoded", "")))
	assert.False(t, wantsJSON(newCtx("multipart/form-data; boundary=x", "text/html")))
	assert.True(t, wantsJSON(newCtx("application/x-www-form-urlencoded", "application/json")))
}

func TestIsLocalPath(t *testing.T) {
	tests := map[string]bool{
		"/films/1":               true,
		"/join?from=mail":        true,
		"/films/1#comment-9":     true,
		"":                       false,
		"films/1":                false,
		"//evil.example":         false,
		"/\\evil.example":        false,
		"/\t/evil.example":       false,
		"/\n/evil.example":       false,
		"/films/1\r\nSet-Cookie": false,
		"/\x7f/evil.example":     false,
		"https://evil.example":   false,
		"javascript:alert(1)":    false,
	}
	for target, want := range tests {
		assert.Equal(t, want, isLocalPath(target), "%q", target)
	}
}
