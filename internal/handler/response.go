package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/internal/service"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

// statusFor maps a failure reason onto the HTTP status front-ends expect.
func statusFor(reason service.Reason) int {
	switch reason {
	case service.ReasonInvalid, service.ReasonMaxDepth:
		return http.StatusBadRequest
	case service.ReasonUnauthorized:
		return http.StatusUnauthorized
	case service.ReasonForbidden:
		return http.StatusForbidden
	case service.ReasonNotFound, service.ReasonParentNotFound, service.ReasonInvalidCode:
		return http.StatusNotFound
	case service.ReasonUsed, service.ReasonEmailInUse, service.ReasonUsernameInUse:
		return http.StatusConflict
	case service.ReasonExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON is false only for classic form submissions, which get a redirect.
func wantsJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), binding.MIMEJSON) {
		return true
	}
	switch c.ContentType() {
	case binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
		return false
	default:
		return true
	}
}

// returnTo picks the form's return_to field when it is a local path.
func returnTo(c *gin.Context, fallback string) string {
	if target := c.PostForm("return_to"); isLocalPath(target) {
		return target
	}
	return fallback
}

// isLocalPath reports whether target stays on this site. Browsers drop tabs
// and newlines and treat backslashes as slashes, so "/\t/host" would become
// "//host"; any control character is rejected outright.
func isLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return false
	}
	for _, r := range target {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func withQuery(location, key, value string) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func respondOK(c *gin.Context, redirect string, body gin.H) {
	if !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, returnTo(c, redirect))
		return
	}
	if body == nil {
		body = gin.H{}
	}
	body["ok"] = true
	c.JSON(http.StatusOK, body)
}

func respondError(c *gin.Context, log *logger.Logger, err error, redirect string) {
	reason := service.ReasonOf(err)
	status := statusFor(reason)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.ErrorContext(c.Request.Context(), "request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		message = "internal server error"
	}

	if !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, withQuery(returnTo(c, redirect), "error", string(reason)))
		return
	}
	c.JSON(status, gin.H{
		"ok":      false,
		"error":   reason,
		"message": message,
	})
}

// actorFrom reads the identity the auth middleware stored on the context.
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		ID:       c.GetString("user_id"),
		Username: c.GetString("username"),
		Role:     c.GetString("role"),
	}
}

func commentIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ErrInvalid
	}
	return id, nil
}

// bindErr tags a binding failure as invalid input unless it already carries
// a reason, e.g. from Timestamp parsing.
func bindErr(err error) error {
	if service.ReasonOf(err) != service.ReasonServer {
		return err
	}
	return fmt.Errorf("%w: %w", service.ErrInvalid, err)
}
