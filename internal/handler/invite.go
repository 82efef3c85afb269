package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/internal/service"
	"github.com/Gopher0727/Eiga/middleware/jwt"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

const (
	joinPage    = "/join"
	welcomePage = "/welcome"
	invitesPage = "/admin/invites"
)

type InviteHandler struct {
	inviteService service.IInviteService
	tokenManager  *jwt.TokenManager
	log           *logger.Logger
}

func NewInviteHandler(inviteService service.IInviteService, tokenManager *jwt.TokenManager, log *logger.Logger) *InviteHandler {
	return &InviteHandler{
		inviteService: inviteService,
		tokenManager:  tokenManager,
		log:           log,
	}
}

// Redeem handles invite redemption and returns a session token for the new account
func (h *InviteHandler) Redeem(c *gin.Context) {
	var req service.RedeemRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, h.log, bindErr(err), joinPage)
		return
	}

	user, err := h.inviteService.Redeem(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err, joinPage)
		return
	}

	body := gin.H{"user": user}
	// 兑换已提交，签发 token 失败只影响自动登录
	token, err := h.tokenManager.GenerateToken(user.ID, user.UserName, user.Role)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "failed to issue token", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		body["token"] = token
	}
	respondOK(c, welcomePage, body)
}

type issueRequest struct {
	ValidForHours int `json:"valid_for_hours" form:"valid_for_hours" binding:"min=0"`
}

// Issue handles admin invite issuance
func (h *InviteHandler) Issue(c *gin.Context) {
	var req issueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, h.log, bindErr(err), invitesPage)
			return
		}
	}

	invite, err := h.inviteService.Issue(c.Request.Context(), actorFrom(c), time.Duration(req.ValidForHours)*time.Hour)
	if err != nil {
		respondError(c, h.log, err, invitesPage)
		return
	}
	respondOK(c, invitesPage, gin.H{"invite": invite})
}

// PurgeExpired handles admin housekeeping of expired codes
func (h *InviteHandler) PurgeExpired(c *gin.Context) {
	n, err := h.inviteService.PurgeExpired(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, h.log, err, invitesPage)
		return
	}
	respondOK(c, invitesPage, gin.H{"purged": n})
}
