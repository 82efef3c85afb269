package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Eiga/internal/model"
	"github.com/Gopher0727/Eiga/internal/service"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

type ReactionHandler struct {
	reactionService service.IReactionService
	log             *logger.Logger
}

func NewReactionHandler(reactionService service.IReactionService, log *logger.Logger) *ReactionHandler {
	return &ReactionHandler{
		reactionService: reactionService,
		log:             log,
	}
}

type setReactionRequest struct {
	Type model.ReactionType `json:"type" form:"type" binding:"required"`
}

// Set handles PUT /comments/:id/reaction
func (h *ReactionHandler) Set(c *gin.Context) {
	id, err := commentIDParam(c)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}

	var req setReactionRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, h.log, bindErr(err), "/")
		return
	}

	res, err := h.reactionService.SetReaction(c.Request.Context(), actorFrom(c).ID, id, req.Type)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	respondOK(c, "/", gin.H{"created": res.Created, "changed": res.Changed})
}

// Remove handles DELETE /comments/:id/reaction
func (h *ReactionHandler) Remove(c *gin.Context) {
	id, err := commentIDParam(c)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}

	res, err := h.reactionService.RemoveReaction(c.Request.Context(), actorFrom(c).ID, id)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	respondOK(c, "/", gin.H{"removed": res.Removed})
}

// Summary handles GET /comments/:id/reactions
func (h *ReactionHandler) Summary(c *gin.Context) {
	id, err := commentIDParam(c)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}

	summary, err := h.reactionService.Summary(c.Request.Context(), id, actorFrom(c).ID)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	respondOK(c, "/", gin.H{"summary": summary})
}
