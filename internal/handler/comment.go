package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Eiga/internal/service"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

type CommentHandler struct {
	discussionService service.IDiscussionService
	log               *logger.Logger
}

func NewCommentHandler(discussionService service.IDiscussionService, log *logger.Logger) *CommentHandler {
	return &CommentHandler{
		discussionService: discussionService,
		log:               log,
	}
}

func subjectPage(subjectID string) string {
	return "/films/" + subjectID
}

// ListThreads handles GET /subjects/:subject_id/comments
func (h *CommentHandler) ListThreads(c *gin.Context) {
	subjectID := c.Param("subject_id")
	threads, err := h.discussionService.ListThreads(c.Request.Context(), subjectID)
	if err != nil {
		respondError(c, h.log, err, subjectPage(subjectID))
		return
	}
	respondOK(c, subjectPage(subjectID), gin.H{"threads": threads})
}

// Create handles POST /subjects/:subject_id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	subjectID := c.Param("subject_id")

	var req service.CreateCommentRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, h.log, bindErr(err), subjectPage(subjectID))
		return
	}
	req.SubjectID = subjectID

	id, err := h.discussionService.Create(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		respondError(c, h.log, err, subjectPage(subjectID))
		return
	}

	idStr := strconv.FormatInt(id, 10)
	respondOK(c, subjectPage(subjectID)+"#comment-"+idStr, gin.H{"id": idStr})
}

// Get handles GET /comments/:id
func (h *CommentHandler) Get(c *gin.Context) {
	id, err := commentIDParam(c)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	comment, err := h.discussionService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	respondOK(c, subjectPage(comment.SubjectID), gin.H{"comment": comment})
}

// Edit handles PATCH /comments/:id and its form alias
func (h *CommentHandler) Edit(c *gin.Context) {
	id, err := commentIDParam(c)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}

	var patch service.CommentPatch
	if err := c.ShouldBind(&patch); err != nil {
		respondError(c, h.log, bindErr(err), "/")
		return
	}

	if err := h.discussionService.Edit(c.Request.Context(), id, actorFrom(c), &patch); err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	respondOK(c, "/", nil)
}

// Delete handles DELETE /comments/:id and its form alias
func (h *CommentHandler) Delete(c *gin.Context) {
	id, err := commentIDParam(c)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	if err := h.discussionService.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	respondOK(c, "/", nil)
}

// ToggleHighlight handles POST /comments/:id/highlight
func (h *CommentHandler) ToggleHighlight(c *gin.Context) {
	id, err := commentIDParam(c)
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	highlighted, err := h.discussionService.ToggleHighlight(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, h.log, err, "/")
		return
	}
	respondOK(c, "/", gin.H{"highlighted": highlighted})
}
