package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Eiga/internal/handler"
	"github.com/Gopher0727/Eiga/internal/realtime"
	"github.com/Gopher0727/Eiga/utils/ratelimit"
)

type Handlers struct {
	Invite   *handler.InviteHandler
	Comment  *handler.CommentHandler
	Reaction *handler.ReactionHandler
	Hub      *realtime.Hub
}

// RegisterRoutes registers all API routes
func RegisterRoutes(r *gin.Engine, m *MiddlewareManager, h Handlers) {
	r.Use(m.TraceID(), m.Recovery(), m.Logger(), m.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 实时订阅，令牌通过 ?token= 传递
	r.GET("/ws/subjects/:subject_id", m.JWTAuth(), h.Hub.ServeWS)

	api := r.Group("/api/v1")

	// 公开接口
	api.POST("/invites/redeem", m.RateLimiterByEndpoint(ratelimit.EndpointRedeem), h.Invite.Redeem)

	public := api.Group("/", m.OptionalAuth(), m.RateLimiterByEndpoint(ratelimit.EndpointAPI))
	{
		public.GET("/subjects/:subject_id/comments", h.Comment.ListThreads)
		public.GET("/comments/:id", h.Comment.Get)
		public.GET("/comments/:id/reactions", h.Reaction.Summary)
	}

	protected := api.Group("/", m.JWTAuth())
	{
		comments := protected.Group("/", m.RateLimiterByEndpoint(ratelimit.EndpointComment))
		{
			comments.POST("/subjects/:subject_id/comments", h.Comment.Create)
			comments.PATCH("/comments/:id", h.Comment.Edit)
			comments.POST("/comments/:id/edit", h.Comment.Edit) // 表单提交
			comments.DELETE("/comments/:id", h.Comment.Delete)
			comments.POST("/comments/:id/delete", h.Comment.Delete)
			comments.POST("/comments/:id/highlight", h.Comment.ToggleHighlight)
		}

		reactions := protected.Group("/comments/:id/reaction", m.RateLimiterByEndpoint(ratelimit.EndpointReaction))
		{
			reactions.PUT("", h.Reaction.Set)
			reactions.POST("", h.Reaction.Set)
			reactions.DELETE("", h.Reaction.Remove)
			reactions.POST("/delete", h.Reaction.Remove)
		}

		admin := protected.Group("/admin", m.RequireAdmin())
		{
			admin.POST("/invites", h.Invite.Issue)
			admin.DELETE("/invites/expired", h.Invite.PurgeExpired)
		}
	}
}
