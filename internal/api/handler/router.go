package handler

import (
	"dailymatch/backend/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RouterDeps are the collaborators the router needs besides the handler.
type RouterDeps struct {
	Verifier       middleware.TokenVerifier
	Members        middleware.MemberRegistrar
	Limiter        *middleware.LimiterStore
	VerifierSecret string
}

// SetupRouter builds the gin engine with all routes.
func SetupRouter(h *Handler, deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api/v1")
	api.Use(middleware.Identity(deps.Verifier, deps.Members, h.IdentityError))
	{
		match := api.Group("/match")
		if deps.Limiter != nil {
			match.Use(middleware.RateLimit(deps.Limiter, h.RateLimited))
		}
		match.POST("", h.RequestMatch)
		match.GET("", h.PollMatchStatus)
		match.DELETE("", h.CancelMatch)
		match.GET("/ws", h.ServeWebSocket)

		api.GET("/sessions/:id", h.FetchSession)
		api.GET("/sessions/:id/embed", h.EmbedSession)
	}

	internal := r.Group("/internal/v1")
	internal.Use(middleware.SharedSecret(deps.VerifierSecret))
	{
		internal.POST("/members/:id/rank", h.RecordRank)
		internal.GET("/stats/wait-times", h.WaitTimes)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Str("member_id", c.GetString(middleware.MemberIDKey)).
			Msg("request")
	}
}
