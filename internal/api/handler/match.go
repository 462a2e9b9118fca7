package handler

import (
	"dailymatch/backend/internal/api/middleware"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMatch handles POST /api/v1/match.
func (h *Handler) RequestMatch(c *gin.Context) {
	status, err := h.Matching.RequestMatch(c.Request.Context(), c.GetString(middleware.MemberIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// PollMatchStatus handles GET /api/v1/match.
func (h *Handler) PollMatchStatus(c *gin.Context) {
	status, err := h.Matching.PollMatchStatus(c.Request.Context(), c.GetString(middleware.MemberIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// CancelMatch handles DELETE /api/v1/match.
func (h *Handler) CancelMatch(c *gin.Context) {
	if err := h.Matching.CancelMatch(c.Request.Context(), c.GetString(middleware.MemberIDKey)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// FetchSession handles GET /api/v1/sessions/:id.
func (h *Handler) FetchSession(c *gin.Context) {
	session, err := h.Matching.FetchSession(c.Request.Context(), c.Param("id"), c.GetString(middleware.MemberIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// EmbedSession handles GET /api/v1/sessions/:id/embed.
func (h *Handler) EmbedSession(c *gin.Context) {
	markup, err := h.Matching.EmbedSession(c.Request.Context(), c.Param("id"), c.GetString(middleware.MemberIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markup": markup})
}

type rankRequest struct {
	Rank string `json:"rank" binding:"required"`
}

// RecordRank handles POST /internal/v1/members/:id/rank, the Rank Verifier callback.
func (h *Handler) RecordRank(c *gin.Context) {
	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, http.StatusBadRequest, "bad_request")
		return
	}
	if err := h.Matching.RecordRank(c.Request.Context(), c.Param("id"), req.Rank); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// WaitTimes handles GET /internal/v1/stats/wait-times?since=RFC3339.
// Without since it covers the last 24 hours.
func (h *Handler) WaitTimes(c *gin.Context) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.abort(c, http.StatusBadRequest, "bad_request")
			return
		}
		since = parsed.UTC()
	}

	stats, err := h.Matching.WaitTimes(c.Request.Context(), since)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "ranks": stats})
}

// Healthz reports whether the database and broker answer.
func (h *Handler) Healthz(c *gin.Context) {
	for _, p := range h.Health {
		if err := p.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
