package handler

import (
	"dailymatch/backend/internal/api/middleware"
	"dailymatch/backend/internal/auth"
	"dailymatch/backend/internal/models"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps an error to its HTTP status and message key.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotVerified):
		return http.StatusForbidden, "not_verified"
	case errors.Is(err, models.ErrAlreadyQueued):
		return http.StatusConflict, "already_queued"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrSessionExpired):
		return http.StatusGone, "session_expired"
	case errors.Is(err, models.ErrUnknownRank):
		return http.StatusBadRequest, "unknown_rank"
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// fail writes the localized error response for err.
func (h *Handler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	h.abort(c, status, code)

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Str("member_id", c.GetString(middleware.MemberIDKey)).Msg("request failed")
	}
}

// abort writes an error response with an explicit status and message key.
func (h *Handler) abort(c *gin.Context, status int, code string) {
	lang := h.Localizer.Match(c.GetHeader("Accept-Language"))
	c.AbortWithStatusJSON(status, errorResponse{
		Error:   code,
		Message: h.Localizer.GetString(lang, "error."+code),
	})
}

// IdentityError is the error writer for the identity middleware.
func (h *Handler) IdentityError(c *gin.Context, status int, err error) {
	if status == http.StatusUnauthorized {
		h.abort(c, status, "unauthorized")
		return
	}
	h.fail(c, err)
}

// RateLimited is the response writer for the rate limiter.
func (h *Handler) RateLimited(c *gin.Context) {
	h.abort(c, http.StatusTooManyRequests, "rate_limited")
}
