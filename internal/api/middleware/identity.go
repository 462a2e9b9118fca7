// Package middleware holds the gin middleware in front of the matching API:
// identity, per-member rate limiting and the Rank Verifier's shared secret.
package middleware

import (
	"context"
	"crypto/subtle"
	"dailymatch/backend/internal/auth"
	"dailymatch/backend/internal/models"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Context keys set by Identity.
const (
	MemberIDKey = "member_id"
	NicknameKey = "nickname"
)

// TokenVerifier validates identity tokens.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// MemberRegistrar records members the first time they are seen.
type MemberRegistrar interface {
	EnsureMember(ctx context.Context, id, nickname string) (*models.Member, error)
}

// Identity authenticates the request with a Bearer token, or with the token
// query parameter for WebSocket upgrades where browsers cannot set headers.
// onError writes the response for a rejected request.
func Identity(verifier TokenVerifier, members MemberRegistrar, onError func(c *gin.Context, status int, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			onError(c, http.StatusUnauthorized, auth.ErrInvalidToken)
			c.Abort()
			return
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			onError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		if members != nil {
			if _, err := members.EnsureMember(c.Request.Context(), claims.MemberID(), claims.Nickname); err != nil {
				log.Error().Err(err).Str("member_id", claims.MemberID()).Msg("failed to register member")
				onError(c, http.StatusServiceUnavailable, err)
				c.Abort()
				return
			}
		}

		c.Set(MemberIDKey, claims.MemberID())
		c.Set(NicknameKey, claims.Nickname)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// SharedSecret guards internal routes called by the Rank Verifier. An empty
// secret disables those routes entirely.
func SharedSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Verifier-Secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
