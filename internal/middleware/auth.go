package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidtube/internal/domain"
	"vidtube/internal/pkg/jwt"
	"vidtube/internal/pkg/response"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxUser   = "user"
)

const accessCookie = "accessToken"

// AccessVerifier checks an access token.
type AccessVerifier interface {
	Verify(token string, expected jwt.Kind) (*jwt.Claims, error)
}

// UserLookup loads the user a token was issued to.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// JWTAuth admits requests carrying a valid access token, from the
// accessToken cookie or an Authorization: Bearer header. Every failure
// produces the same 401 body; the reason is only logged.
func JWTAuth(tokens AccessVerifier, users UserLookup, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			reject(c, log, "token missing", nil)
			return
		}

		claims, err := tokens.Verify(token, jwt.KindAccess)
		if err != nil {
			reject(c, log, "token rejected", err)
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID())
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				reject(c, log, "user no longer exists", err)
				return
			}
			reject(c, log, "user lookup failed", err)
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUser, user.Public())
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if v, err := c.Cookie(accessCookie); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func reject(c *gin.Context, log zerolog.Logger, reason string, err error) {
	log.Warn().
		Err(err).
		Str("reason", reason).
		Str("path", c.Request.URL.Path).
		Str("client_ip", c.ClientIP()).
		Str("request_id", RequestID(c)).
		Msg("unauthorized request")
	response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized request")
}

// CurrentUserID returns the id JWTAuth stored, or "".
func CurrentUserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

// CurrentUser returns the sanitized user JWTAuth stored, or nil.
func CurrentUser(c *gin.Context) *domain.PublicUser {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.PublicUser)
	return u
}
