package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	userIDKey  = "userID"
	authCookie = "jwt"
)

// ProtectRoute resolves the participant identity from the request token and
// stores it in the gin context. The token is read from the Authorization
// header, then the "jwt" cookie, then the "token" query parameter (browsers
// cannot set headers on a WebSocket handshake).
func (h *Handler) ProtectRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := h.Tokens.Verify(tokenFromRequest(c))
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("request rejected")
			respondError(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie(authCookie); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
