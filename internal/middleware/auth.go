package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codehz/hz-game-bot/internal/auth"
)

const payloadContextKey = "capability"

// TokenFromRequest finds a capability token in the Authorization bearer header, the `data`
// query parameter, or the `data` parameter of the Referer URL (the game page the player loaded
// from the play link), in that order.
func TokenFromRequest(r *http.Request) string {
	if parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if data := r.URL.Query().Get("data"); data != "" {
		return data
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil {
			return u.Query().Get("data")
		}
	}
	return ""
}

func PayloadFromContext(c *gin.Context) (auth.Payload, bool) {
	v, ok := c.Get(payloadContextKey)
	if !ok {
		return auth.Payload{}, false
	}
	p, ok := v.(auth.Payload)
	return p, ok && p.UserID != 0
}

// RequireAdmin admits requests whose capability token verifies and names a user isAdmin accepts.
// Everything else gets a bare 403.
func RequireAdmin(codec *auth.Codec, isAdmin func(userID int64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := codec.Verify(TokenFromRequest(c.Request))
		if err != nil || !isAdmin(p.UserID) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Set(payloadContextKey, p)
		c.Next()
	}
}
