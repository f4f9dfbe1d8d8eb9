package proxy

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionCookies are the cookie names that may carry the session token, in
// precedence order.
var SessionCookies = []string{"session", "token", "auth", "auth_token"}

// sessionKey is the gin context key holding the resolved token.
const sessionKey = "paydash.session"

// SessionToken returns the first non-empty session cookie of r.
func SessionToken(r *http.Request) (string, bool) {
	for _, name := range SessionCookies {
		if ck, err := r.Cookie(name); err == nil && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}

// RequireSession rejects requests without a session cookie before any
// backend call.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := SessionToken(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Set(sessionKey, token)
		c.Next()
	}
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"client":  c.ClientIP(),
			"path":    path,
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("Request failed")
			return
		}
		entry.Info("Request handled")
	}
}
