package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"hawkkeyed-backend/internal/shared/server/respond"
)

const (
	sessionIDKey     = "sessionId"
	sessionHeader    = "X-Session-Id"
	anonymousSession = "anonymous"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Session reads the caller's session identifier from the X-Session-Id header.
// Requests without one share the anonymous session. There is no
// authentication; the session only scopes history and the active-run guard.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		id := strings.TrimSpace(c.GetHeader(sessionHeader))
		if id == "" {
			id = anonymousSession
		} else if !sessionIDPattern.MatchString(id) {
			respond.Error(c, http.StatusBadRequest, "invalid_session", "X-Session-Id is malformed", nil)
			return
		}
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

// SessionIDFromContext fetches the session ID set by the Session middleware.
func SessionIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(sessionIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
