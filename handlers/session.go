package handlers

import (
	"storefront-svc/middleware"
	"storefront-svc/session"

	"github.com/gin-gonic/gin"
)

// currentSession loads the caller's session using the id set by
// middleware.SessionMiddleware.
func currentSession(c *gin.Context, sessions *session.Manager) *session.Session {
	return sessions.Get(c.Request.Context(), c.GetString(middleware.SessionKey))
}
