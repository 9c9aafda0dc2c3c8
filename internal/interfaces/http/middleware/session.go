package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Raulito1/collections-web/internal/domain/session"
	"github.com/Raulito1/collections-web/internal/interfaces/http/dto"
)

// Session context keys
const (
	SessionKey     = "session"
	SessionUserKey = "session_user"
)

// SessionMiddlewareConfig holds configuration for session middleware
type SessionMiddlewareConfig struct {
	// Store holds the current session state
	Store *session.Store
	// SkipPaths are paths that don't require a session
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require a session
	SkipPathPrefixes []string
	// LoginPath is where browsers are redirected when no session exists
	LoginPath string
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultSessionConfig returns default session middleware configuration
func DefaultSessionConfig(store *session.Store) SessionMiddlewareConfig {
	return SessionMiddlewareConfig{
		Store:     store,
		LoginPath: "/login",
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/login",
		},
		SkipPathPrefixes: []string{
			"/auth/",
			"/legal/",
		},
	}
}

// RequireSession creates middleware that rejects requests without a
// signed-in session. Browser navigations are redirected to the login
// page, API calls get a 401 envelope.
func RequireSession(store *session.Store) gin.HandlerFunc {
	return RequireSessionWithConfig(DefaultSessionConfig(store))
}

// RequireSessionWithConfig creates session middleware with custom config
func RequireSessionWithConfig(cfg SessionMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		snapshot := cfg.Store.Snapshot()
		if snapshot.Session == nil {
			if cfg.Logger != nil {
				cfg.Logger.Debug("request without session",
					zap.String("path", path),
					zap.Bool("loading", snapshot.Loading),
				)
			}
			if wantsHTML(c) && cfg.LoginPath != "" {
				c.Redirect(http.StatusFound, cfg.LoginPath)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
				dto.ErrCodeSessionRequired,
				"You need to sign in before performing this action",
			))
			return
		}

		c.Set(SessionKey, snapshot.Session)
		c.Set(SessionUserKey, snapshot.Session.User)
		c.Next()
	}
}

// GetSession retrieves the session from gin context
func GetSession(c *gin.Context) *session.Session {
	if v, exists := c.Get(SessionKey); exists {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// wantsHTML reports whether the client is a browser navigation rather
// than an API call.
func wantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html")
}
