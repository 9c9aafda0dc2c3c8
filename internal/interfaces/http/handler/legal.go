package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LegalHandler serves the static legal pages.
type LegalHandler struct{}

// NewLegalHandler creates the legal pages handler.
func NewLegalHandler() *LegalHandler {
	return &LegalHandler{}
}

// RegisterRoutes registers the legal routes
func (h *LegalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/legal/eula", h.EULA)
	rg.GET("/legal/privacy", h.Privacy)
}

const eulaHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>End User License Agreement</title></head>
<body>
<h1>End User License Agreement</h1>
<p>This application is provided for internal collections tracking. By
signing in you agree to use it only with data you are authorized to
access.</p>
</body>
</html>`

const privacyHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Privacy Policy</title></head>
<body>
<h1>Privacy Policy</h1>
<p>The service stores your sign-in session and the most recently loaded
accounts receivable report. No other personal data is retained.</p>
</body>
</html>`

// EULA serves the end user license agreement.
func (h *LegalHandler) EULA(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(eulaHTML))
}

// Privacy serves the privacy policy.
func (h *LegalHandler) Privacy(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(privacyHTML))
}
