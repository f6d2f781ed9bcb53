package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heartline/backend/internal/services"
	log "github.com/sirupsen/logrus"
)

// respondError writes the {"ok": false, "error": ...} envelope. Only the
// user-facing message of a VerificationError leaves the process.
func respondError(c *gin.Context, err error) {
	var ve *services.VerificationError
	if errors.As(err, &ve) {
		if ve.Status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(log.Fields{
				"kind":   ve.Kind.String(),
				"path":   c.FullPath(),
				"method": c.Request.Method,
			}).Error("Phone verification request failed")
		}
		c.JSON(ve.Status, gin.H{"ok": false, "error": ve.Message})
		return
	}

	log.WithError(err).WithField("path", c.FullPath()).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Internal server error"})
}

// MethodNotAllowed answers requests whose path exists under another method.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"ok": false, "error": "Method not allowed"})
}

// NotFound answers unknown routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Not found"})
}
