package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/service"
	"imagefolders/utils"
)

const requestTimeout = 10 * time.Second

// requestContext bounds a handler's downstream calls.
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError writes {success:false, message}. Errors carrying their own
// status keep it; anything else is a 500 with the raw message.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	var httpErr service.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.StatusCode()
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

// owner returns the authenticated user id or answers 401.
func owner(c *gin.Context) (bson.ObjectID, bool) {
	id, ok := utils.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Unauthorized. No user information found.",
		})
		return bson.NilObjectID, false
	}
	return id, true
}
