package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/middleware"
	"messenger-service/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func (d Deps) audit(c *gin.Context, level telemetry.AuditLevel, text string) {
	d.Audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), c.GetInt("userID"))
}
