package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/telemetry"
)

var debugAuditLevels = map[string]telemetry.AuditLevel{
	"info":  telemetry.LevelInfo,
	"warn":  telemetry.LevelWarn,
	"error": telemetry.LevelError,
}

// RegisterDebugRoutes adds GET /debug/audit-test when enabled. It sends one audit
// record for the caller at ?level= (info by default) so the audit pipeline can be
// checked end to end.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}

		level, ok := debugAuditLevels[strings.ToLower(c.DefaultQuery("level", "info"))]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be one of info, warn, error"})
			return
		}

		requestID := requestIDFromContext(c)
		userID := c.GetInt("userID")
		emitter.Emit(c.Request.Context(), level, "audit test from user "+strconv.Itoa(userID), requestID, userID)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "level": level, "request_id": requestID})
	})
}
