package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartbilliard/backend/internal/referee"
	"github.com/smartbilliard/backend/internal/ws"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status plus the referee phase and
// spectator count.
func HealthCheck(manager *referee.Manager, hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := manager.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"service":    "billiard-referee-api",
			"version":    version,
			"uptime":     time.Since(startTime).String(),
			"match":      snap.State,
			"phase":      snap.Phase,
			"spectators": hub.ClientCount(),
		})
	}
}
