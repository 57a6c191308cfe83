package api

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/smartbilliard/backend/internal/api/handlers"
	"github.com/smartbilliard/backend/internal/config"
	"github.com/smartbilliard/backend/internal/middleware"
	"github.com/smartbilliard/backend/internal/referee"
	"github.com/smartbilliard/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, manager *referee.Manager, hub *ws.Hub, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.WebSocketCORSCheck(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			// Aggressive no-cache for development
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] Aggressive no-cache headers enabled for all routes")
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(manager, hub))

		match := v1.Group("/match")
		{
			// Operator commands
			match.POST("/start", handlers.RequireOperatorKey(cfg), handlers.StartMatch(manager, cfg))
			match.POST("/stop", handlers.RequireOperatorKey(cfg), handlers.StopMatch(manager))
			match.POST("/restart", handlers.RequireOperatorKey(cfg), handlers.RestartMatch(manager))

			// Read-only state and history
			match.GET("/state", handlers.GetMatchState(manager))
			match.GET("/history", handlers.GetMatchHistory(manager))
			match.GET("/history/:id/events", handlers.GetMatchEvents(manager))

			// Spectator event stream
			match.GET("/ws", ws.HandleSpectator(hub, manager))
		}

		// Detection pipeline frame stream
		v1.GET("/ingest/ws", ws.HandleIngest(manager, cfg))
	}
}
