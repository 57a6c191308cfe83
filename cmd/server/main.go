package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/smartbilliard/backend/internal/api"
	"github.com/smartbilliard/backend/internal/config"
	"github.com/smartbilliard/backend/internal/database"
	"github.com/smartbilliard/backend/internal/migrations"
	"github.com/smartbilliard/backend/internal/redis"
	"github.com/smartbilliard/backend/internal/referee"
	"github.com/smartbilliard/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Spectator hub and event fan-out
	hub := ws.NewHub()
	go hub.Run()

	// Referee engine and match manager
	manager := referee.NewManager(referee.Config{
		ConfidenceFloor:    cfg.ConfidenceFloor,
		MissingFrames:      cfg.MissingFrames,
		ConfirmFrames:      cfg.ConfirmFrames,
		MotionWindow:       cfg.MotionWindow,
		StillnessThreshold: cfg.StillnessThreshold,
		ContactMargin:      cfg.ContactMargin,
	}, db, rdb, ws.NewSink(hub, rdb))

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, manager, hub, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting billiard referee server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
