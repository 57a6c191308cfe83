package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Detection ingest
	ConfidenceFloor float64
	IngestTokenTTL  int // minutes

	// Presence debounce
	MissingFrames int // consecutive absent frames before a ball is tentative
	ConfirmFrames int // additional absent frames before the pot is confirmed

	// Motion
	MotionWindow       int     // frames in the rolling speed window
	StillnessThreshold float64 // pixels per frame

	// Contact
	ContactMargin float64 // pixels added to the radius sum

	// Security
	JWTSecret       string
	OperatorKeyHash string // bcrypt hash; empty disables the operator check
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/smartbilliard?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Detection ingest
		ConfidenceFloor: getEnvFloat("DETECTION_CONFIDENCE_FLOOR", 0.1),
		IngestTokenTTL:  getEnvInt("INGEST_TOKEN_TTL_MINUTES", 360),

		// Presence debounce
		MissingFrames: getEnvInt("PRESENCE_MISSING_FRAMES", 10),
		ConfirmFrames: getEnvInt("PRESENCE_CONFIRM_FRAMES", 20),

		// Motion
		MotionWindow:       getEnvInt("MOTION_WINDOW_FRAMES", 5),
		StillnessThreshold: getEnvFloat("MOTION_STILLNESS_THRESHOLD", 2.0),

		// Contact
		ContactMargin: getEnvFloat("CONTACT_MARGIN_PIXELS", 10.0),

		// Security
		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		OperatorKeyHash: getEnv("OPERATOR_KEY_HASH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
