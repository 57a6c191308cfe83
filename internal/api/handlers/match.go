package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartbilliard/backend/internal/config"
	"github.com/smartbilliard/backend/internal/referee"
)

// RequireOperatorKey guards the match control endpoints. The key is
// checked with bcrypt against OPERATOR_KEY_HASH; with no hash
// configured the endpoints are open (development setups).
func RequireOperatorKey(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.OperatorKeyHash == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-Operator-Key")
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "operator key required"})
			c.Abort()
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(cfg.OperatorKeyHash), []byte(key)); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid operator key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// StartMatch creates a new match and returns the opening state plus the
// ingest token the detection pipeline uses to stream frames.
func StartMatch(manager *referee.Manager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Player1        string `json:"player1"`
			Player2        string `json:"player2"`
			StartingPlayer int    `json:"starting_player"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "player1 and player2 required"})
			return
		}

		snap, err := manager.StartMatch(req.Player1, req.Player2, req.StartingPlayer)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, referee.ErrMatchInProgress) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		ingestToken, err := mintIngestToken(snap.MatchID, cfg)
		if err != nil {
			log.Printf("Failed to sign ingest token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"game_state":   snap,
			"match_id":     snap.MatchID,
			"ingest_token": ingestToken,
		})
	}
}

// StopMatch freezes the active match.
func StopMatch(manager *referee.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Reason string `json:"reason"`
		}
		// Body is optional; a bare POST stops with a default reason.
		_ = c.BindJSON(&req)
		if req.Reason == "" {
			req.Reason = "stopped by operator"
		}

		snap, err := manager.StopMatch(req.Reason)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"game_state": snap})
	}
}

// RestartMatch discards the current match and returns the engine to its
// un-started state.
func RestartMatch(manager *referee.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := manager.RestartMatch()
		c.JSON(http.StatusOK, gin.H{"game_state": snap})
	}
}

// GetMatchState returns the live snapshot.
func GetMatchState(manager *referee.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"game_state": manager.Snapshot()})
	}
}

// GetMatchHistory lists recent sessions, newest first. ?limit=N caps
// the page size (default 20, max 100).
func GetMatchHistory(manager *referee.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		sessions, err := manager.History(limit)
		if err != nil {
			log.Printf("History query failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": sessions, "count": len(sessions)})
	}
}

// GetMatchEvents returns the persisted event log of one session.
func GetMatchEvents(manager *referee.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		events, err := manager.Events(sessionID)
		if err != nil {
			log.Printf("Events query failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
	}
}

func mintIngestToken(matchID string, cfg *config.Config) (string, error) {
	exp := time.Now().Add(time.Duration(cfg.IngestTokenTTL) * time.Minute)
	claims := jwt.MapClaims{"sub": matchID, "exp": exp.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
