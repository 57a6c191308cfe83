package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"

	"github.com/smartbilliard/backend/internal/config"
	"github.com/smartbilliard/backend/internal/referee"
)

// ingestMessage is the wire format of the detection pipeline. Frame
// timestamps come as unix seconds (fractional); a zero timestamp means
// "now".
type ingestMessage struct {
	Type  string `json:"type"`
	Frame struct {
		Index     int                 `json:"frame_idx"`
		Timestamp float64             `json:"timestamp"`
		Balls     []referee.Detection `json:"balls"`
	} `json:"frame"`
}

// HandleIngest accepts the detection pipeline's frame stream. The token
// query parameter is the HS256 JWT minted at match start; its subject
// must be the active match id. One pipeline connection at a time is
// assumed but not enforced; the engine serializes frames regardless.
func HandleIngest(manager *referee.Manager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		matchID, err := validateIngestToken(token, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		snap := manager.Snapshot()
		if snap.State != referee.StatusPlaying || snap.MatchID != matchID {
			c.JSON(http.StatusConflict, gin.H{"error": "token does not match the active match"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[INGEST] Upgrade error: %v", err)
			return
		}
		defer conn.Close()

		log.Printf("[INGEST] Detection pipeline connected for match %s", matchID)
		manager.BeginDetection()
		defer manager.EndDetection("stream closed")

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("[INGEST] Read error: %v", err)
				}
				return
			}

			var msg ingestMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				// Malformed input is dropped, not fatal: one bad frame
				// must not kill the stream.
				log.Printf("[INGEST] Dropping malformed message: %v", err)
				continue
			}

			switch msg.Type {
			case "frame":
				f := referee.Frame{Index: msg.Frame.Index, Balls: msg.Frame.Balls}
				if msg.Frame.Timestamp > 0 {
					sec := int64(msg.Frame.Timestamp)
					nsec := int64((msg.Frame.Timestamp - float64(sec)) * 1e9)
					f.Timestamp = time.Unix(sec, nsec)
				}
				if err := manager.ProcessFrame(f); err != nil {
					if errors.Is(err, referee.ErrNoActiveMatch) {
						log.Printf("[INGEST] Match gone, closing stream")
						return
					}
					log.Printf("[INGEST] Frame %d rejected: %v", f.Index, err)
				}

			case "ping":
				// keepalive from the pipeline, nothing to do

			default:
				log.Printf("[INGEST] Dropping message with unknown type %q", msg.Type)
			}
		}
	}
}

func validateIngestToken(token, secret string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.New("token validation failed")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("bad claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("missing subject")
	}
	return sub, nil
}
