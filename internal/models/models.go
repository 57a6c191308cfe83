package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// MatchSession is one refereed match, from start command to game end
// (or stop/restart). FinalState holds the last snapshot as JSONB once
// the session closes.
type MatchSession struct {
	ID             int             `db:"id" json:"id"`
	MatchID        string          `db:"match_id" json:"match_id"`
	Player1Name    string          `db:"player1_name" json:"player1_name"`
	Player2Name    string          `db:"player2_name" json:"player2_name"`
	StartingPlayer int             `db:"starting_player" json:"starting_player"`
	Status         string          `db:"status" json:"status"`
	Winner         sql.NullString  `db:"winner" json:"winner,omitempty"`
	FinalState     json.RawMessage `db:"final_state" json:"final_state,omitempty"`
	StartedAt      time.Time       `db:"started_at" json:"started_at"`
	CompletedAt    sql.NullTime    `db:"completed_at" json:"completed_at,omitempty"`
}

// MatchEvent is one persisted referee event. Frame updates are not
// stored; everything else is appended in emission order, seq being the
// per-session sequence number.
type MatchEvent struct {
	ID        int             `db:"id" json:"id"`
	SessionID int             `db:"session_id" json:"session_id"`
	Seq       int             `db:"seq" json:"seq"`
	Kind      string          `db:"kind" json:"kind"`
	FrameIdx  int             `db:"frame_idx" json:"frame_idx"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
