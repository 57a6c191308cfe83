package referee

import (
	"sort"
	"time"
)

// MatchStatus is the coarse lifecycle of a match.
type MatchStatus string

const (
	StatusIdle    MatchStatus = "idle"
	StatusPlaying MatchStatus = "playing"
	StatusEnded   MatchStatus = "ended"
)

// Phase is the shot-cycle state the rule engine is in.
type Phase string

const (
	PhaseWaitingForShot Phase = "waiting_for_shot"
	PhaseShotInProgress Phase = "shot_in_progress"
	PhaseResolving      Phase = "resolving"
	PhaseTerminal       Phase = "terminal"
)

// Player is one of the two match participants. PottedBalls keeps
// insertion order (pot order).
type Player struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	PottedBalls []int  `json:"potted_balls"`
	FoulCount   int    `json:"foul_count"`
	IsCurrent   bool   `json:"is_current"`
}

// Snapshot is a read-only copy of the match state, safe to hand to
// transports and handlers.
type Snapshot struct {
	State         MatchStatus `json:"state"`
	Phase         Phase       `json:"phase"`
	MatchID       string      `json:"match_id,omitempty"`
	Players       []Player    `json:"players"`
	CurrentPlayer string      `json:"current_player,omitempty"`
	BallsOnTable  []int       `json:"balls_on_table"`
	LowestBall    int         `json:"lowest_ball"`
	LastHitBall   *int        `json:"last_hit_ball"`
	BallsMoving   bool        `json:"balls_moving"`
	Winner        string      `json:"winner,omitempty"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
}

func sortedBalls(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
