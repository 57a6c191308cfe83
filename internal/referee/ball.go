package referee

import (
	"strconv"
	"strings"
	"time"
)

// BallID identifies a ball on the table: 0 is the cue ball, 1-9 are the
// numbered object balls.
type BallID int

const Cueball BallID = 0

// NumberedBalls is the object-ball universe for 9-ball.
const NumberedBalls = 9

// ParseBallName maps a detector class name to a ball id.
// The vision model emits "cueball" and "bi1".."bi9".
func ParseBallName(name string) (BallID, bool) {
	if name == "cueball" {
		return Cueball, true
	}
	num, ok := strings.CutPrefix(name, "bi")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || n > NumberedBalls {
		return 0, false
	}
	return BallID(n), true
}

// Name returns the detector class name for the ball.
func (id BallID) Name() string {
	if id == Cueball {
		return "cueball"
	}
	return "bi" + strconv.Itoa(int(id))
}

// PresenceState is the debounced visibility state of a ball.
type PresenceState string

const (
	OnTable   PresenceState = "on_table"
	Tentative PresenceState = "tentative"
	Potted    PresenceState = "potted"
)

// Detection is a single raw observation from the vision model.
type Detection struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	R          float64 `json:"r"`
	Confidence float64 `json:"conf"`
}

// Frame is one tick of detector output.
type Frame struct {
	Index     int         `json:"frame_idx"`
	Timestamp time.Time   `json:"timestamp"`
	Balls     []Detection `json:"balls"`
}

// Ball is the tracked record for one ball id. A potted ball keeps its
// last known position for the rest of the match.
type Ball struct {
	ID         BallID        `json:"id"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Radius     float64       `json:"r"`
	Confidence float64       `json:"conf"`
	LastSeen   int           `json:"last_seen"`
	State      PresenceState `json:"state"`
}
