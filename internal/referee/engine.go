package referee

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Config holds the tunable thresholds of the referee engine. Defaults
// are calibrated for ~30fps footage.
type Config struct {
	ConfidenceFloor    float64 // detections below this count as absent
	MissingFrames      int     // absence before a ball is tentative
	ConfirmFrames      int     // further absence before the pot is final
	MotionWindow       int     // rolling speed window, frames
	StillnessThreshold float64 // pixels per frame
	ContactMargin      float64 // pixels beyond the radius sum
}

func DefaultConfig() Config {
	return Config{
		ConfidenceFloor:    0.1,
		MissingFrames:      10,
		ConfirmFrames:      20,
		MotionWindow:       5,
		StillnessThreshold: 2.0,
		ContactMargin:      10.0,
	}
}

// Engine is the 9-ball referee: it folds presence, motion and contact
// signals into the turn/foul/win state machine and emits domain events
// through its sink. All mutation happens under one mutex; a frame is
// processed to completion before the next is accepted, and emitted
// events are never retracted.
type Engine struct {
	mu   sync.Mutex
	cfg  Config
	sink EventSink

	status  MatchStatus
	phase   Phase
	matchID string

	players      [2]*Player
	current      int
	ballsOnTable map[int]bool
	lowestBall   int
	startedAt    time.Time
	winner       int

	presence *PresenceTracker
	motion   *MotionMonitor
	contact  *ContactDetector

	// per-shot bookkeeping, cleared at every resolution
	firstHit       *Contact
	pottedThisShot []int
	scratched      bool
}

func NewEngine(cfg Config, sink EventSink) *Engine {
	e := &Engine{cfg: cfg, sink: sink}
	e.resetLocked()
	return e
}

// Start begins a new match. It fails if one is already playing; the
// previous match must be stopped or restarted first.
func (e *Engine) Start(matchID, player1, player2 string, startingPlayer int) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusPlaying {
		return Snapshot{}, ErrMatchInProgress
	}
	if player1 == "" || player2 == "" {
		return Snapshot{}, ErrMissingPlayerName
	}
	if startingPlayer != 0 && startingPlayer != 1 {
		return Snapshot{}, ErrBadStartingPlayer
	}

	e.resetLocked()
	e.matchID = matchID
	e.players = [2]*Player{
		{ID: 0, Name: player1, PottedBalls: []int{}},
		{ID: 1, Name: player2, PottedBalls: []int{}},
	}
	e.current = startingPlayer
	e.players[e.current].IsCurrent = true
	e.status = StatusPlaying
	e.phase = PhaseWaitingForShot
	e.startedAt = time.Now()

	log.Printf("[REFEREE] Match %s started: %s vs %s, %s breaks",
		matchID, player1, player2, e.players[e.current].Name)

	return e.snapshotLocked(), nil
}

// Stop freezes the match. The state stays readable but all further
// frames are ignored.
func (e *Engine) Stop(reason string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusIdle {
		return Snapshot{}, ErrNoActiveMatch
	}
	if e.status == StatusPlaying {
		e.status = StatusEnded
		e.phase = PhaseTerminal
		log.Printf("[REFEREE] Match %s stopped: %s", e.matchID, reason)
	}
	return e.snapshotLocked(), nil
}

// Restart discards the match entirely and returns the engine to its
// un-started state, including any in-flight shot bookkeeping.
func (e *Engine) Restart() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	log.Printf("[REFEREE] Engine reset")
	e.resetLocked()
	return e.snapshotLocked()
}

// Snapshot returns a read-only copy of the match state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// ProcessFrame folds one frame of detections into the match. Frames
// arriving before start are rejected; frames after the match ended are
// ignored without error.
func (e *Engine) ProcessFrame(f Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusIdle {
		return ErrNoActiveMatch
	}
	if e.status == StatusEnded {
		return nil
	}

	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	visible := e.normalize(f)

	for _, change := range e.presence.Observe(f.Index, visible) {
		e.applyPresenceChange(change, f.Timestamp)
	}

	// Confirmed-potted balls may still flicker in the detector output;
	// drop them before the motion and contact passes.
	for id := range visible {
		if e.presence.State(id) == Potted {
			delete(visible, id)
		}
	}

	moving, stopped := e.motion.Observe(f.Index, visible)
	if moving && e.phase == PhaseWaitingForShot {
		e.phase = PhaseShotInProgress
	}

	if e.phase == PhaseWaitingForShot || e.phase == PhaseShotInProgress {
		if e.presence.State(Cueball) == OnTable {
			onTable := func(id BallID) bool {
				return id != Cueball && e.ballsOnTable[int(id)] && e.presence.State(id) == OnTable
			}
			if hit := e.contact.Observe(f.Index, visible, onTable); hit != nil {
				e.recordFirstHit(hit, f.Timestamp)
			}
		}
	}

	if stopped && e.phase == PhaseShotInProgress {
		e.phase = PhaseResolving
	}

	// Absences still inside their debounce window hold resolution open;
	// the shot is judged once every ball's fate is settled.
	if e.phase == PhaseResolving && !e.presence.HasPending() {
		e.resolveShot(f.Index, f.Timestamp)
	}

	e.emit(Event{
		Kind:      EventFrameUpdate,
		Frame:     f.Index,
		Timestamp: f.Timestamp,
		Payload: map[string]interface{}{
			"balls":      detectionList(visible),
			"game_state": e.snapshotLocked(),
		},
	})
	return nil
}

// normalize keeps the best detection per ball id, dropping unknown
// class names and anything below the confidence floor. A detection
// below the floor is indistinguishable from absence.
func (e *Engine) normalize(f Frame) map[BallID]Detection {
	visible := make(map[BallID]Detection, len(f.Balls))
	for _, det := range f.Balls {
		id, ok := ParseBallName(det.Name)
		if !ok || det.Confidence < e.cfg.ConfidenceFloor {
			continue
		}
		if best, seen := visible[id]; !seen || det.Confidence > best.Confidence {
			visible[id] = det
		}
	}
	return visible
}

func detectionList(visible map[BallID]Detection) []Detection {
	out := make([]Detection, 0, len(visible))
	for _, det := range visible {
		out = append(out, det)
	}
	return out
}

func (e *Engine) applyPresenceChange(change PresenceChange, ts time.Time) {
	name := change.Ball.Name()
	switch change.Kind {
	case BallMissing:
		e.emit(Event{Kind: EventBallMissing, Frame: change.Frame, Timestamp: ts,
			Payload: map[string]interface{}{
				"ball": int(change.Ball), "ball_name": name, "confirmed": false,
			}})

	case BallReappeared:
		e.emit(Event{Kind: EventBallReappeared, Frame: change.Frame, Timestamp: ts,
			Payload: map[string]interface{}{
				"ball": int(change.Ball), "ball_name": name,
			}})

	case BallPotted:
		e.emit(Event{Kind: EventBallMissing, Frame: change.Frame, Timestamp: ts,
			Payload: map[string]interface{}{
				"ball": int(change.Ball), "ball_name": name, "confirmed": true,
			}})
		if e.phase != PhaseShotInProgress && e.phase != PhaseResolving {
			// Confirmed outside a shot window: no shot can claim it.
			log.Printf("[REFEREE] Ball %d confirmed potted outside a shot at frame %d, not credited",
				change.Ball, change.Frame)
			return
		}
		if change.Ball == Cueball {
			e.scratched = true
			e.emit(Event{Kind: EventCueballScratch, Frame: change.Frame, Timestamp: ts,
				Payload: map[string]interface{}{
					"player": e.players[e.current].Name,
				}})
			return
		}
		e.pottedThisShot = append(e.pottedThisShot, int(change.Ball))
		log.Printf("[REFEREE] Ball %d confirmed potted at frame %d", change.Ball, change.Frame)
	}
}

func (e *Engine) recordFirstHit(hit *Contact, ts time.Time) {
	e.firstHit = hit
	if e.phase == PhaseWaitingForShot {
		e.phase = PhaseShotInProgress
	}

	cur := e.players[e.current]
	valid := int(hit.Ball) == e.lowestBall
	payload := map[string]interface{}{
		"ball":        int(hit.Ball),
		"ball_name":   hit.Ball.Name(),
		"valid":       valid,
		"lowest_ball": e.lowestBall,
		"player":      cur.Name,
		"message":     fmt.Sprintf("%s hit ball %d", cur.Name, hit.Ball),
	}
	if !valid {
		payload["foul_reason"] = fmt.Sprintf("Must hit ball %d first", e.lowestBall)
	}
	e.emit(Event{Kind: EventFirstHit, Frame: hit.Frame, Timestamp: ts, Payload: payload})
}

// resolveShot applies the resolution rules atomically, in order:
// scratch, no contact, wrong ball first, legal without pot, legal with
// pot, win. Legality is judged solely by the first-contacted ball.
func (e *Engine) resolveShot(frameIdx int, ts time.Time) {
	cur := e.players[e.current]

	switch {
	case e.scratched:
		e.applyFoul(frameIdx, ts, "cueball scratched")

	case e.firstHit == nil:
		e.applyFoul(frameIdx, ts, "no ball hit")

	case int(e.firstHit.Ball) != e.lowestBall:
		e.applyFoul(frameIdx, ts, "did not hit the lowest ball first")

	case len(e.pottedThisShot) == 0:
		// Legal but dry: turn passes without a foul.
		e.switchTurn(frameIdx, ts)

	default:
		for _, n := range e.pottedThisShot {
			delete(e.ballsOnTable, n)
			cur.PottedBalls = append(cur.PottedBalls, n)
		}
		if containsBall(e.pottedThisShot, 9) {
			e.endGame(frameIdx, ts)
		} else {
			e.updateLowestBall()
			log.Printf("[REFEREE] %s potted %v, continues (lowest now %d)",
				cur.Name, e.pottedThisShot, e.lowestBall)
		}
	}

	if e.phase != PhaseTerminal {
		e.phase = PhaseWaitingForShot
	}
	e.resetShot()
}

// applyFoul reverts this shot's pots, charges the current player and
// hands the table to the opponent.
func (e *Engine) applyFoul(frameIdx int, ts time.Time, reason string) {
	cur := e.players[e.current]
	cur.FoulCount++

	reverted := append([]int{}, e.pottedThisShot...)
	for _, n := range reverted {
		e.presence.Revert(BallID(n))
	}
	if e.scratched {
		// Ball in hand: the cue ball stays off the table until the
		// incoming player places it. Tracking resumes on its first
		// sighting rather than restarting the debounce now.
		e.presence.AwaitReturn(Cueball)
	}

	e.emit(Event{Kind: EventFoul, Frame: frameIdx, Timestamp: ts,
		Payload: map[string]interface{}{
			"player":         cur.Name,
			"reason":         reason,
			"reverted_balls": reverted,
			"message":        fmt.Sprintf("Foul by %s: %s", cur.Name, reason),
		}})
	log.Printf("[REFEREE] Foul by %s: %s (reverted %v)", cur.Name, reason, reverted)

	e.switchTurn(frameIdx, ts)
}

func (e *Engine) switchTurn(frameIdx int, ts time.Time) {
	e.players[e.current].IsCurrent = false
	e.current = 1 - e.current
	e.players[e.current].IsCurrent = true

	e.emit(Event{Kind: EventTurnChange, Frame: frameIdx, Timestamp: ts,
		Payload: map[string]interface{}{
			"player":  e.players[e.current].Name,
			"message": fmt.Sprintf("Turn: %s", e.players[e.current].Name),
		}})
}

func (e *Engine) endGame(frameIdx int, ts time.Time) {
	winner := e.players[e.current]
	e.status = StatusEnded
	e.phase = PhaseTerminal
	e.winner = e.current

	e.emit(Event{Kind: EventGameEnd, Frame: frameIdx, Timestamp: ts,
		Payload: map[string]interface{}{
			"winner":        winner.Name,
			"winner_id":     winner.ID,
			"player1_score": len(e.players[0].PottedBalls),
			"player2_score": len(e.players[1].PottedBalls),
			"player1_fouls": e.players[0].FoulCount,
			"player2_fouls": e.players[1].FoulCount,
			"duration":      time.Since(e.startedAt).Seconds(),
			"message":       fmt.Sprintf("%s wins!", winner.Name),
		}})
	log.Printf("[REFEREE] Match %s over: %s wins", e.matchID, winner.Name)
}

func (e *Engine) updateLowestBall() {
	lowest := 0
	for n := range e.ballsOnTable {
		if lowest == 0 || n < lowest {
			lowest = n
		}
	}
	e.lowestBall = lowest
}

func (e *Engine) resetShot() {
	e.firstHit = nil
	e.pottedThisShot = nil
	e.scratched = false
	e.contact.Reset()
}

func (e *Engine) resetLocked() {
	e.status = StatusIdle
	e.phase = PhaseWaitingForShot
	e.matchID = ""
	e.players = [2]*Player{}
	e.current = 0
	e.winner = -1
	e.startedAt = time.Time{}
	e.ballsOnTable = make(map[int]bool, NumberedBalls)
	for n := 1; n <= NumberedBalls; n++ {
		e.ballsOnTable[n] = true
	}
	e.lowestBall = 1
	e.presence = NewPresenceTracker(e.cfg.MissingFrames, e.cfg.ConfirmFrames)
	e.motion = NewMotionMonitor(e.cfg.MotionWindow, e.cfg.StillnessThreshold)
	e.contact = NewContactDetector(e.cfg.ContactMargin)
	e.firstHit = nil
	e.pottedThisShot = nil
	e.scratched = false
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:        e.status,
		Phase:        e.phase,
		MatchID:      e.matchID,
		BallsOnTable: sortedBalls(e.ballsOnTable),
		LowestBall:   e.lowestBall,
		BallsMoving:  e.motion.Moving(),
	}
	if e.players[0] == nil {
		snap.Players = []Player{}
		return snap
	}

	snap.Players = make([]Player, 2)
	for i, p := range e.players {
		cp := *p
		cp.PottedBalls = append([]int{}, p.PottedBalls...)
		snap.Players[i] = cp
	}
	snap.CurrentPlayer = e.players[e.current].Name
	if e.firstHit != nil {
		n := int(e.firstHit.Ball)
		snap.LastHitBall = &n
	}
	if e.winner >= 0 {
		snap.Winner = e.players[e.winner].Name
	}
	if !e.startedAt.IsZero() {
		t := e.startedAt
		snap.StartedAt = &t
	}
	return snap
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink.Publish(ev)
	}
}

func containsBall(balls []int, n int) bool {
	for _, b := range balls {
		if b == n {
			return true
		}
	}
	return false
}
