package referee

import (
	"errors"
	"testing"
)

// capture collects every emitted event for assertions.
type capture struct {
	events []Event
}

func (c *capture) Publish(ev Event) { c.events = append(c.events, ev) }

func (c *capture) find(kind EventKind) *Event {
	for i := range c.events {
		if c.events[i].Kind == kind {
			return &c.events[i]
		}
	}
	return nil
}

func (c *capture) count(kind EventKind) int {
	n := 0
	for _, ev := range c.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Tight windows keep the scenarios short: 2 frames to tentative,
// 2 more to confirmed.
func testConfig() Config {
	return Config{
		ConfidenceFloor:    0.1,
		MissingFrames:      2,
		ConfirmFrames:      2,
		MotionWindow:       2,
		StillnessThreshold: 2.0,
		ContactMargin:      10.0,
	}
}

func newTestEngine(t *testing.T) (*Engine, *capture) {
	t.Helper()
	sink := &capture{}
	e := NewEngine(testConfig(), sink)
	if _, err := e.Start("match_test", "Anna", "Ben", 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return e, sink
}

func feed(t *testing.T, e *Engine, idx int, dets ...Detection) {
	t.Helper()
	if err := e.ProcessFrame(Frame{Index: idx, Balls: dets}); err != nil {
		t.Fatalf("frame %d rejected: %v", idx, err)
	}
}

func TestStartValidation(t *testing.T) {
	e := NewEngine(testConfig(), nil)

	if err := e.ProcessFrame(Frame{}); !errors.Is(err, ErrNoActiveMatch) {
		t.Errorf("frame before start: err = %v, want ErrNoActiveMatch", err)
	}
	if _, err := e.Start("m", "", "Ben", 0); !errors.Is(err, ErrMissingPlayerName) {
		t.Errorf("empty name: err = %v, want ErrMissingPlayerName", err)
	}
	if _, err := e.Start("m", "Anna", "Ben", 2); !errors.Is(err, ErrBadStartingPlayer) {
		t.Errorf("starting player 2: err = %v, want ErrBadStartingPlayer", err)
	}

	if _, err := e.Start("m", "Anna", "Ben", 1); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := e.Start("m2", "Carol", "Dan", 0); !errors.Is(err, ErrMatchInProgress) {
		t.Errorf("second start: err = %v, want ErrMatchInProgress", err)
	}

	snap := e.Snapshot()
	if snap.CurrentPlayer != "Ben" {
		t.Errorf("current player = %s, want Ben", snap.CurrentPlayer)
	}
	if snap.LowestBall != 1 || len(snap.BallsOnTable) != 9 {
		t.Errorf("opening table = %v lowest %d, want 9 balls lowest 1", snap.BallsOnTable, snap.LowestBall)
	}
}

func TestLegalPotKeepsTurnAndAdvancesLowest(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))

	// Cue ball travels toward ball 1 and touches it
	feed(t, e, 2, det("cueball", 150, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 3, det("cueball", 181, 100), det("bi1", 200, 100), det("bi9", 400, 100))

	hit := sink.find(EventFirstHit)
	if hit == nil {
		t.Fatal("no first_hit emitted")
	}
	if hit.Payload["ball"] != 1 || hit.Payload["valid"] != true {
		t.Errorf("first_hit payload = %v, want ball 1 valid", hit.Payload)
	}

	// Ball 1 drops; table at rest while the pot debounces
	for idx := 4; idx <= 7; idx++ {
		feed(t, e, idx, det("cueball", 181, 100), det("bi9", 400, 100))
	}

	snap := e.Snapshot()
	if snap.Phase != PhaseWaitingForShot {
		t.Errorf("phase = %s, want %s", snap.Phase, PhaseWaitingForShot)
	}
	if snap.LowestBall != 2 {
		t.Errorf("lowest ball = %d, want 2", snap.LowestBall)
	}
	if snap.CurrentPlayer != "Anna" {
		t.Errorf("current player = %s, want Anna (pot keeps the turn)", snap.CurrentPlayer)
	}
	if got := snap.Players[0].PottedBalls; len(got) != 1 || got[0] != 1 {
		t.Errorf("potted balls = %v, want [1]", got)
	}
	if sink.count(EventFoul) != 0 || sink.count(EventTurnChange) != 0 {
		t.Errorf("legal pot emitted foul/turn_change: %v", sink.events)
	}
	if ev := sink.find(EventBallMissing); ev == nil {
		t.Error("no ball_missing emitted for the pot")
	}
}

func TestWrongBallFirstIsFoul(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 300), det("bi9", 400, 100))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 200, 300), det("bi9", 400, 100))

	// Cue ball heads straight for ball 9
	feed(t, e, 2, det("cueball", 300, 100), det("bi1", 200, 300), det("bi9", 400, 100))
	feed(t, e, 3, det("cueball", 372, 100), det("bi1", 200, 300), det("bi9", 400, 100))

	hit := sink.find(EventFirstHit)
	if hit == nil {
		t.Fatal("no first_hit emitted")
	}
	if hit.Payload["ball"] != 9 || hit.Payload["valid"] != false {
		t.Errorf("first_hit payload = %v, want ball 9 invalid", hit.Payload)
	}

	// Comes to rest, nothing potted
	feed(t, e, 4, det("cueball", 372, 100), det("bi1", 200, 300), det("bi9", 400, 100))

	foul := sink.find(EventFoul)
	if foul == nil {
		t.Fatal("no foul emitted")
	}
	if foul.Payload["reason"] != "did not hit the lowest ball first" {
		t.Errorf("foul reason = %v", foul.Payload["reason"])
	}

	snap := e.Snapshot()
	if snap.CurrentPlayer != "Ben" {
		t.Errorf("current player = %s, want Ben after foul", snap.CurrentPlayer)
	}
	if snap.Players[0].FoulCount != 1 {
		t.Errorf("foul count = %d, want 1", snap.Players[0].FoulCount)
	}
}

func TestNoContactIsFoul(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 300, 300))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 300, 300))

	// Cue ball rolls off without touching anything
	feed(t, e, 2, det("cueball", 100, 160), det("bi1", 300, 300))
	feed(t, e, 3, det("cueball", 100, 220), det("bi1", 300, 300))
	feed(t, e, 4, det("cueball", 100, 220), det("bi1", 300, 300))

	foul := sink.find(EventFoul)
	if foul == nil {
		t.Fatal("no foul emitted")
	}
	if foul.Payload["reason"] != "no ball hit" {
		t.Errorf("foul reason = %v, want no ball hit", foul.Payload["reason"])
	}
	if sink.count(EventFirstHit) != 0 {
		t.Error("first_hit emitted without contact")
	}
	if e.Snapshot().CurrentPlayer != "Ben" {
		t.Error("turn did not pass after foul")
	}
}

func TestLegalShotWithoutPotPassesTurn(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 100))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 200, 100))
	feed(t, e, 2, det("cueball", 150, 100), det("bi1", 200, 100))
	feed(t, e, 3, det("cueball", 179, 100), det("bi1", 205, 100))
	feed(t, e, 4, det("cueball", 179, 100), det("bi1", 230, 100))
	feed(t, e, 5, det("cueball", 179, 100), det("bi1", 230, 100))

	if sink.count(EventFoul) != 0 {
		t.Errorf("clean dry shot produced a foul: %v", sink.find(EventFoul).Payload)
	}
	if sink.count(EventTurnChange) != 1 {
		t.Errorf("turn_change count = %d, want 1", sink.count(EventTurnChange))
	}
	snap := e.Snapshot()
	if snap.CurrentPlayer != "Ben" {
		t.Errorf("current player = %s, want Ben", snap.CurrentPlayer)
	}
	if snap.Players[0].FoulCount != 0 {
		t.Errorf("foul count = %d, want 0", snap.Players[0].FoulCount)
	}
}

func TestScratchRevertsPotsAndPassesTurn(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 2, det("cueball", 150, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 3, det("cueball", 181, 100), det("bi1", 200, 100), det("bi9", 400, 100))

	// Cue ball follows ball 1 into the pocket
	for idx := 4; idx <= 7; idx++ {
		feed(t, e, idx, det("bi9", 400, 100))
	}

	if sink.count(EventCueballScratch) != 1 {
		t.Fatalf("cueball_scratch count = %d, want 1", sink.count(EventCueballScratch))
	}
	foul := sink.find(EventFoul)
	if foul == nil {
		t.Fatal("no foul emitted")
	}
	if foul.Payload["reason"] != "cueball scratched" {
		t.Errorf("foul reason = %v, want cueball scratched", foul.Payload["reason"])
	}
	reverted, _ := foul.Payload["reverted_balls"].([]int)
	if len(reverted) != 1 || reverted[0] != 1 {
		t.Errorf("reverted balls = %v, want [1]", foul.Payload["reverted_balls"])
	}

	snap := e.Snapshot()
	if len(snap.BallsOnTable) != 9 || snap.LowestBall != 1 {
		t.Errorf("table after revert = %v lowest %d, want full table lowest 1", snap.BallsOnTable, snap.LowestBall)
	}
	if len(snap.Players[0].PottedBalls) != 0 {
		t.Errorf("potted tally kept reverted balls: %v", snap.Players[0].PottedBalls)
	}
	if snap.CurrentPlayer != "Ben" {
		t.Errorf("current player = %s, want Ben", snap.CurrentPlayer)
	}

	// Ball 1 is back in play immediately; the cue ball stays off the
	// table until the incoming player places it
	if got := e.presence.State(1); got != OnTable {
		t.Errorf("ball 1 state = %s, want %s", got, OnTable)
	}
	if got := e.presence.State(Cueball); got != Potted {
		t.Errorf("cue ball state = %s, want %s while in hand", got, Potted)
	}

	// Placed back on the table: tracking resumes without an event
	before := len(sink.events)
	feed(t, e, 8, det("cueball", 120, 120), det("bi1", 200, 100), det("bi9", 400, 100))
	if got := e.presence.State(Cueball); got != OnTable {
		t.Errorf("cue ball state after placement = %s, want %s", got, OnTable)
	}
	for _, ev := range sink.events[before:] {
		if ev.Kind != EventFrameUpdate {
			t.Errorf("placement emitted %s", ev.Kind)
		}
	}
}

func TestBallInHandAfterScratch(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 2, det("cueball", 150, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 3, det("cueball", 181, 100), det("bi1", 200, 100), det("bi9", 400, 100))

	// Cue ball follows ball 1 into the pocket: scratch, ball in hand
	for idx := 4; idx <= 7; idx++ {
		feed(t, e, idx, det("bi9", 400, 100))
	}
	if sink.count(EventFoul) != 1 {
		t.Fatalf("foul count after scratch = %d, want 1", sink.count(EventFoul))
	}

	// Ben holds the cue ball well past the full debounce window; the
	// absence must not count as another scratch
	for idx := 8; idx <= 13; idx++ {
		feed(t, e, idx, det("bi1", 200, 100), det("bi9", 400, 100))
	}
	if got := sink.count(EventCueballScratch); got != 1 {
		t.Fatalf("cueball_scratch count during ball in hand = %d, want 1", got)
	}
	if got := sink.count(EventFoul); got != 1 {
		t.Fatalf("foul count during ball in hand = %d, want 1", got)
	}

	// Ben places the cue ball and plays a clean legal shot
	feed(t, e, 14, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 15, det("cueball", 150, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 16, det("cueball", 181, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 17, det("cueball", 181, 100), det("bi1", 200, 100), det("bi9", 400, 100))

	if got := sink.count(EventFirstHit); got != 2 {
		t.Errorf("first_hit count = %d, want 2 (the post-scratch contact must register)", got)
	}
	if got := sink.count(EventFoul); got != 1 {
		t.Errorf("foul count after Ben's clean shot = %d, want 1", got)
	}

	snap := e.Snapshot()
	if snap.Players[1].FoulCount != 0 {
		t.Errorf("Ben's foul count = %d, want 0", snap.Players[1].FoulCount)
	}
	if snap.CurrentPlayer != "Anna" {
		t.Errorf("current player = %s, want Anna after Ben's dry legal shot", snap.CurrentPlayer)
	}
}

func TestPotConfirmedBetweenShotsIsNotCredited(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 300), det("bi2", 300, 100), det("bi9", 400, 100))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 200, 300), det("bi2", 300, 100), det("bi9", 400, 100))

	// Ball 1 vanishes for good with no shot in progress
	for idx := 2; idx <= 5; idx++ {
		feed(t, e, idx, det("cueball", 100, 100), det("bi2", 300, 100), det("bi9", 400, 100))
	}
	if e.presence.State(1) != Potted {
		t.Fatal("ball 1 not confirmed potted")
	}

	// The next shot contacts ball 2; ball 1 must play no part in it
	feed(t, e, 6, det("cueball", 250, 100), det("bi2", 300, 100), det("bi9", 400, 100))
	feed(t, e, 7, det("cueball", 272, 100), det("bi2", 300, 100), det("bi9", 400, 100))
	feed(t, e, 8, det("cueball", 272, 100), det("bi2", 300, 100), det("bi9", 400, 100))

	foul := sink.find(EventFoul)
	if foul == nil {
		t.Fatal("no foul emitted for hitting ball 2 first")
	}
	reverted, _ := foul.Payload["reverted_balls"].([]int)
	if len(reverted) != 0 {
		t.Errorf("reverted balls = %v, want none (ball 1 was not this shot's pot)", reverted)
	}

	snap := e.Snapshot()
	if len(snap.Players[0].PottedBalls) != 0 || len(snap.Players[1].PottedBalls) != 0 {
		t.Errorf("between-shots pot was credited: %v / %v",
			snap.Players[0].PottedBalls, snap.Players[1].PottedBalls)
	}
	if snap.LowestBall != 1 || len(snap.BallsOnTable) != 9 {
		t.Errorf("table = %v lowest %d, want untouched table lowest 1", snap.BallsOnTable, snap.LowestBall)
	}
}

func TestPottedBallFlickerIsIgnored(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 2, det("cueball", 150, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 3, det("cueball", 181, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	for idx := 4; idx <= 7; idx++ {
		feed(t, e, idx, det("cueball", 181, 100), det("bi9", 400, 100))
	}
	if e.Snapshot().LowestBall != 2 {
		t.Fatal("setup: ball 1 pot did not resolve")
	}

	// False positives of the potted ball jump around the table; they
	// must not feed motion or contact
	before := len(sink.events)
	feed(t, e, 8, det("cueball", 181, 100), det("bi9", 400, 100), det("bi1", 500, 400))
	feed(t, e, 9, det("cueball", 181, 100), det("bi9", 400, 100), det("bi1", 560, 460))

	snap := e.Snapshot()
	if snap.BallsMoving {
		t.Error("flicker of a potted ball raised the moving flag")
	}
	if snap.Phase != PhaseWaitingForShot {
		t.Errorf("phase = %s, want %s", snap.Phase, PhaseWaitingForShot)
	}
	for _, ev := range sink.events[before:] {
		if ev.Kind != EventFrameUpdate {
			t.Errorf("flicker emitted %s", ev.Kind)
		}
	}
}

func TestNineBallComboWinsMatch(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 1, det("cueball", 100, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 2, det("cueball", 150, 100), det("bi1", 200, 100), det("bi9", 400, 100))
	feed(t, e, 3, det("cueball", 181, 100), det("bi1", 200, 100), det("bi9", 400, 100))

	// Ball 1 kicks the 9 in and drops as well: legal combo win
	for idx := 4; idx <= 7; idx++ {
		feed(t, e, idx, det("cueball", 181, 100))
	}

	end := sink.find(EventGameEnd)
	if end == nil {
		t.Fatal("no game_end emitted")
	}
	if end.Payload["winner"] != "Anna" || end.Payload["winner_id"] != 0 {
		t.Errorf("game_end payload = %v, want winner Anna", end.Payload)
	}
	if end.Payload["player1_score"] != 2 {
		t.Errorf("player1_score = %v, want 2", end.Payload["player1_score"])
	}

	snap := e.Snapshot()
	if snap.State != StatusEnded || snap.Phase != PhaseTerminal {
		t.Errorf("state = %s phase = %s, want ended/terminal", snap.State, snap.Phase)
	}
	if snap.Winner != "Anna" {
		t.Errorf("winner = %s, want Anna", snap.Winner)
	}

	// Frames after the win are ignored without error or events
	before := len(sink.events)
	feed(t, e, 8, det("cueball", 181, 100))
	if len(sink.events) != before {
		t.Errorf("post-game frame emitted %d events", len(sink.events)-before)
	}
}

func TestLowConfidenceDetectionCountsAsAbsent(t *testing.T) {
	e, sink := newTestEngine(t)

	feed(t, e, 0, det("cueball", 100, 100), det("bi1", 200, 100))

	ghost := det("bi1", 200, 100)
	ghost.Confidence = 0.05
	feed(t, e, 1, det("cueball", 100, 100), ghost)
	feed(t, e, 2, det("cueball", 100, 100), ghost)

	missing := sink.find(EventBallMissing)
	if missing == nil {
		t.Fatal("low-confidence ball never reported missing")
	}
	if missing.Payload["ball"] != 1 || missing.Payload["confirmed"] != false {
		t.Errorf("ball_missing payload = %v", missing.Payload)
	}
}

func TestStopAndRestart(t *testing.T) {
	e, _ := newTestEngine(t)

	if _, err := e.Stop("operator stop"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := e.ProcessFrame(Frame{Index: 0}); err != nil {
		t.Errorf("frame after stop errored: %v", err)
	}
	if snap := e.Snapshot(); snap.State != StatusEnded {
		t.Errorf("state after stop = %s, want %s", snap.State, StatusEnded)
	}

	snap := e.Restart()
	if snap.State != StatusIdle {
		t.Errorf("state after restart = %s, want %s", snap.State, StatusIdle)
	}
	if err := e.ProcessFrame(Frame{Index: 0}); !errors.Is(err, ErrNoActiveMatch) {
		t.Errorf("frame after restart: err = %v, want ErrNoActiveMatch", err)
	}

	if _, err := e.Start("m2", "Carol", "Dan", 0); err != nil {
		t.Errorf("start after restart failed: %v", err)
	}
}

func TestStopWithoutMatch(t *testing.T) {
	e := NewEngine(testConfig(), nil)
	if _, err := e.Stop("nothing running"); !errors.Is(err, ErrNoActiveMatch) {
		t.Errorf("err = %v, want ErrNoActiveMatch", err)
	}
}
