package referee

import (
	"errors"
	"testing"
)

// Manager without Postgres/Redis still referees; storage is best-effort.
func newTestManager() (*Manager, *capture) {
	sink := &capture{}
	return NewManager(testConfig(), nil, nil, sink), sink
}

func TestManagerLifecycle(t *testing.T) {
	m, sink := newTestManager()

	snap, err := m.StartMatch("Anna", "Ben", 0)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if snap.MatchID == "" {
		t.Error("no match id generated")
	}
	if snap.State != StatusPlaying {
		t.Errorf("state = %s, want %s", snap.State, StatusPlaying)
	}

	m.BeginDetection()
	if sink.count(EventDetectionStart) != 1 {
		t.Errorf("detection_start count = %d, want 1", sink.count(EventDetectionStart))
	}

	if err := m.ProcessFrame(Frame{Index: 0, Balls: []Detection{det("cueball", 100, 100)}}); err != nil {
		t.Fatalf("frame rejected: %v", err)
	}
	if sink.count(EventFrameUpdate) != 1 {
		t.Errorf("frame_update count = %d, want 1", sink.count(EventFrameUpdate))
	}

	if _, err := m.StopMatch("test over"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	stop := sink.find(EventDetectionStop)
	if stop == nil {
		t.Fatal("no detection_stop emitted")
	}
	if stop.Payload["reason"] != "test over" {
		t.Errorf("stop reason = %v, want test over", stop.Payload["reason"])
	}
}

func TestManagerRejectsSecondMatch(t *testing.T) {
	m, _ := newTestManager()

	if _, err := m.StartMatch("Anna", "Ben", 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := m.StartMatch("Carol", "Dan", 0); !errors.Is(err, ErrMatchInProgress) {
		t.Errorf("err = %v, want ErrMatchInProgress", err)
	}

	// Restart clears the slot for a fresh match
	if snap := m.RestartMatch(); snap.State != StatusIdle {
		t.Errorf("state after restart = %s, want %s", snap.State, StatusIdle)
	}
	if _, err := m.StartMatch("Carol", "Dan", 1); err != nil {
		t.Errorf("start after restart failed: %v", err)
	}
}

func TestManagerHistoryWithoutDB(t *testing.T) {
	m, _ := newTestManager()
	sessions, err := m.History(10)
	if err != nil {
		t.Fatalf("history errored: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("got %d sessions, want 0", len(sessions))
	}
}

func TestEventBurstDoesNotBlockPublishing(t *testing.T) {
	m, sink := newTestManager()

	if _, err := m.StartMatch("Anna", "Ben", 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Far more events than the persist queue holds; forwarding to the
	// transport sink must not wait on the storage writer
	const n = 1000
	for i := 0; i < n; i++ {
		m.BeginDetection()
	}
	if got := sink.count(EventDetectionStart); got != n {
		t.Errorf("detection_start count = %d, want %d", got, n)
	}
}

func TestMatchIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := generateMatchID()
		if seen[id] {
			t.Fatalf("duplicate match id %s", id)
		}
		seen[id] = true
	}
}
