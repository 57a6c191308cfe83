package referee

import "testing"

func allOnTable(BallID) bool { return true }

func TestNoContactOutsideMargin(t *testing.T) {
	d := NewContactDetector(10)

	// Gap of 31px > 10+10+10
	hit := d.Observe(0, visibleSet(det("cueball", 100, 100), det("bi1", 151, 100)), allOnTable)
	if hit != nil {
		t.Errorf("got contact %+v, want none", hit)
	}
	if d.Fired() {
		t.Error("detector fired without a contact")
	}
}

func TestContactWithinMargin(t *testing.T) {
	d := NewContactDetector(10)

	hit := d.Observe(5, visibleSet(det("cueball", 100, 100), det("bi1", 128, 100)), allOnTable)
	if hit == nil {
		t.Fatal("no contact reported")
	}
	if hit.Ball != 1 || hit.Frame != 5 {
		t.Errorf("contact = %+v, want ball 1 at frame 5", hit)
	}
}

func TestNearestCandidateWins(t *testing.T) {
	d := NewContactDetector(10)

	// Ball 9 is closer than ball 1; geometry decides, not ball order
	hit := d.Observe(0, visibleSet(
		det("cueball", 100, 100),
		det("bi1", 129, 100),
		det("bi9", 122, 100),
	), allOnTable)
	if hit == nil || hit.Ball != 9 {
		t.Errorf("contact = %+v, want ball 9", hit)
	}
}

func TestDetectorFiresOnce(t *testing.T) {
	d := NewContactDetector(10)

	if hit := d.Observe(0, visibleSet(det("cueball", 100, 100), det("bi1", 125, 100)), allOnTable); hit == nil {
		t.Fatal("first contact not reported")
	}

	// Cue ball lingers in contact range for the rest of the shot
	if hit := d.Observe(1, visibleSet(det("cueball", 100, 100), det("bi1", 124, 100)), allOnTable); hit != nil {
		t.Errorf("second contact reported: %+v", hit)
	}

	d.Reset()
	if hit := d.Observe(2, visibleSet(det("cueball", 100, 100), det("bi1", 124, 100)), allOnTable); hit == nil {
		t.Error("no contact after reset")
	}
}

func TestPottedBallsAreNotCandidates(t *testing.T) {
	d := NewContactDetector(10)

	onTable := func(id BallID) bool { return id != 1 }
	hit := d.Observe(0, visibleSet(
		det("cueball", 100, 100),
		det("bi1", 120, 100), // off the table, must be ignored
		det("bi2", 128, 100),
	), onTable)
	if hit == nil || hit.Ball != 2 {
		t.Errorf("contact = %+v, want ball 2", hit)
	}
}

func TestNoCueBallNoContact(t *testing.T) {
	d := NewContactDetector(10)
	if hit := d.Observe(0, visibleSet(det("bi1", 100, 100), det("bi2", 110, 100)), allOnTable); hit != nil {
		t.Errorf("contact without cue ball: %+v", hit)
	}
}
