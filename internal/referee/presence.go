package referee

// PresenceChangeKind classifies a debounced visibility transition.
type PresenceChangeKind int

const (
	// BallMissing: absent long enough to be tentatively potted.
	BallMissing PresenceChangeKind = iota
	// BallPotted: absence persisted past the confirm window; irrevocable.
	BallPotted
	// BallReappeared: seen again while tentative.
	BallReappeared
)

// PresenceChange is a single transition reported by the tracker.
type PresenceChange struct {
	Ball  BallID
	Kind  PresenceChangeKind
	Frame int
}

// PresenceTracker turns flaky per-frame visibility into debounced
// presence states. A ball missing for missingFrames consecutive frames
// becomes Tentative; after confirmFrames more it is Potted for good.
// Reappearing while Tentative cancels the pot.
type PresenceTracker struct {
	missingFrames int
	confirmFrames int

	balls    map[BallID]*Ball
	missing  map[BallID]int  // consecutive frames absent
	awaiting map[BallID]bool // potted but expected back (ball in hand)
}

func NewPresenceTracker(missingFrames, confirmFrames int) *PresenceTracker {
	return &PresenceTracker{
		missingFrames: missingFrames,
		confirmFrames: confirmFrames,
		balls:         make(map[BallID]*Ball),
		missing:       make(map[BallID]int),
		awaiting:      make(map[BallID]bool),
	}
}

// Observe folds one frame of visible detections into the tracker and
// returns the presence transitions it caused. The caller has already
// dropped detections below the confidence floor; anything not in
// visible counts as absent.
func (t *PresenceTracker) Observe(frameIdx int, visible map[BallID]Detection) []PresenceChange {
	var changes []PresenceChange

	for id, det := range visible {
		b, known := t.balls[id]
		if !known {
			t.balls[id] = &Ball{
				ID: id, X: det.X, Y: det.Y, Radius: det.R,
				Confidence: det.Confidence, LastSeen: frameIdx, State: OnTable,
			}
			t.missing[id] = 0
			continue
		}

		if b.State == Potted {
			if !t.awaiting[id] {
				// No resurrection: late detections of a confirmed ball
				// are false positives and do not touch the record.
				continue
			}
			// First sighting of a ball expected back; re-admit silently.
			delete(t.awaiting, id)
			b.State = OnTable
		}

		if b.State == Tentative {
			b.State = OnTable
			changes = append(changes, PresenceChange{Ball: id, Kind: BallReappeared, Frame: frameIdx})
		}

		b.X, b.Y = det.X, det.Y
		b.Radius = det.R
		b.Confidence = det.Confidence
		b.LastSeen = frameIdx
		t.missing[id] = 0
	}

	for id, b := range t.balls {
		if b.State == Potted {
			continue
		}
		if _, seen := visible[id]; seen {
			continue
		}

		t.missing[id]++
		switch {
		case b.State == OnTable && t.missing[id] == t.missingFrames:
			b.State = Tentative
			changes = append(changes, PresenceChange{Ball: id, Kind: BallMissing, Frame: frameIdx})
		case b.State == Tentative && t.missing[id] == t.missingFrames+t.confirmFrames:
			b.State = Potted
			changes = append(changes, PresenceChange{Ball: id, Kind: BallPotted, Frame: frameIdx})
		}
	}

	return changes
}

// Ball returns a copy of the tracked record for id.
func (t *PresenceTracker) Ball(id BallID) (Ball, bool) {
	b, ok := t.balls[id]
	if !ok {
		return Ball{}, false
	}
	return *b, true
}

// State returns the presence state for id; an unseen ball is OnTable
// (it has simply not been observed yet).
func (t *PresenceTracker) State(id BallID) PresenceState {
	if b, ok := t.balls[id]; ok {
		return b.State
	}
	return OnTable
}

// HasTentative reports whether any ball is awaiting pot confirmation.
func (t *PresenceTracker) HasTentative() bool {
	for _, b := range t.balls {
		if b.State == Tentative {
			return true
		}
	}
	return false
}

// HasPending reports whether any ball's fate is still undecided: absent
// for at least one frame but not yet confirmed potted. This covers both
// Tentative balls and fresh absences still inside the missing window.
func (t *PresenceTracker) HasPending() bool {
	for id, b := range t.balls {
		if b.State != Potted && t.missing[id] > 0 {
			return true
		}
	}
	return false
}

// Revert administratively returns a ball to the table after a foul.
// The debounce counters are cleared so the ball is treated as freshly
// OnTable.
func (t *PresenceTracker) Revert(id BallID) {
	if b, ok := t.balls[id]; ok {
		b.State = OnTable
		t.missing[id] = 0
		delete(t.awaiting, id)
	}
}

// AwaitReturn marks a confirmed-potted ball as expected back on the
// table (ball in hand after a scratch). While awaiting, absence does
// not advance any counter; the first sighting re-admits the ball as
// OnTable without an event.
func (t *PresenceTracker) AwaitReturn(id BallID) {
	if b, ok := t.balls[id]; ok && b.State == Potted {
		t.awaiting[id] = true
	}
}

// Reset discards all tracking state.
func (t *PresenceTracker) Reset() {
	t.balls = make(map[BallID]*Ball)
	t.missing = make(map[BallID]int)
	t.awaiting = make(map[BallID]bool)
}
