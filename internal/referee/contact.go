package referee

import "math"

// Contact is a geometric first-hit report: which ball the cue ball
// touched, in which frame, at what center distance.
type Contact struct {
	Ball     BallID
	Frame    int
	Distance float64
}

// ContactDetector resolves the first ball the cue ball touches during a
// shot. It reports geometry only; legality is the rule engine's call.
// The detector fires at most once per shot even though the cue ball may
// stay within contact distance for several consecutive frames.
type ContactDetector struct {
	margin float64
	fired  bool
}

func NewContactDetector(margin float64) *ContactDetector {
	return &ContactDetector{margin: margin}
}

// Observe checks the current frame for a first hit. onTable filters the
// candidate set to balls still in play. Returns nil when the cue ball
// is not visible, no candidate is within the radius sum plus margin, or
// a first hit was already recorded this shot.
func (d *ContactDetector) Observe(frameIdx int, visible map[BallID]Detection, onTable func(BallID) bool) *Contact {
	if d.fired {
		return nil
	}
	cue, ok := visible[Cueball]
	if !ok {
		return nil
	}

	var hit *Contact
	for id, det := range visible {
		if id == Cueball || !onTable(id) {
			continue
		}
		dist := math.Hypot(det.X-cue.X, det.Y-cue.Y)
		if dist > cue.R+det.R+d.margin {
			continue
		}
		// Nearest candidate wins; ties go to the lowest numbered ball.
		if hit == nil || dist < hit.Distance || (dist == hit.Distance && id < hit.Ball) {
			hit = &Contact{Ball: id, Frame: frameIdx, Distance: dist}
		}
	}

	if hit != nil {
		d.fired = true
	}
	return hit
}

// Fired reports whether a first hit has been recorded this shot.
func (d *ContactDetector) Fired() bool {
	return d.fired
}

// Reset re-arms the detector at a shot boundary.
func (d *ContactDetector) Reset() {
	d.fired = false
}
