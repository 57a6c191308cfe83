package referee

import "math"

type trackedPoint struct {
	frame int
	x, y  float64
}

// MotionMonitor derives a single "balls moving" flag from recent
// position deltas. Each visible ball keeps a rolling window of
// positions; the table is moving while any ball's average per-frame
// displacement over that window exceeds the stillness threshold.
// The true -> false edge is the shot boundary.
type MotionMonitor struct {
	window    int
	threshold float64

	history map[BallID][]trackedPoint
	moving  bool
}

func NewMotionMonitor(window int, threshold float64) *MotionMonitor {
	return &MotionMonitor{
		window:    window,
		threshold: threshold,
		history:   make(map[BallID][]trackedPoint),
	}
}

// Observe updates the monitor with one frame of visible detections and
// returns the current moving flag plus whether this frame is a
// true -> false transition (the table just came to rest).
func (m *MotionMonitor) Observe(frameIdx int, visible map[BallID]Detection) (moving, stopped bool) {
	for id, det := range visible {
		pts := m.history[id]
		if n := len(pts); n > 0 && frameIdx-pts[n-1].frame > m.window {
			// Reacquired after a long gap; old positions would register
			// as one huge displacement.
			pts = pts[:0]
		}
		pts = append(pts, trackedPoint{frame: frameIdx, x: det.X, y: det.Y})
		if len(pts) > m.window {
			pts = pts[len(pts)-m.window:]
		}
		m.history[id] = pts
	}

	for id := range m.history {
		if _, seen := visible[id]; !seen {
			continue // stale history must not keep the flag up
		}
		if m.rollingSpeed(id) > m.threshold {
			moving = true
			break
		}
	}

	stopped = m.moving && !moving
	m.moving = moving
	return moving, stopped
}

// Moving reports the current flag.
func (m *MotionMonitor) Moving() bool {
	return m.moving
}

// rollingSpeed is the mean frame-to-frame displacement across the
// ball's window. Fewer than two points means no measurable motion.
func (m *MotionMonitor) rollingSpeed(id BallID) float64 {
	pts := m.history[id]
	if len(pts) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i].x-pts[i-1].x, pts[i].y-pts[i-1].y)
	}
	return total / float64(len(pts)-1)
}

// Reset clears all position history and lowers the flag.
func (m *MotionMonitor) Reset() {
	m.history = make(map[BallID][]trackedPoint)
	m.moving = false
}
