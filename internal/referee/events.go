package referee

import (
	"encoding/json"
	"time"
)

// EventKind identifies a referee event.
type EventKind string

const (
	EventDetectionStart EventKind = "detection_start"
	EventDetectionStop  EventKind = "detection_stop"
	EventFrameUpdate    EventKind = "frame_update"
	EventFirstHit       EventKind = "first_hit"
	EventBallMissing    EventKind = "ball_missing"
	EventBallReappeared EventKind = "ball_reappeared"
	EventCueballScratch EventKind = "cueball_scratch"
	EventFoul           EventKind = "foul"
	EventTurnChange     EventKind = "turn_change"
	EventGameEnd        EventKind = "game_end"
)

// Event is one entry of the append-only referee event log. Payload
// fields are flattened next to the envelope on the wire, matching the
// message shape the frontend consumes:
//
//	{"event":"foul","frame_idx":412,"timestamp":"...","player":"Anna",...}
type Event struct {
	Kind      EventKind
	Frame     int
	Timestamp time.Time
	Payload   map[string]interface{}
}

func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(e.Payload)+3)
	for k, v := range e.Payload {
		flat[k] = v
	}
	flat["event"] = string(e.Kind)
	flat["frame_idx"] = e.Frame
	flat["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	return json.Marshal(flat)
}

// EventSink receives every event the engine emits. Implementations must
// not block: frame processing never waits on a slow consumer, so a sink
// that fans out over the network has to buffer or drop on its own.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }
