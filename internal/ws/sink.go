package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/smartbilliard/backend/internal/referee"
)

// Sink fans referee events out to the spectator hub and the Redis
// events channel. Both paths are non-blocking from the engine's point
// of view: the hub drops on full buffers, and Redis publishes run on
// their own goroutine behind a buffered queue that also drops on full.
type Sink struct {
	hub *Hub
	rdb *redis.Client
	out chan referee.Event
}

func NewSink(hub *Hub, rdb *redis.Client) *Sink {
	s := &Sink{hub: hub, rdb: rdb, out: make(chan referee.Event, 256)}
	if rdb != nil {
		go s.publishLoop()
	}
	return s
}

func (s *Sink) Publish(ev referee.Event) {
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
	if s.rdb == nil || ev.Kind == referee.EventFrameUpdate {
		// Frame updates stay local; the channel carries rule events only.
		return
	}
	select {
	case s.out <- ev:
	default:
		log.Printf("[WS] Redis publish queue full, dropping %s", ev.Kind)
	}
}

func (s *Sink) publishLoop() {
	for ev := range s.out {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := s.rdb.Publish(context.Background(), referee.EventsChannel, data).Err(); err != nil {
			log.Printf("[WS] Redis publish failed for %s: %v", ev.Kind, err)
		}
	}
}
