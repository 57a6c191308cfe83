package referee

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/smartbilliard/backend/internal/models"
)

const (
	// EventsChannel carries every referee event as flattened JSON.
	EventsChannel = "referee_events"

	snapshotTTL = 24 * time.Hour
)

// Manager owns the single active match. It drives the engine, persists
// sessions and events to Postgres, keeps a live snapshot in Redis and
// fans events out to the transport sink (the spectator hub). Event
// persistence runs on its own goroutine behind a buffered queue, so a
// slow or absent database never blocks frame processing; a full queue
// drops the write and logs it.
type Manager struct {
	engine *Engine
	db     *sqlx.DB
	rdb    *redis.Client
	out    EventSink
	jobs   chan persistJob

	mu        sync.Mutex
	sessionID int
	seq       int
}

// persistJob captures everything a storage write needs at emission
// time, so the writer goroutine never reads live match state.
type persistJob struct {
	ev        Event
	sessionID int
	seq       int
	final     *Snapshot // set on game_end, closes the session
}

func NewManager(cfg Config, db *sqlx.DB, rdb *redis.Client, out EventSink) *Manager {
	m := &Manager{db: db, rdb: rdb, out: out, jobs: make(chan persistJob, 256)}
	m.engine = NewEngine(cfg, SinkFunc(m.publish))
	go m.persistLoop()
	return m
}

// StartMatch creates a match session and starts the engine. Returns the
// opening snapshot and the generated match id.
func (m *Manager) StartMatch(player1, player2 string, startingPlayer int) (Snapshot, error) {
	matchID := generateMatchID()

	snap, err := m.engine.Start(matchID, player1, player2, startingPlayer)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	m.sessionID = 0
	m.seq = 0
	m.mu.Unlock()

	if m.db != nil {
		var id int
		err := m.db.QueryRow(`
			INSERT INTO match_sessions (match_id, player1_name, player2_name, starting_player, status)
			VALUES ($1, $2, $3, $4, 'playing')
			RETURNING id`,
			matchID, player1, player2, startingPlayer).Scan(&id)
		if err != nil {
			log.Printf("[MATCH] Failed to create session row for %s: %v", matchID, err)
		} else {
			m.mu.Lock()
			m.sessionID = id
			m.mu.Unlock()
		}
	}

	m.saveSnapshot(snap)
	return snap, nil
}

// StopMatch freezes the match and closes the session.
func (m *Manager) StopMatch(reason string) (Snapshot, error) {
	snap, err := m.engine.Stop(reason)
	if err != nil {
		return Snapshot{}, err
	}

	m.publish(Event{
		Kind:      EventDetectionStop,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"reason":     reason,
			"game_state": snap,
		},
	})
	m.closeSession(snap, "stopped")
	m.saveSnapshot(snap)
	return snap, nil
}

// RestartMatch discards the match. An open session is closed as
// cancelled; an already ended one is left as it was persisted.
func (m *Manager) RestartMatch() Snapshot {
	prev := m.engine.Snapshot()
	if prev.State == StatusPlaying {
		m.closeSession(prev, "cancelled")
	}

	snap := m.engine.Restart()
	if prev.MatchID != "" && m.rdb != nil {
		m.rdb.Del(context.Background(), "match:"+prev.MatchID+":state")
	}
	return snap
}

// Snapshot returns the current match state.
func (m *Manager) Snapshot() Snapshot {
	return m.engine.Snapshot()
}

// ProcessFrame feeds one detection frame to the engine and refreshes
// the live snapshot.
func (m *Manager) ProcessFrame(f Frame) error {
	if err := m.engine.ProcessFrame(f); err != nil {
		return err
	}
	m.saveSnapshot(m.engine.Snapshot())
	return nil
}

// BeginDetection marks the start of the incoming frame stream.
func (m *Manager) BeginDetection() {
	m.publish(Event{
		Kind:      EventDetectionStart,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"game_state": m.engine.Snapshot(),
		},
	})
}

// EndDetection marks the end of the incoming frame stream without
// affecting match state.
func (m *Manager) EndDetection(reason string) {
	m.publish(Event{
		Kind:      EventDetectionStop,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"reason": reason,
		},
	})
}

// History returns the most recent match sessions, newest first.
func (m *Manager) History(limit int) ([]models.MatchSession, error) {
	if m.db == nil {
		return []models.MatchSession{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sessions := []models.MatchSession{}
	err := m.db.Select(&sessions, `
		SELECT id, match_id, player1_name, player2_name, starting_player,
		       status, winner, final_state, started_at, completed_at
		FROM match_sessions
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load match history: %w", err)
	}
	return sessions, nil
}

// Events returns the persisted event log for one session in emission order.
func (m *Manager) Events(sessionID int) ([]models.MatchEvent, error) {
	if m.db == nil {
		return []models.MatchEvent{}, nil
	}
	events := []models.MatchEvent{}
	err := m.db.Select(&events, `
		SELECT id, session_id, seq, kind, frame_idx, payload, created_at
		FROM match_events
		WHERE session_id = $1
		ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load match events: %w", err)
	}
	return events, nil
}

// publish is the engine's sink: enqueue the storage write (except for
// frame updates), then forward to the transport sink. Event emission is
// serialized by the engine, so seq is strictly increasing within a
// session.
func (m *Manager) publish(ev Event) {
	if ev.Kind != EventFrameUpdate {
		m.mu.Lock()
		m.seq++
		job := persistJob{ev: ev, sessionID: m.sessionID, seq: m.seq}
		m.mu.Unlock()

		if ev.Kind == EventGameEnd {
			// Emitted under the engine lock, so reading state directly
			// here is safe.
			snap := m.engine.snapshotLocked()
			job.final = &snap
		}

		select {
		case m.jobs <- job:
		default:
			log.Printf("[MATCH] Persist queue full, dropping %s event", ev.Kind)
		}
	}
	if m.out != nil {
		m.out.Publish(ev)
	}
}

// persistLoop drains the storage queue. A single writer keeps events in
// emission order.
func (m *Manager) persistLoop() {
	for job := range m.jobs {
		m.persistEvent(job)
		if job.final != nil {
			m.closeSession(*job.final, "ended")
		}
	}
}

func (m *Manager) persistEvent(job persistJob) {
	if m.db == nil || job.sessionID == 0 {
		return
	}

	payload, err := json.Marshal(job.ev.Payload)
	if err != nil {
		payload = []byte("{}")
	}
	_, err = m.db.Exec(`
		INSERT INTO match_events (session_id, seq, kind, frame_idx, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		job.sessionID, job.seq, string(job.ev.Kind), job.ev.Frame, payload)
	if err != nil {
		log.Printf("[MATCH] Failed to persist %s event: %v", job.ev.Kind, err)
	}
}

func (m *Manager) closeSession(snap Snapshot, status string) {
	if m.db == nil {
		return
	}
	m.mu.Lock()
	sessionID := m.sessionID
	m.mu.Unlock()
	if sessionID == 0 {
		return
	}

	finalState, err := json.Marshal(snap)
	if err != nil {
		finalState = []byte("{}")
	}
	var winner interface{}
	if snap.Winner != "" {
		winner = snap.Winner
	}
	_, err = m.db.Exec(`
		UPDATE match_sessions
		SET status = $1, winner = $2, final_state = $3, completed_at = now()
		WHERE id = $4 AND completed_at IS NULL`,
		status, winner, finalState, sessionID)
	if err != nil {
		log.Printf("[MATCH] Failed to close session %d: %v", sessionID, err)
	}
}

// saveSnapshot writes the live state to match:<id>:state so restarted
// frontends and other processes can catch up without a websocket replay.
func (m *Manager) saveSnapshot(snap Snapshot) {
	if m.rdb == nil || snap.MatchID == "" {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	key := "match:" + snap.MatchID + ":state"
	if err := m.rdb.Set(context.Background(), key, data, snapshotTTL).Err(); err != nil {
		log.Printf("[MATCH] Failed to save snapshot for %s: %v", snap.MatchID, err)
	}
}

func generateMatchID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "match_" + hex.EncodeToString(b)
}
