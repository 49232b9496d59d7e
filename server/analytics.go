package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"shmup-server/sim"
)

// Event types for analytics tracking
const (
	EvtSessionStart = "session_start"
	EvtSessionEnd   = "session_end"
	EvtRunEnd       = "run_end"
	EvtAchievement  = "achievement"
)

const (
	analyticsBuffer    = 1024
	analyticsBatchSize = 50
)

var analyticsFlushEvery = 5 * time.Second

// trackedEffects are the simulation effects worth persisting. Sounds,
// particles and score pops are too frequent to be useful.
var trackedEffects = map[sim.EffectKind]bool{
	sim.EffectWaveStart:       true,
	sim.EffectWaveCleared:     true,
	sim.EffectBossSpawned:     true,
	sim.EffectBossPhaseChange: true,
	sim.EffectBossDefeated:    true,
	sim.EffectPlayerHit:       true,
	sim.EffectChainReaction:   true,
	sim.EffectBombDefused:     true,
	sim.EffectGameOver:        true,
	sim.EffectLevelComplete:   true,
}

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	SessionID string
	Tick      uint64
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// Analytics handles event tracking with batched background writes
type Analytics struct {
	db      *DB
	events  chan AnalyticsEvent
	dropped int
	mu      sync.Mutex
}

// NewAnalytics creates the tracker. Run must be started to persist events.
func NewAnalytics(db *DB) *Analytics {
	return &Analytics{
		db:     db,
		events: make(chan AnalyticsEvent, analyticsBuffer),
	}
}

// Track enqueues an event for async persistence (non-blocking)
func (a *Analytics) Track(evtType, sessionID string, tick uint64, data string) {
	if a == nil {
		return
	}
	select {
	case a.events <- AnalyticsEvent{
		Type:      evtType,
		SessionID: sessionID,
		Tick:      tick,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// channel full: drop rather than block the tick
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
	}
}

// TrackEffects records the tracked subset of one tick's effects.
func (a *Analytics) TrackEffects(sessionID string, tick uint64, fx []sim.Effect) {
	if a == nil {
		return
	}
	for _, e := range fx {
		if !trackedEffects[e.Kind] {
			continue
		}
		data, err := json.Marshal(effectState(e))
		if err != nil {
			continue
		}
		a.Track(e.Kind.String(), sessionID, tick, string(data))
	}
}

// Dropped returns how many events were lost to a full buffer
func (a *Analytics) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Run batches events to the database until ctx is done, then drains what is
// still queued.
func (a *Analytics) Run(ctx context.Context) error {
	batch := make([]AnalyticsEvent, 0, analyticsBatchSize)
	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					a.flush(batch)
					return nil
				}
			}
		}
	}
}

// flush writes a batch of events to the database
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		slog.Error("analytics: begin tx", "err", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, session_id, tick, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		slog.Error("analytics: prepare", "err", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		sid := sql.NullString{String: evt.SessionID, Valid: evt.SessionID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, sid, int64(evt.Tick), data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			slog.Error("analytics: insert", "err", err, "type", evt.Type)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("analytics: commit", "err", err)
	}
}

// EventCounts returns counts of each event type for the last N days
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	if a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// BossPhaseReach returns how many sessions reached each boss phase
func (a *Analytics) BossPhaseReach() (map[int]int, error) {
	if a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT CAST(json_extract(data, '$.v') AS INTEGER) AS phase, COUNT(DISTINCT session_id)
		FROM analytics_events
		WHERE event_type = ? AND json_valid(data)
		GROUP BY phase ORDER BY phase
	`, sim.EffectBossPhaseChange.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int]int)
	for rows.Next() {
		var phase, count int
		if err := rows.Scan(&phase, &count); err != nil {
			continue
		}
		result[phase] = count
	}
	return result, rows.Err()
}
