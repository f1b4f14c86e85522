package main

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"
)

// Analytics event types
const (
	EvtJoin     = "join"
	EvtLeave    = "leave"
	EvtHit      = "pvp_hit"
	EvtBank     = "bank_complete"
	EvtGrounded = "grounded"
)

// AnalyticsEvent is one trackable occurrence, optionally carrying a
// progress-table update applied during the flush.
type AnalyticsEvent struct {
	Type      string
	PilotID   int64
	Data      string
	Timestamp time.Time

	// progress side effects, applied in the background flush
	bankCoins int
	bankXP    int
	hitCoins  int
	grounded  bool
}

// Analytics persists events and progression with a batched background
// writer. Track never blocks: when the channel is full the event is
// dropped rather than stalling the tick.
type Analytics struct {
	db     *DB
	events chan AnalyticsEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	mu               sync.RWMutex
	concurrentPilots int
}

// NewAnalytics creates and starts the background writer
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:     db,
		events: make(chan AnalyticsEvent, 1024),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues a plain event (non-blocking)
func (a *Analytics) Track(evtType string, pilotID int64, data string) {
	a.enqueue(AnalyticsEvent{Type: evtType, PilotID: pilotID, Data: data, Timestamp: time.Now().UTC()})
}

// TrackHit records a landed hit and its coin haul
func (a *Analytics) TrackHit(pilotID int64, coins int) {
	a.enqueue(AnalyticsEvent{
		Type: EvtHit, PilotID: pilotID,
		Data:      fmt.Sprintf(`{"coins":%d}`, coins),
		Timestamp: time.Now().UTC(),
		hitCoins:  coins,
	})
}

// TrackBank records a completed bank and credits progression
func (a *Analytics) TrackBank(pilotID int64, coins, xp int) {
	a.enqueue(AnalyticsEvent{
		Type: EvtBank, PilotID: pilotID,
		Data:      fmt.Sprintf(`{"coins":%d,"xp":%d}`, coins, xp),
		Timestamp: time.Now().UTC(),
		bankCoins: coins, bankXP: xp,
	})
}

// TrackGrounding records a grounding
func (a *Analytics) TrackGrounding(pilotID int64) {
	a.enqueue(AnalyticsEvent{
		Type: EvtGrounded, PilotID: pilotID,
		Timestamp: time.Now().UTC(),
		grounded:  true,
	})
}

func (a *Analytics) enqueue(evt AnalyticsEvent) {
	select {
	case a.events <- evt:
	default:
		// Channel full — drop rather than block the game loop
	}
}

// SetConcurrentPilots updates the live player-count metric
func (a *Analytics) SetConcurrentPilots(n int) {
	a.mu.Lock()
	a.concurrentPilots = n
	a.mu.Unlock()
}

// ConcurrentPilots returns the live player-count metric
func (a *Analytics) ConcurrentPilots() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.concurrentPilots
}

// Stop drains and shuts down the writer
func (a *Analytics) Stop() {
	close(a.stop)
	a.wg.Wait()
}

func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			// The channel is never closed: Track can race shutdown (hub
			// unregisters after Stop) and a send must stay safe. Drain
			// whatever is already queued, flush, and let later sends sit
			// in the buffer unread.
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					if len(batch) > 0 {
						a.flush(batch)
					}
					return
				}
			}
		}
	}
}

// flush writes one batch of events plus their progress side effects
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		log.Printf("analytics: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (event_type, pilot_id, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		log.Printf("analytics: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullInt64{Int64: evt.PilotID, Valid: evt.PilotID > 0}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, pid, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			log.Printf("analytics: insert error: %v", err)
		}
		if evt.PilotID <= 0 {
			continue // guests and bots have no progress row
		}
		if evt.bankCoins > 0 || evt.bankXP > 0 {
			if _, err := tx.Exec(
				`UPDATE progress SET xp = xp + ?, coins_banked = coins_banked + ?, level = 1 + (xp + ?) / 1000 WHERE pilot_id = ?`,
				evt.bankXP, evt.bankCoins, evt.bankXP, evt.PilotID); err != nil {
				log.Printf("analytics: bank progress error: %v", err)
			}
		}
		if evt.hitCoins > 0 {
			if _, err := tx.Exec(
				`UPDATE progress SET coins_stolen = coins_stolen + ? WHERE pilot_id = ?`,
				evt.hitCoins, evt.PilotID); err != nil {
				log.Printf("analytics: hit progress error: %v", err)
			}
		}
		if evt.grounded {
			if _, err := tx.Exec(
				`UPDATE progress SET times_grounded = times_grounded + 1 WHERE pilot_id = ?`,
				evt.PilotID); err != nil {
				log.Printf("analytics: grounding progress error: %v", err)
			}
		}
	}
	tx.Commit()
}
