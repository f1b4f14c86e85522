package main

import (
	"testing"
)

func TestAnalyticsFlushOnStop(t *testing.T) {
	db := newTestDB(t)
	id, err := db.CreatePilot("Ace", "hash")
	if err != nil {
		t.Fatal(err)
	}

	a := NewAnalytics(db)
	a.Track(EvtJoin, id, "")
	a.TrackBank(id, 120, 24)
	a.TrackHit(id, 34)
	a.TrackGrounding(id)
	a.Stop() // drains and flushes

	p, err := db.GetProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("progress row missing")
	}
	if p.XP != 24 || p.CoinsBanked != 120 {
		t.Errorf("bank progress wrong: xp=%d banked=%d", p.XP, p.CoinsBanked)
	}
	if p.CoinsStolen != 34 {
		t.Errorf("expected 34 coins stolen recorded, got %d", p.CoinsStolen)
	}
	if p.TimesGrounded != 1 {
		t.Errorf("expected 1 grounding recorded, got %d", p.TimesGrounded)
	}

	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(1) FROM events`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("expected 4 event rows, got %d", n)
	}
}

func TestAnalyticsGuestEventsSkipProgress(t *testing.T) {
	db := newTestDB(t)
	id, err := db.CreatePilot("Ace", "hash")
	if err != nil {
		t.Fatal(err)
	}

	a := NewAnalytics(db)
	a.TrackBank(0, 500, 100) // guest session, no pilot row
	a.Stop()

	p, err := db.GetProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	if p.XP != 0 || p.CoinsBanked != 0 {
		t.Errorf("guest banking must not credit a pilot: %+v", p)
	}
}

func TestAnalyticsLevelFromXP(t *testing.T) {
	db := newTestDB(t)
	id, err := db.CreatePilot("Ace", "hash")
	if err != nil {
		t.Fatal(err)
	}

	a := NewAnalytics(db)
	a.TrackBank(id, 5200, 1040)
	a.Stop()

	p, err := db.GetProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Level != 2 {
		t.Errorf("expected level 2 at 1040 xp, got %d", p.Level)
	}
}

func TestAnalyticsTrackAfterStop(t *testing.T) {
	db := newTestDB(t)
	id, err := db.CreatePilot("Ace", "hash")
	if err != nil {
		t.Fatal(err)
	}

	a := NewAnalytics(db)
	a.TrackBank(id, 50, 10)
	a.Stop()

	// late events (hub unregisters racing shutdown) must not panic
	a.Track(EvtLeave, id, "")
	a.TrackGrounding(id)

	p, err := db.GetProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	if p.CoinsBanked != 50 {
		t.Errorf("pre-stop bank should be flushed, banked=%d", p.CoinsBanked)
	}
	if p.TimesGrounded != 0 {
		t.Errorf("post-stop events must not be persisted, grounded=%d", p.TimesGrounded)
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(1) FROM events`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected only the pre-stop event row, got %d", n)
	}
}

func TestConcurrentPilotsGauge(t *testing.T) {
	a := NewAnalytics(nil)
	defer a.Stop()
	a.SetConcurrentPilots(7)
	if a.ConcurrentPilots() != 7 {
		t.Errorf("gauge = %d", a.ConcurrentPilots())
	}
}
