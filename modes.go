package main

import "time"

// ModeManager is the hook surface for match modes (races, team battles,
// keepaway). Managers run inside the tick with the world lock held: they
// may read the registry and spatial index directly, but economy changes
// must go through EntityRecord.AddCoins — never assign the balance.
type ModeManager interface {
	Name() string
	OnTick(w *World, now time.Time)
}

const (
	bountyInterval = 600 // ticks between sweeps (30s at 20Hz)
	bountyReward   = 25
)

// BountySweep periodically awards a small bounty to the hottest wanted
// pilot, advertising it to everyone in mid range. It exists mostly as the
// reference mode: read through the registry, pay through the mutator,
// publish through the viewer event queues.
type BountySweep struct{}

func (m *BountySweep) Name() string { return "bounty_sweep" }

func (m *BountySweep) OnTick(w *World, now time.Time) {
	if w.tick%bountyInterval != 0 {
		return
	}
	var top *EntityRecord
	for _, e := range w.entities {
		if !e.Wanted {
			continue
		}
		if top == nil || e.Heat > top.Heat || (e.Heat == top.Heat && e.ID < top.ID) {
			top = e
		}
	}
	if top == nil {
		return
	}
	top.AddCoins(bountyReward)

	ev := Event{T: EvBounty, D: BountyEvent{ID: top.ID, Name: top.Name, Coins: bountyReward}}
	seen := map[string]bool{}
	for _, id := range w.index.QueryRadius(top.Pos, MidRadius) {
		seen[id] = true
		w.queueEventLocked(id, ev)
	}
	if !seen[top.ID] {
		w.queueEventLocked(top.ID, ev)
	}
}
