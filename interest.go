package main

const (
	NearRadius = 200.0
	MidRadius  = 500.0
)

// NearEntityState is the full-fidelity form sent for near-tier entities
// every tick.
type NearEntityState struct {
	ID      string  `json:"id" msgpack:"id"`
	Name    string  `json:"n" msgpack:"n"`
	Pos     Vec3    `json:"pos" msgpack:"pos"`
	Yaw     float64 `json:"yaw" msgpack:"yaw"`
	Pitch   float64 `json:"pitch" msgpack:"pitch"`
	Speed   float64 `json:"spd" msgpack:"spd"`
	Coins   int     `json:"coins" msgpack:"coins"`
	Wanted  bool    `json:"w" msgpack:"w"`
	State   string  `json:"st" msgpack:"st"`
	Stunned bool    `json:"stun" msgpack:"stun"`
	TS      int64   `json:"ts" msgpack:"ts"`
}

// MidEntityState is the reduced form sent for mid-tier entities on even
// ticks only, halving mid-tier bandwidth.
type MidEntityState struct {
	ID     string  `json:"id" msgpack:"id"`
	Name   string  `json:"n" msgpack:"n"`
	Pos    Vec3    `json:"pos" msgpack:"pos"`
	Yaw    float64 `json:"yaw" msgpack:"yaw"`
	Wanted bool    `json:"w" msgpack:"w"`
}

// StateSnapshot is one viewer's per-tick view of the world, msgpack-encoded
// onto the wire. Far-tier entities are excluded entirely.
type StateSnapshot struct {
	Tick   uint64            `json:"tick" msgpack:"tick"`
	TS     int64             `json:"ts" msgpack:"ts"`
	Near   []NearEntityState `json:"near" msgpack:"near"`
	Mid    []MidEntityState  `json:"mid,omitempty" msgpack:"mid,omitempty"`
	Events []Event           `json:"ev,omitempty" msgpack:"ev,omitempty"`
}

func nearState(e *EntityRecord) NearEntityState {
	return NearEntityState{
		ID:      e.ID,
		Name:    e.Name,
		Pos:     e.Pos,
		Yaw:     e.Yaw,
		Pitch:   e.Pitch,
		Speed:   e.Speed,
		Coins:   e.Coins,
		Wanted:  e.Wanted,
		State:   e.State.String(),
		Stunned: e.State == StateStunned,
		TS:      e.UpdatedAt.UnixMilli(),
	}
}

func midState(e *EntityRecord) MidEntityState {
	return MidEntityState{
		ID:     e.ID,
		Name:   e.Name,
		Pos:    e.Pos,
		Yaw:    e.Yaw,
		Wanted: e.Wanted,
	}
}

// SnapshotFor builds one viewer's snapshot: other entities within the near
// radius at full fidelity, mid-radius ones in reduced form on even ticks,
// everything farther dropped. Queued events are drained exactly once.
func (w *World) SnapshotFor(viewerID string) (*StateSnapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entities[viewerID]
	if !ok {
		return nil, false
	}

	snap := &StateSnapshot{
		Tick: w.tick,
		TS:   w.now().UnixMilli(),
	}
	for _, id := range w.index.QueryRadius(e.Pos, MidRadius) {
		if id == viewerID {
			continue
		}
		o, ok := w.entities[id]
		if !ok {
			continue
		}
		d := e.Pos.DistanceTo(o.Pos)
		switch {
		case d <= NearRadius:
			snap.Near = append(snap.Near, nearState(o))
		case w.tick%2 == 0:
			snap.Mid = append(snap.Mid, midState(o))
		}
	}

	if evs := w.events[viewerID]; len(evs) > 0 {
		snap.Events = evs
		delete(w.events, viewerID)
	}
	return snap, true
}

// FullSnapshot lists every entity in reduced form, sent once in the welcome
// message so a joining client can populate the world.
func (w *World) FullSnapshot() []MidEntityState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]MidEntityState, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, midState(e))
	}
	return out
}
