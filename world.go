package main

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	MaxWorldPlayers = 64
	SpawnAltitude   = 150.0
)

// Viewer is a consumer of per-tick state snapshots, normally a websocket
// client. BufferedBytes drives the backpressure skip policy.
type Viewer interface {
	PlayerID() string
	SendState(data []byte)
	BufferedBytes() int
}

// EntityHook receives reactive notifications after combat and banking.
// Bot controllers and mode managers subscribe here instead of being called
// from inside the resolution path.
type EntityHook interface {
	OnPvPHit(res PvPHitResult)
	OnBankComplete(entityID string, res BankResult)
	OnGrounded(entityID string, coinsLost int)
}

// World is the single authoritative simulation instance. All state lives in
// fields owned by the World; every mutation happens behind mu (intents and
// the tick share the same lock, so no two ticks and no tick/intent pair
// ever overlap). The clock is injectable for tests.
type World struct {
	ID   string
	Name string

	mu       sync.Mutex
	now      func() time.Time
	rng      *rand.Rand
	entities map[string]*EntityRecord
	index    *SpatialIndex
	tracker  *ProjectileTracker
	viewers  map[string]Viewer
	events   map[string][]Event // viewer id -> drained on snapshot
	modes    []ModeManager
	hooks    []EntityHook
	tick     uint64
}

// NewWorld creates an empty world with a fresh id
func NewWorld(name string) *World {
	return &World{
		ID:       uuid.NewString(),
		Name:     name,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		entities: make(map[string]*EntityRecord),
		index:    NewSpatialIndex(SpatialCellSize),
		tracker:  NewProjectileTracker(),
		viewers:  make(map[string]Viewer),
		events:   make(map[string][]Event),
	}
}

// RegisterMode adds a mode manager invoked after physics each tick
func (w *World) RegisterMode(m ModeManager) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modes = append(w.modes, m)
}

// RegisterHook subscribes a reactive hook (bot controllers)
func (w *World) RegisterHook(h EntityHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = append(w.hooks, h)
}

// Join creates an entity for a connecting player. Guest-style ids that
// collide with a connected player are auto-suffixed; non-guest collisions
// are rejected.
func (w *World) Join(pid, username string) (*EntityRecord, error) {
	return w.join(pid, username, false)
}

// JoinBot admits a bot-piloted entity under a guest id
func (w *World) JoinBot(name string) (*EntityRecord, error) {
	return w.join("", name, true)
}

func (w *World) join(pid, username string, bot bool) (*EntityRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entities) >= MaxWorldPlayers {
		return nil, fmt.Errorf("world full")
	}
	if pid == "" {
		pid = NewGuestID()
	}
	if _, taken := w.entities[pid]; taken {
		if !strings.HasPrefix(pid, "guest-") {
			return nil, fmt.Errorf("player id already connected")
		}
		base := pid
		for {
			pid = base + "-" + GenerateID(2)
			if _, taken := w.entities[pid]; !taken {
				break
			}
		}
	}
	e := NewEntityRecord(pid, username, w.spawnPointLocked(), w.now())
	e.Bot = bot
	w.entities[pid] = e
	return e, nil
}

// Viewers returns a copy of the attached viewer set
func (w *World) Viewers() []Viewer {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Viewer, 0, len(w.viewers))
	for _, v := range w.viewers {
		out = append(out, v)
	}
	return out
}

// Leave removes an entity and its queued events
func (w *World) Leave(pid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entities[pid]; !ok {
		return false
	}
	delete(w.entities, pid)
	delete(w.viewers, pid)
	delete(w.events, pid)
	return true
}

// AttachViewer starts snapshot delivery for a connected player
func (w *World) AttachViewer(v Viewer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.viewers[v.PlayerID()] = v
}

// DetachViewer stops snapshot delivery
func (w *World) DetachViewer(pid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.viewers, pid)
	delete(w.events, pid)
}

func (w *World) spawnPointLocked() Vec3 {
	return Vec3{
		X: (w.rng.Float64() - 0.5) * WorldHalfExtent,
		Y: SpawnAltitude,
		Z: (w.rng.Float64() - 0.5) * WorldHalfExtent,
	}
}

// HandleUpdate applies a movement intent. Dipping below the grounding
// altitude with a valid update grounds the pilot (spawn shield excepted).
func (w *World) HandleUpdate(pid string, pos Vec3, yaw, pitch, speed float64, ts time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok {
		return false
	}
	if !e.UpdateFromInput(pos, yaw, pitch, speed, ts) {
		return false
	}
	if pos.Y < GroundingAlt && e.State != StateSpawnShield && e.State != StateGrounded {
		w.groundLocked(e)
	}
	return true
}

// HandleLaunch spawns a projectile if the entity may fire
func (w *World) HandleLaunch(pid string, vel Vec3) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok {
		return false
	}
	now := w.now()
	if !e.CanLaunchProjectile(now) {
		return false
	}
	if w.tracker.Launch(e, vel, now) == nil {
		return false
	}
	e.MarkLaunched(now)
	return true
}

// HandleBankStart begins the banking channel
func (w *World) HandleBankStart(pid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok {
		return false
	}
	return e.StartBanking(w.now())
}

// HandleBankComplete finishes the channel, emitting the result to the
// banker and to subscribed hooks. Returns nil on rejection.
func (w *World) HandleBankComplete(pid string) *BankResult {
	w.mu.Lock()
	e, ok := w.entities[pid]
	if !ok {
		w.mu.Unlock()
		return nil
	}
	res := e.CompleteBanking(w.now())
	if res != nil {
		w.queueEventLocked(pid, Event{T: EvBanked, D: *res})
	}
	hooks := w.hooks
	w.mu.Unlock()

	if res != nil {
		for _, h := range hooks {
			h.OnBankComplete(pid, *res)
		}
	}
	return res
}

// HandleBankCancel aborts the channel
func (w *World) HandleBankCancel(pid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok {
		return false
	}
	return e.CancelBanking()
}

// HandleChat fans a chat line out to viewers within the mid radius
func (w *World) HandleChat(pid, msg string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok {
		return false
	}
	ev := Event{T: EvChat, D: ChatEvent{ID: e.ID, Name: e.Name, Msg: msg}}
	for _, id := range w.index.QueryRadius(e.Pos, MidRadius) {
		w.queueEventLocked(id, ev)
	}
	return true
}

// GroundEntity is the external grounding trigger
func (w *World) GroundEntity(pid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok || e.State == StateGrounded {
		return false
	}
	w.groundLocked(e)
	return true
}

func (w *World) groundLocked(e *EntityRecord) {
	lost := e.Ground()
	w.queueEventLocked(e.ID, Event{T: EvGrounded, D: GroundedEvent{ID: e.ID, CoinsLost: lost}})
	for _, h := range w.hooks {
		h.OnGrounded(e.ID, lost)
	}
}

// RespawnEntity resolves a grounded entity back into play
func (w *World) RespawnEntity(pid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok || e.State != StateGrounded {
		return false
	}
	e.Respawn(w.spawnPointLocked(), w.now())
	return true
}

// AddCoinsTo awards coins through the entity's mutator. External
// collaborators (mode managers running outside the tick) use this instead
// of touching the balance directly.
func (w *World) AddCoinsTo(pid string, n int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok {
		return false
	}
	e.AddCoins(n)
	return true
}

// Advance runs one simulation tick: spatial rebuild, entity timers,
// projectile physics and PvP resolution, then mode hooks.
func (w *World) Advance(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tick++
	now := w.now()

	entries := make([]GridEntry, 0, len(w.entities))
	for id, e := range w.entities {
		entries = append(entries, GridEntry{ID: id, Pos: e.Pos})
	}
	w.index.Rebuild(entries)

	for _, e := range w.entities {
		e.Tick(dt, now)
	}

	var hits []PvPHitResult
	w.tracker.Advance(dt, now, w.index, w.entities, func(attacker, victim *EntityRecord, launchAlt float64) {
		res := ResolvePvPHit(attacker, victim, launchAlt, now)
		hits = append(hits, res)
		w.fanOutHitLocked(res)
	})

	for _, m := range w.modes {
		m.OnTick(w, now)
	}

	// Hooks run after the lock-held work of the tick body; they must not
	// re-enter locked World methods from this callback.
	for _, res := range hits {
		for _, h := range w.hooks {
			h.OnPvPHit(res)
		}
	}
}

// fanOutHitLocked queues the hit for every viewer within the mid radius of
// the victim, always including the two participants.
func (w *World) fanOutHitLocked(res PvPHitResult) {
	ev := Event{T: EvPvPHit, D: res}
	seen := map[string]bool{}
	for _, id := range w.index.QueryRadius(res.Pos, MidRadius) {
		seen[id] = true
		w.queueEventLocked(id, ev)
	}
	if !seen[res.AttackerID] {
		w.queueEventLocked(res.AttackerID, ev)
	}
	if !seen[res.VictimID] {
		w.queueEventLocked(res.VictimID, ev)
	}
}

// queueEventLocked appends an event for a viewer; entities without an
// attached viewer (bots) are skipped — they get hook callbacks instead.
func (w *World) queueEventLocked(viewerID string, ev Event) {
	if _, ok := w.viewers[viewerID]; !ok {
		return
	}
	w.events[viewerID] = append(w.events[viewerID], ev)
}

// Tick returns the current tick counter
func (w *World) Tick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// PlayerCount returns the number of entities in the world
func (w *World) PlayerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entities)
}

// EntityView returns a copy of an entity's current record
func (w *World) EntityView(pid string) (EntityRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok {
		return EntityRecord{}, false
	}
	return *e, true
}

// NearestOpponent finds the closest non-immune entity to pid within radius,
// using the spatial index from the last tick. Bots use this for targeting.
func (w *World) NearestOpponent(pid string, radius float64) (EntityRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[pid]
	if !ok {
		return EntityRecord{}, false
	}
	now := w.now()
	for _, id := range w.index.QueryRadius(e.Pos, radius) {
		if id == pid {
			continue
		}
		if o, ok := w.entities[id]; ok && !o.Immune(now) {
			return *o, true
		}
	}
	return EntityRecord{}, false
}
