package main

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	BotEngageRange      = 400.0
	BotCruiseSpeed      = 60.0
	BotBankThreshold    = 150
	BotProjectileSpeed  = 220.0
	BotReactionCooldown = 900 * time.Millisecond // self-imposed, atop the launch cooldown
	BotFleeDuration     = 3 * time.Second
	BotRespawnDelay     = 2 * time.Second
	BotMinCruiseAlt     = 60.0
	BotMaxCruiseAlt     = 280.0
	BotWanderDrift      = 0.8 // max radians/s heading change while idle
)

// BotPilot drives one bot entity through the exact same intents a network
// client would submit: movement updates, launches, bank start/complete. It
// never touches EntityRecord fields directly. Updated once per tick on the
// coordinator goroutine.
type BotPilot struct {
	world *World
	id    string
	rng   *rand.Rand

	heading    float64
	lastShot   time.Time
	fleeUntil  time.Time
	groundedAt time.Time
}

// Update produces this tick's intents based on a read-only view of the
// bot's entity.
func (b *BotPilot) Update(dt float64, now time.Time) {
	view, ok := b.world.EntityView(b.id)
	if !ok {
		return
	}

	switch view.State {
	case StateStunned:
		return
	case StateGrounded:
		if b.groundedAt.IsZero() {
			b.groundedAt = now
		} else if now.Sub(b.groundedAt) >= BotRespawnDelay {
			b.world.RespawnEntity(b.id)
			b.groundedAt = time.Time{}
		}
		return
	case StateBanking:
		if now.Sub(view.BankStarted) >= BankChannelDuration {
			b.world.HandleBankComplete(b.id)
		}
		return
	}

	// Rich and unthreatened: cash out
	if view.Coins >= BotBankThreshold && now.After(b.fleeUntil) {
		if _, threatened := b.world.NearestOpponent(b.id, NearRadius); !threatened {
			b.world.HandleBankStart(b.id)
			return
		}
	}

	target, hasTarget := b.world.NearestOpponent(b.id, BotEngageRange)
	fleeing := now.Before(b.fleeUntil)

	if hasTarget && !fleeing {
		b.heading = math.Atan2(target.Pos.Z-view.Pos.Z, target.Pos.X-view.Pos.X)
	} else if hasTarget && fleeing {
		b.heading = math.Atan2(view.Pos.Z-target.Pos.Z, view.Pos.X-target.Pos.X)
	} else {
		b.heading += (b.rng.Float64() - 0.5) * 2 * BotWanderDrift * dt
	}

	pos := Vec3{
		X: Clamp(view.Pos.X+math.Cos(b.heading)*BotCruiseSpeed*dt, -WorldHalfExtent, WorldHalfExtent),
		Y: Clamp(view.Pos.Y, BotMinCruiseAlt, BotMaxCruiseAlt),
		Z: Clamp(view.Pos.Z+math.Sin(b.heading)*BotCruiseSpeed*dt, -WorldHalfExtent, WorldHalfExtent),
	}
	b.world.HandleUpdate(b.id, pos, b.heading, 0, BotCruiseSpeed, now)

	if hasTarget && !fleeing && now.Sub(b.lastShot) >= BotReactionCooldown {
		dir := target.Pos.Sub(pos)
		if l := dir.Length(); l > 0 {
			if b.world.HandleLaunch(b.id, dir.Scale(BotProjectileSpeed/l)) {
				b.lastShot = now
			}
		}
	}
}

// BotController owns all bot pilots and receives the world's reactive
// hooks on their behalf.
type BotController struct {
	world *World
	mu    sync.RWMutex
	byID  map[string]*BotPilot
}

// NewBotController creates the controller and subscribes it to the world
func NewBotController(world *World) *BotController {
	bc := &BotController{
		world: world,
		byID:  make(map[string]*BotPilot),
	}
	world.RegisterHook(bc)
	return bc
}

// Spawn admits one bot entity and returns its pilot
func (bc *BotController) Spawn(name string) (*BotPilot, error) {
	e, err := bc.world.JoinBot(name)
	if err != nil {
		return nil, err
	}
	b := &BotPilot{
		world:   bc.world,
		id:      e.ID,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(len(name)))),
		heading: rand.Float64() * 2 * math.Pi,
	}
	bc.mu.Lock()
	bc.byID[e.ID] = b
	bc.mu.Unlock()
	return b, nil
}

// OnPvPHit implements EntityHook: a hit bot breaks off and evades. Runs
// inside the tick, so only pilot-local state may change here.
func (bc *BotController) OnPvPHit(res PvPHitResult) {
	bc.mu.RLock()
	b, ok := bc.byID[res.VictimID]
	bc.mu.RUnlock()
	if ok {
		b.fleeUntil = time.Now().Add(BotFleeDuration)
	}
}

// OnBankComplete implements EntityHook
func (bc *BotController) OnBankComplete(entityID string, res BankResult) {}

// OnGrounded implements EntityHook
func (bc *BotController) OnGrounded(entityID string, coinsLost int) {}
