package main

import "time"

const (
	WorldHalfExtent = 2000.0
	MinAltitude     = 0.0
	MaxAltitude     = 500.0
	GroundingAlt    = 5.0 // valid updates below this altitude ground the pilot
	MaxSpeed        = 120.0

	HeatMax         = 100.0
	WantedThreshold = 50.0
	HeatDecayPerSec = 1.0
	HitHeatGain     = 5.0

	SpawnShieldDuration  = 3 * time.Second
	BankChannelDuration  = 2500 * time.Millisecond
	StunDuration         = 1500 * time.Millisecond
	HitImmunityWindow    = 3 * time.Second
	LaunchCooldown       = 400 * time.Millisecond
	GroundedLossFraction = 0.4
	XPPerCoin            = 5 // xp = coins banked / 5
)

// LifecycleState is the single mutually-exclusive state of an entity.
type LifecycleState int

const (
	StateSpawnShield LifecycleState = iota
	StateNormal
	StateWanted
	StateBanking
	StateGrounded
	StateStunned
)

func (s LifecycleState) String() string {
	switch s {
	case StateSpawnShield:
		return "spawn_shield"
	case StateNormal:
		return "normal"
	case StateWanted:
		return "wanted"
	case StateBanking:
		return "banking"
	case StateGrounded:
		return "grounded"
	case StateStunned:
		return "stunned"
	}
	return "unknown"
}

// BankResult is returned by a successful CompleteBanking
type BankResult struct {
	Coins int `json:"coins" msgpack:"coins"`
	XP    int `json:"xp" msgpack:"xp"`
}

// EntityRecord is one controllable actor, human or bot piloted. All timer
// fields are plain timestamps compared against a caller-supplied now, so
// tests drive elapsed time without sleeping. Mutated only under the world
// lock.
type EntityRecord struct {
	ID   string
	Name string
	Bot  bool

	Pos       Vec3
	Yaw       float64
	Pitch     float64
	Speed     float64
	UpdatedAt time.Time

	Coins  int
	Heat   float64
	Wanted bool

	State LifecycleState

	LastLaunch  time.Time
	BankStarted time.Time
	ShieldUntil time.Time
	StunUntil   time.Time
	LastHitAt   time.Time
}

// NewEntityRecord creates an entity at spawn with an active spawn shield
func NewEntityRecord(id, name string, spawn Vec3, now time.Time) *EntityRecord {
	return &EntityRecord{
		ID:          id,
		Name:        name,
		Pos:         spawn,
		State:       StateSpawnShield,
		ShieldUntil: now.Add(SpawnShieldDuration),
		UpdatedAt:   now,
	}
}

// ValidPosition reports whether p is inside the playable volume
func ValidPosition(p Vec3) bool {
	if p.X < -WorldHalfExtent || p.X > WorldHalfExtent {
		return false
	}
	if p.Z < -WorldHalfExtent || p.Z > WorldHalfExtent {
		return false
	}
	return p.Y >= MinAltitude && p.Y <= MaxAltitude
}

// Tick advances the entity's timers: shield and stun expiry plus heat decay.
// Heat does not decay while banking — the channel freezes escalation.
func (e *EntityRecord) Tick(dt float64, now time.Time) {
	switch e.State {
	case StateSpawnShield:
		if !now.Before(e.ShieldUntil) {
			e.State = StateNormal
		}
	case StateStunned:
		if !now.Before(e.StunUntil) {
			if e.Wanted {
				e.State = StateWanted
			} else {
				e.State = StateNormal
			}
		}
	}
	if e.State != StateBanking && e.Heat > 0 {
		e.UpdateHeat(-HeatDecayPerSec * dt)
	}
}

// UpdateFromInput applies a client movement intent. Rejected (no-op) while
// stunned or when the position fails bounds validation. Speed is clamped.
func (e *EntityRecord) UpdateFromInput(pos Vec3, yaw, pitch, speed float64, ts time.Time) bool {
	if e.State == StateStunned {
		return false
	}
	if !ValidPosition(pos) {
		return false
	}
	e.Pos = pos
	e.Yaw = yaw
	e.Pitch = pitch
	e.Speed = Clamp(speed, 0, MaxSpeed)
	e.UpdatedAt = ts
	return true
}

// CanLaunchProjectile reports whether a launch intent is currently legal
func (e *EntityRecord) CanLaunchProjectile(now time.Time) bool {
	switch e.State {
	case StateGrounded, StateBanking, StateSpawnShield, StateStunned:
		return false
	}
	return now.Sub(e.LastLaunch) >= LaunchCooldown
}

// MarkLaunched records a successful launch for cooldown tracking
func (e *EntityRecord) MarkLaunched(now time.Time) {
	e.LastLaunch = now
}

// StartBanking begins the bank channel. Requires unbanked coins and a
// normal or wanted state.
func (e *EntityRecord) StartBanking(now time.Time) bool {
	if e.Coins <= 0 {
		return false
	}
	if e.State != StateNormal && e.State != StateWanted {
		return false
	}
	e.State = StateBanking
	e.BankStarted = now
	return true
}

// CompleteBanking finishes the channel if the full duration elapsed,
// converting coins into xp and clearing heat. Returns nil on rejection.
func (e *EntityRecord) CompleteBanking(now time.Time) *BankResult {
	if e.State != StateBanking {
		return nil
	}
	if now.Sub(e.BankStarted) < BankChannelDuration {
		return nil
	}
	res := &BankResult{Coins: e.Coins, XP: e.Coins / XPPerCoin}
	e.Coins = 0
	e.Heat = 0
	e.Wanted = false
	e.State = StateNormal
	return res
}

// CancelBanking aborts the channel with no effect on coins or heat
func (e *EntityRecord) CancelBanking() bool {
	if e.State != StateBanking {
		return false
	}
	e.BankStarted = time.Time{}
	if e.Wanted {
		e.State = StateWanted
	} else {
		e.State = StateNormal
	}
	return true
}

// Immune reports whether PvP hits are currently rejected: spawn shield,
// banking channel, an active stun, or the post-hit immunity window.
func (e *EntityRecord) Immune(now time.Time) bool {
	switch e.State {
	case StateSpawnShield, StateBanking, StateStunned:
		return true
	}
	return !e.LastHitAt.IsZero() && now.Sub(e.LastHitAt) < HitImmunityWindow
}

// OnPvPHit applies a resolved hit: coins removed, stun applied, and the
// re-hit immunity window opened. The wanted flag is left untouched so stun
// expiry restores the state the victim had going in.
func (e *EntityRecord) OnPvPHit(stolen int, stun time.Duration, now time.Time) {
	e.Coins -= stolen
	if e.Coins < 0 {
		e.Coins = 0
	}
	e.LastHitAt = now
	e.State = StateStunned
	e.StunUntil = now.Add(stun)
}

// UpdateHeat adjusts heat by delta, clamps it, and recomputes the wanted
// flag. While stunned the state itself is not touched; the flag still
// updates silently so stun expiry lands in the right state.
func (e *EntityRecord) UpdateHeat(delta float64) {
	e.Heat = Clamp(e.Heat+delta, 0, HeatMax)
	e.Wanted = e.Heat >= WantedThreshold
	switch e.State {
	case StateNormal:
		if e.Wanted {
			e.State = StateWanted
		}
	case StateWanted:
		if !e.Wanted {
			e.State = StateNormal
		}
	}
}

// AddCoins is the single economy mutator. Mode managers awarding coins must
// go through here rather than writing the balance directly.
func (e *EntityRecord) AddCoins(n int) {
	e.Coins += n
	if e.Coins < 0 {
		e.Coins = 0
	}
}

// Ground applies the grounding penalty: a fixed fraction of unbanked coins
// is lost and heat resets. The state is terminal until an explicit Respawn.
// Returns the coins lost.
func (e *EntityRecord) Ground() int {
	lost := int(float64(e.Coins) * GroundedLossFraction)
	e.Coins -= lost
	e.Heat = 0
	e.Wanted = false
	e.State = StateGrounded
	return lost
}

// Respawn is the external resolution of GROUNDED: back to a spawn point
// under a fresh spawn shield.
func (e *EntityRecord) Respawn(spawn Vec3, now time.Time) {
	e.Pos = spawn
	e.Speed = 0
	e.State = StateSpawnShield
	e.ShieldUntil = now.Add(SpawnShieldDuration)
	e.StunUntil = time.Time{}
	e.LastHitAt = time.Time{}
	e.UpdatedAt = now
}
