package main

import "time"

const (
	ProjectileLifetime  = 2 * time.Second
	ProjectileGravity   = 30.0 // units/s², applied downward
	ProjectileHitRadius = 3.0
	MaxProjectileSpeed  = 300.0
	MaxProjectiles      = 500
)

// Projectile is a short-lived ballistic object. It dies on age-out, ground
// contact, or by being consumed by the first successful hit.
type Projectile struct {
	ID        string
	OwnerID   string
	Pos       Vec3
	Vel       Vec3
	LaunchAlt float64 // altitude at launch, drives damage scaling
	SpawnedAt time.Time
}

// ProjectileTracker owns all live projectiles. A slice keeps iteration
// order stable so hit resolution is deterministic for a given tick.
type ProjectileTracker struct {
	projectiles []*Projectile
}

// NewProjectileTracker creates an empty tracker
func NewProjectileTracker() *ProjectileTracker {
	return &ProjectileTracker{}
}

// Count returns the number of live projectiles
func (t *ProjectileTracker) Count() int {
	return len(t.projectiles)
}

// Live returns the live projectiles (read-only view for snapshots)
func (t *ProjectileTracker) Live() []*Projectile {
	return t.projectiles
}

// Launch spawns a projectile from the owner's position. The velocity comes
// straight from the intent, clamped to the speed cap. Returns nil when the
// session-wide projectile budget is exhausted.
func (t *ProjectileTracker) Launch(owner *EntityRecord, vel Vec3, now time.Time) *Projectile {
	if len(t.projectiles) >= MaxProjectiles {
		return nil
	}
	if speed := vel.Length(); speed > MaxProjectileSpeed && speed > 0 {
		vel = vel.Scale(MaxProjectileSpeed / speed)
	}
	p := &Projectile{
		ID:        GenerateID(3),
		OwnerID:   owner.ID,
		Pos:       owner.Pos,
		Vel:       vel,
		LaunchAlt: owner.Pos.Y,
		SpawnedAt: now,
	}
	t.projectiles = append(t.projectiles, p)
	return p
}

// Advance ages, integrates, and collides every live projectile. Expired
// projectiles (age or ground contact) are removed before integration.
// Collision candidates come from the spatial index at the projectile's
// current position; the owner and any currently-immune entity are skipped,
// and the first remaining candidate consumes the projectile. The resolve
// callback performs the actual hit.
func (t *ProjectileTracker) Advance(dt float64, now time.Time, index *SpatialIndex,
	entities map[string]*EntityRecord,
	resolve func(attacker, victim *EntityRecord, launchAlt float64)) {

	live := t.projectiles[:0]
	for _, p := range t.projectiles {
		if now.Sub(p.SpawnedAt) > ProjectileLifetime || p.Pos.Y <= MinAltitude {
			continue
		}

		p.Vel.Y -= ProjectileGravity * dt
		p.Pos = p.Pos.Add(p.Vel.Scale(dt))

		consumed := false
		for _, id := range index.QueryRadius(p.Pos, ProjectileHitRadius) {
			if id == p.OwnerID {
				continue
			}
			victim, ok := entities[id]
			if !ok || victim.Immune(now) {
				continue
			}
			// Index positions are as-of tick start; re-check against the
			// entity's live position before resolving.
			if p.Pos.DistanceSqTo(victim.Pos) > ProjectileHitRadius*ProjectileHitRadius {
				continue
			}
			if attacker, ok := entities[p.OwnerID]; ok {
				resolve(attacker, victim, p.LaunchAlt)
			}
			consumed = true
			break
		}
		if !consumed {
			live = append(live, p)
		}
	}
	t.projectiles = live
}
