package main

import (
	"math"
	"time"
)

const (
	StealFraction = 0.2
	MinSteal      = 5.0
	MaxSteal      = 100.0

	AltMultMin = 1.0
	AltMultMax = 2.0
	AltMinRef  = 10.0
	AltMaxRef  = 200.0
)

// PvPHitResult records one resolved hit. It is emitted to nearby viewers
// and to bot hooks, never stored beyond the tick that produced it.
type PvPHitResult struct {
	AttackerID   string `json:"aid" msgpack:"aid"`
	AttackerName string `json:"an" msgpack:"an"`
	VictimID     string `json:"vid" msgpack:"vid"`
	VictimName   string `json:"vn" msgpack:"vn"`
	CoinsStolen  int    `json:"coins" msgpack:"coins"`
	StunMs       int64  `json:"stun" msgpack:"stun"`
	Pos          Vec3   `json:"pos" msgpack:"pos"`
}

// AltitudeMultiplier scales damage by the altitude the projectile was
// launched from, lerping 1.0 at altitude 10 up to 2.0 at 200, clamped.
func AltitudeMultiplier(launchAlt float64) float64 {
	if launchAlt <= AltMinRef {
		return AltMultMin
	}
	if launchAlt >= AltMaxRef {
		return AltMultMax
	}
	return AltMultMin + (launchAlt-AltMinRef)/(AltMaxRef-AltMinRef)*(AltMultMax-AltMultMin)
}

// ResolvePvPHit applies a projectile hit. The clamp ordering is deliberate
// and observable in payouts: the multiplier scales the raw steal first,
// then the [min,max] range clamp, then the clamp to what the victim holds.
// At very low balances the scaled min-steal floor can exceed the holdings
// before the final clamp catches it; that behavior is kept as-is.
func ResolvePvPHit(attacker, victim *EntityRecord, launchAlt float64, now time.Time) PvPHitResult {
	mult := AltitudeMultiplier(launchAlt)

	stolen := int(math.Floor(float64(victim.Coins) * StealFraction * mult))
	lo := int(math.Floor(MinSteal * mult))
	hi := int(math.Floor(MaxSteal * mult))
	stolen = ClampInt(stolen, lo, hi)
	if stolen > victim.Coins {
		stolen = victim.Coins
	}

	victim.OnPvPHit(stolen, StunDuration, now)
	attacker.AddCoins(stolen)
	attacker.UpdateHeat(HitHeatGain)

	return PvPHitResult{
		AttackerID:   attacker.ID,
		AttackerName: attacker.Name,
		VictimID:     victim.ID,
		VictimName:   victim.Name,
		CoinsStolen:  stolen,
		StunMs:       StunDuration.Milliseconds(),
		Pos:          victim.Pos,
	}
}
