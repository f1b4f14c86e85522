package main

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestEntity(now time.Time) *EntityRecord {
	e := NewEntityRecord("e1", "Ace", Vec3{0, 150, 0}, now)
	// most tests want an actionable entity; expire the spawn shield
	e.Tick(0.05, now.Add(SpawnShieldDuration))
	return e
}

func TestNewEntitySpawnShield(t *testing.T) {
	e := NewEntityRecord("e1", "Ace", Vec3{0, 150, 0}, t0)
	if e.State != StateSpawnShield {
		t.Fatalf("expected spawn shield, got %v", e.State)
	}
	if !e.Immune(t0) {
		t.Error("spawn-shielded entity should be immune")
	}
	if e.CanLaunchProjectile(t0) {
		t.Error("spawn-shielded entity must not launch")
	}

	e.Tick(0.05, t0.Add(SpawnShieldDuration))
	if e.State != StateNormal {
		t.Errorf("shield expiry should restore normal, got %v", e.State)
	}
}

func TestUpdateFromInputBounds(t *testing.T) {
	e := newTestEntity(t0)
	start := e.Pos

	bad := []Vec3{
		{WorldHalfExtent + 1, 150, 0},
		{-WorldHalfExtent - 1, 150, 0},
		{0, 150, WorldHalfExtent + 1},
		{0, MaxAltitude + 1, 0},
		{0, MinAltitude - 1, 0},
	}
	for _, p := range bad {
		if e.UpdateFromInput(p, 0, 0, 50, t0) {
			t.Errorf("position %v should be rejected", p)
		}
		if e.Pos != start {
			t.Fatalf("rejected update mutated position to %v", e.Pos)
		}
	}

	if !e.UpdateFromInput(Vec3{100, 200, -100}, 1.5, -0.2, 80, t0) {
		t.Fatal("valid update rejected")
	}
	if e.Pos != (Vec3{100, 200, -100}) || e.Yaw != 1.5 || e.Pitch != -0.2 {
		t.Error("valid update did not apply")
	}
}

func TestUpdateFromInputClampsSpeed(t *testing.T) {
	e := newTestEntity(t0)
	e.UpdateFromInput(Vec3{0, 150, 0}, 0, 0, 9999, t0)
	if e.Speed != MaxSpeed {
		t.Errorf("expected speed clamped to %v, got %v", MaxSpeed, e.Speed)
	}
	e.UpdateFromInput(Vec3{0, 150, 0}, 0, 0, -5, t0)
	if e.Speed != 0 {
		t.Errorf("expected negative speed clamped to 0, got %v", e.Speed)
	}
}

func TestStunBlocksInput(t *testing.T) {
	e := newTestEntity(t0)
	e.UpdateFromInput(Vec3{10, 150, 10}, 0.5, 0.1, 40, t0)
	e.OnPvPHit(0, StunDuration, t0)

	if e.UpdateFromInput(Vec3{99, 99, 99}, 2, 2, 99, t0.Add(time.Second)) {
		t.Error("stunned entity accepted input")
	}
	if e.Pos != (Vec3{10, 150, 10}) || e.Yaw != 0.5 || e.Pitch != 0.1 || e.Speed != 40 {
		t.Error("stunned entity kinematics changed")
	}

	// after expiry input flows again
	e.Tick(0.05, t0.Add(StunDuration))
	if !e.UpdateFromInput(Vec3{20, 150, 20}, 1, 0, 40, t0.Add(StunDuration)) {
		t.Error("input rejected after stun expiry")
	}
}

func TestStunExpiryRestoresWanted(t *testing.T) {
	e := newTestEntity(t0)
	e.UpdateHeat(WantedThreshold + 10)
	if e.State != StateWanted || !e.Wanted {
		t.Fatalf("expected wanted state, got %v wanted=%v", e.State, e.Wanted)
	}

	e.OnPvPHit(0, StunDuration, t0)
	if e.State != StateStunned {
		t.Fatal("hit should stun")
	}
	e.Tick(0.05, t0.Add(StunDuration))
	if e.State != StateWanted {
		t.Errorf("stun expiry should restore wanted, got %v", e.State)
	}
}

func TestHeatUpdatesSilentlyWhileStunned(t *testing.T) {
	e := newTestEntity(t0)
	e.OnPvPHit(0, StunDuration, t0)

	e.UpdateHeat(HeatMax)
	if e.State != StateStunned {
		t.Errorf("heat update must not change stunned state, got %v", e.State)
	}
	if !e.Wanted {
		t.Error("wanted flag should still update while stunned")
	}

	e.Tick(0.05, t0.Add(StunDuration))
	if e.State != StateWanted {
		t.Errorf("expiry should land in wanted per the silent flag, got %v", e.State)
	}
}

func TestHeatClampAndDecay(t *testing.T) {
	e := newTestEntity(t0)
	e.UpdateHeat(HeatMax * 3)
	if e.Heat != HeatMax {
		t.Errorf("heat should clamp to %v, got %v", HeatMax, e.Heat)
	}
	e.UpdateHeat(-HeatMax * 3)
	if e.Heat != 0 {
		t.Errorf("heat should clamp to 0, got %v", e.Heat)
	}
	if e.Wanted || e.State != StateNormal {
		t.Error("zero heat should clear wanted")
	}

	e.UpdateHeat(WantedThreshold + 1)
	e.Tick(1.0, t0.Add(time.Second)) // one second of decay
	if e.Heat != WantedThreshold+1-HeatDecayPerSec {
		t.Errorf("expected linear decay, got %v", e.Heat)
	}
}

func TestBankingRequiresFullChannel(t *testing.T) {
	e := newTestEntity(t0)
	e.AddCoins(100)

	if !e.StartBanking(t0) {
		t.Fatal("bank start rejected")
	}
	if e.State != StateBanking {
		t.Fatalf("expected banking, got %v", e.State)
	}

	if res := e.CompleteBanking(t0.Add(BankChannelDuration - time.Millisecond)); res != nil {
		t.Fatal("bank completed before channel elapsed")
	}
	if e.Coins != 100 {
		t.Fatal("early completion touched coins")
	}

	res := e.CompleteBanking(t0.Add(BankChannelDuration))
	if res == nil {
		t.Fatal("bank completion rejected after full channel")
	}
	if res.Coins != 100 || res.XP != 20 {
		t.Errorf("expected 100 coins / 20 xp, got %+v", res)
	}
	if e.Coins != 0 || e.Heat != 0 || e.Wanted || e.State != StateNormal {
		t.Error("completion should zero coins and heat and restore normal")
	}
}

func TestBankingRejectedWithoutCoins(t *testing.T) {
	e := newTestEntity(t0)
	if e.StartBanking(t0) {
		t.Error("bank start should require coins")
	}
}

func TestBankingCancelKeepsCoins(t *testing.T) {
	e := newTestEntity(t0)
	e.AddCoins(60)
	e.UpdateHeat(WantedThreshold)
	e.StartBanking(t0)

	if !e.CancelBanking() {
		t.Fatal("cancel rejected")
	}
	if e.Coins != 60 {
		t.Error("cancel must not touch coins")
	}
	if e.State != StateWanted {
		t.Errorf("cancel should restore wanted, got %v", e.State)
	}

	// timer reset: a fresh start must wait the full channel again
	e.StartBanking(t0.Add(time.Second))
	if res := e.CompleteBanking(t0.Add(time.Second + BankChannelDuration - time.Millisecond)); res != nil {
		t.Error("cancelled channel credit leaked into the new channel")
	}
}

func TestBankingBlocksLaunch(t *testing.T) {
	e := newTestEntity(t0)
	e.AddCoins(10)
	e.StartBanking(t0)
	if e.CanLaunchProjectile(t0) {
		t.Error("banking entity must not launch")
	}
}

func TestLaunchCooldown(t *testing.T) {
	e := newTestEntity(t0)
	if !e.CanLaunchProjectile(t0) {
		t.Fatal("expected launch allowed")
	}
	e.MarkLaunched(t0)
	if e.CanLaunchProjectile(t0.Add(LaunchCooldown - time.Millisecond)) {
		t.Error("launch allowed inside cooldown")
	}
	if !e.CanLaunchProjectile(t0.Add(LaunchCooldown)) {
		t.Error("launch blocked after cooldown")
	}
}

func TestGroundingPenalty(t *testing.T) {
	e := newTestEntity(t0)
	e.AddCoins(100)
	e.UpdateHeat(HeatMax)

	lost := e.Ground()
	if lost != 40 {
		t.Errorf("expected 40 coins lost, got %d", lost)
	}
	if e.Coins != 60 {
		t.Errorf("expected 60 coins left, got %d", e.Coins)
	}
	if e.Heat != 0 || e.Wanted {
		t.Error("grounding should reset heat and wanted")
	}
	if e.State != StateGrounded {
		t.Fatalf("expected grounded, got %v", e.State)
	}

	// grounded is terminal until explicit respawn: timers don't lift it
	e.Tick(0.05, t0.Add(time.Hour))
	if e.State != StateGrounded {
		t.Error("tick must not resolve grounded")
	}
	if e.CanLaunchProjectile(t0.Add(time.Hour)) {
		t.Error("grounded entity must not launch")
	}

	e.Respawn(Vec3{0, SpawnAltitude, 0}, t0.Add(time.Hour))
	if e.State != StateSpawnShield {
		t.Errorf("respawn should re-enter spawn shield, got %v", e.State)
	}
	if e.Coins != 60 {
		t.Error("respawn must not touch coins")
	}
}

func TestPostHitImmunityWindow(t *testing.T) {
	e := newTestEntity(t0)
	e.OnPvPHit(5, StunDuration, t0)

	// immune through the stun and the rest of the window
	if !e.Immune(t0.Add(StunDuration)) {
		t.Error("expected immunity right after stun expiry")
	}
	if !e.Immune(t0.Add(HitImmunityWindow - time.Millisecond)) {
		t.Error("expected immunity inside the window")
	}
	e.Tick(0.05, t0.Add(HitImmunityWindow))
	if e.Immune(t0.Add(HitImmunityWindow)) {
		t.Error("immunity should end with the window")
	}
}

func TestOnPvPHitFloorsCoinsAtZero(t *testing.T) {
	e := newTestEntity(t0)
	e.AddCoins(3)
	e.OnPvPHit(10, StunDuration, t0)
	if e.Coins != 0 {
		t.Errorf("coins should floor at 0, got %d", e.Coins)
	}
}
