package main

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	TickRate     = 20
	TickDuration = time.Second / TickRate

	// BackpressureLimit is the outbound buffered-byte threshold above which
	// a viewer's snapshot is skipped for the tick. Skipped, never queued:
	// stale delivery beats unbounded memory growth.
	BackpressureLimit = 64 * 1024
)

// Coordinator runs the fixed-rate simulation loop. One tick body — world
// advance, bot intents, snapshot pushes — runs to completion before the
// next begins, so nothing mutates world state concurrently.
type Coordinator struct {
	world    *World
	bots     []*BotPilot // fixed after Run starts
	stop     chan struct{}
	stopOnce sync.Once
	skipped  uint64 // snapshots dropped to backpressure
}

// NewCoordinator wraps a world in a tick loop
func NewCoordinator(world *World) *Coordinator {
	return &Coordinator{
		world: world,
		stop:  make(chan struct{}),
	}
}

// AddBot registers a bot pilot updated every tick. Call before Run.
func (c *Coordinator) AddBot(b *BotPilot) {
	c.bots = append(c.bots, b)
}

// Run drives the loop until Stop. Ticker sends that pile up behind a slow
// tick are coalesced by the ticker itself; ticks never overlap.
func (c *Coordinator) Run() {
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()
	dt := TickDuration.Seconds()

	for {
		select {
		case <-ticker.C:
			c.RunTick(dt)
		case <-c.stop:
			return
		}
	}
}

// Stop terminates the loop
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// RunTick executes one tick body. A panic anywhere inside is caught here
// and logged; the next tick proceeds from the last good state.
func (c *Coordinator) RunTick(dt float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tick panic recovered: %v", r)
		}
	}()

	c.world.Advance(dt)

	now := time.Now()
	for _, b := range c.bots {
		b.Update(dt, now)
	}

	c.pushSnapshots()
}

// pushSnapshots serializes and sends one snapshot per attached viewer,
// skipping any whose outbound buffer is over the threshold. A skipped
// viewer keeps its queued events for the next delivered snapshot.
func (c *Coordinator) pushSnapshots() {
	for _, v := range c.world.Viewers() {
		if v.BufferedBytes() > BackpressureLimit {
			atomic.AddUint64(&c.skipped, 1)
			continue
		}
		snap, ok := c.world.SnapshotFor(v.PlayerID())
		if !ok {
			continue
		}
		data, err := msgpack.Marshal(snap)
		if err != nil {
			log.Printf("snapshot marshal: %v", err)
			continue
		}
		v.SendState(data)
	}
}

// SkippedSnapshots returns how many sends were dropped to backpressure
func (c *Coordinator) SkippedSnapshots() uint64 {
	return atomic.LoadUint64(&c.skipped)
}
