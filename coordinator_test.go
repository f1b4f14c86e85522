package main

import (
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func TestCoordinatorDeliversSnapshots(t *testing.T) {
	w, _ := newTestWorld()
	c := NewCoordinator(w)

	e, _ := w.Join("p1", "Ace")
	v := &stubViewer{id: e.ID}
	w.AttachViewer(v)

	c.RunTick(0.05)
	c.RunTick(0.05)

	if len(v.frames) != 2 {
		t.Fatalf("expected 2 snapshot frames, got %d", len(v.frames))
	}
	var snap StateSnapshot
	if err := msgpack.Unmarshal(v.frames[1], &snap); err != nil {
		t.Fatalf("snapshot frame not msgpack: %v", err)
	}
	if snap.Tick != 2 {
		t.Errorf("expected tick 2, got %d", snap.Tick)
	}
}

func TestCoordinatorSkipsBackpressuredViewer(t *testing.T) {
	w, _ := newTestWorld()
	c := NewCoordinator(w)

	slow, _ := w.Join("slow", "Slow")
	fast, _ := w.Join("fast", "Fast")
	slowV := &stubViewer{id: slow.ID, buffered: 2 * BackpressureLimit}
	fastV := &stubViewer{id: fast.ID}
	w.AttachViewer(slowV)
	w.AttachViewer(fastV)

	const ticks = 1000
	for i := 0; i < ticks; i++ {
		c.RunTick(0.05)
	}

	if len(slowV.frames) != 0 {
		t.Errorf("backpressured viewer received %d frames", len(slowV.frames))
	}
	if len(fastV.frames) != ticks {
		t.Errorf("healthy viewer received %d of %d frames", len(fastV.frames), ticks)
	}
	if got := c.SkippedSnapshots(); got != ticks {
		t.Errorf("expected %d skips recorded, got %d", ticks, got)
	}
	if w.Tick() != ticks {
		t.Errorf("a slow viewer must not stall the simulation, tick = %d", w.Tick())
	}
}

func TestCoordinatorSkippedViewerKeepsEvents(t *testing.T) {
	w, clock := newTestWorld()
	c := NewCoordinator(w)

	viewer, _ := w.Join("view", "Ace")
	talker, _ := w.Join("talk", "Mark")
	v := &stubViewer{id: viewer.ID, buffered: 2 * BackpressureLimit}
	w.AttachViewer(v)

	w.HandleUpdate(viewer.ID, Vec3{0, 150, 0}, 0, 0, 0, *clock)
	w.HandleUpdate(talker.ID, Vec3{30, 150, 0}, 0, 0, 0, *clock)
	c.RunTick(0.05)
	w.HandleChat(talker.ID, "ahoy")

	c.RunTick(0.05) // skipped: buffer over the limit
	v.buffered = 0
	c.RunTick(0.05)

	if len(v.frames) != 1 {
		t.Fatalf("expected exactly one delivered frame, got %d", len(v.frames))
	}
	var snap StateSnapshot
	if err := msgpack.Unmarshal(v.frames[0], &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Events) != 1 || snap.Events[0].T != EvChat {
		t.Errorf("queued event lost across a skipped tick: %+v", snap.Events)
	}
}

type panicMode struct{ fired bool }

func (m *panicMode) Name() string { return "panic" }
func (m *panicMode) OnTick(w *World, now time.Time) {
	if !m.fired {
		m.fired = true
		panic("mode blew up")
	}
}

func TestCoordinatorRecoversTickPanic(t *testing.T) {
	w, _ := newTestWorld()
	w.RegisterMode(&panicMode{})
	c := NewCoordinator(w)

	c.RunTick(0.05) // panics inside, recovered
	c.RunTick(0.05)

	if w.Tick() < 2 {
		t.Errorf("loop should survive a panicking tick, tick = %d", w.Tick())
	}
}

func TestCoordinatorStopIdempotent(t *testing.T) {
	c := NewCoordinator(NewWorld("w"))
	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()
	c.Stop()
	c.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}
