package main

import (
	"encoding/json"
	"strings"
	"testing"
)

// chatClient builds a Client wired to a world but no socket; handleChat
// only touches the world and the send buffer.
func chatClient(w *World, pid string) *Client {
	return &Client{
		hub:      &Hub{world: w},
		send:     make(chan []byte, 8),
		playerID: pid,
	}
}

func TestChatLimitCountsRunes(t *testing.T) {
	w, clock := newTestWorld()
	e := joinReady(t, w, clock, "p1", "Ace")
	w.AttachViewer(&stubViewer{id: e.ID})

	// 150 runes but 300 bytes: must pass the limit
	long := strings.Repeat("é", MaxChatLen)
	data, _ := json.Marshal(ChatMsg{Msg: long})
	chatClient(w, e.ID).handleChat(data)

	snap, _ := w.SnapshotFor(e.ID)
	if len(snap.Events) != 1 || snap.Events[0].T != EvChat {
		t.Fatalf("multibyte message within the limit was dropped: %+v", snap.Events)
	}

	// one rune over: rejected
	data, _ = json.Marshal(ChatMsg{Msg: strings.Repeat("é", MaxChatLen+1)})
	chatClient(w, e.ID).handleChat(data)

	snap, _ = w.SnapshotFor(e.ID)
	if len(snap.Events) != 0 {
		t.Errorf("oversized message reached the world: %+v", snap.Events)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	w, clock := newTestWorld()
	e := joinReady(t, w, clock, "p1", "Ace")
	w.AttachViewer(&stubViewer{id: e.ID})

	data, _ := json.Marshal(ChatMsg{Msg: ""})
	chatClient(w, e.ID).handleChat(data)

	snap, _ := w.SnapshotFor(e.ID)
	if len(snap.Events) != 0 {
		t.Errorf("empty message reached the world: %+v", snap.Events)
	}
}
