package main

import (
	"encoding/json"
	"log"
	"sync"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 256
)

// Hub manages connected clients, admission limits, and the glue between
// the world and the persistence collaborators. It also subscribes to the
// world's reactive hooks to feed the analytics writer.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	world     *World
	db        *DB
	auth      *Auth
	analytics *Analytics

	// Connection limiting (accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	// entity id -> persistent pilot id for authenticated players
	onlineMu sync.RWMutex
	online   map[string]int64
}

// NewHub creates a Hub bound to one world
func NewHub(world *World, db *DB) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		world:      world,
		db:         db,
		auth:       NewAuth(db),
		analytics:  NewAnalytics(db),
		ipConns:    make(map[string]int),
		online:     make(map[string]int64),
	}
	world.RegisterHook(h)
	return h
}

// CanAccept enforces the admission caps at upgrade time
func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

// TrackConnect counts a new connection
func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

// TrackDisconnect releases a connection slot
func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if client.playerID != "" {
				h.world.DetachViewer(client.playerID)
				if h.world.Leave(client.playerID) {
					h.analytics.Track(EvtLeave, client.authPilotID, client.playerID)
					h.Broadcast(Envelope{T: MsgEntityLeft, Data: EntityLeftMsg{ID: client.playerID}}, nil)
				}
				h.SetOffline(client.playerID)
			}
			h.analytics.SetConcurrentPilots(h.ClientCount())
		}
	}
}

// Broadcast marshals once and fans a JSON envelope out to every client
// except the excluded one
func (h *Hub) Broadcast(env Envelope, except *Client) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("broadcast marshal: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c == except {
			continue
		}
		c.enqueue(data)
	}
}

// SetOnline links an entity id to its persistent pilot id (0 for guests)
func (h *Hub) SetOnline(entityID string, pilotID int64) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	h.online[entityID] = pilotID
}

// SetOffline drops the entity's pilot mapping
func (h *Hub) SetOffline(entityID string) {
	h.onlineMu.Lock()
	defer h.onlineMu.Unlock()
	delete(h.online, entityID)
}

// PilotIDFor resolves an entity id to its persistent pilot id, 0 if guest
// or bot
func (h *Hub) PilotIDFor(entityID string) int64 {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	return h.online[entityID]
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}

// OnPvPHit implements EntityHook: feed the persistence collaborators.
// Called from inside the tick, so only non-blocking enqueues are allowed.
func (h *Hub) OnPvPHit(res PvPHitResult) {
	h.analytics.TrackHit(h.PilotIDFor(res.AttackerID), res.CoinsStolen)
}

// OnBankComplete implements EntityHook
func (h *Hub) OnBankComplete(entityID string, res BankResult) {
	h.analytics.TrackBank(h.PilotIDFor(entityID), res.Coins, res.XP)
}

// OnGrounded implements EntityHook
func (h *Hub) OnGrounded(entityID string, coinsLost int) {
	h.analytics.TrackGrounding(h.PilotIDFor(entityID))
}
