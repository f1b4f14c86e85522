package main

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
	chatInterval      = time.Second // 1 chat line per second per connection
)

// Client represents one WebSocket connection. It implements Viewer: state
// frames are pushed by the coordinator, and pending tracks outbound bytes
// still sitting in the send buffer so the coordinator can apply the
// backpressure skip.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	pending    int64 // atomic: bytes queued but not yet written
	playerID   string
	remoteAddr string

	msgCount   int
	msgResetAt time.Time
	lastChatAt time.Time

	// Auth state (session bootstrap collaborator)
	authPilotID  int64  // 0 = guest
	authUsername string // "" = guest
}

// NewClient creates a Client for an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// PlayerID implements Viewer
func (c *Client) PlayerID() string { return c.playerID }

// BufferedBytes implements Viewer: outbound bytes not yet flushed
func (c *Client) BufferedBytes() int {
	return int(atomic.LoadInt64(&c.pending))
}

// ReadPump reads and routes messages until the connection dies
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump flushes the send buffer to the socket and keeps pings going
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			atomic.AddInt64(&c.pending, -int64(len(message)))
			// 0xFF marker distinguishes binary state frames from JSON text
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON envelope to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.enqueue(data)
}

// SendState implements Viewer: pushes one msgpack state frame
func (c *Client) SendState(data []byte) {
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	c.enqueue(msg)
}

// enqueue adds a message to the send buffer, dropping it if the consumer
// is too slow to keep the buffer moving. Never blocks.
func (c *Client) enqueue(msg []byte) {
	defer func() { recover() }()
	select {
	case c.send <- msg:
		atomic.AddInt64(&c.pending, int64(len(msg)))
	default:
	}
}

// handleMessage routes one incoming envelope (single-pass decode)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	switch env.T {
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgUpdate:
		c.handleUpdate(env.D)
	case MsgLaunch:
		c.handleLaunch(env.D)
	case MsgBankStart:
		if c.playerID != "" {
			c.hub.world.HandleBankStart(c.playerID)
		}
	case MsgBankComplete:
		if c.playerID != "" {
			c.hub.world.HandleBankComplete(c.playerID)
		}
	case MsgBankCancel:
		if c.playerID != "" {
			c.hub.world.HandleBankCancel(c.playerID)
		}
	case MsgChat:
		c.handleChat(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgProfile:
		c.handleProfile()
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.playerID != "" {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "already joined"}})
		return
	}
	if msg.WorldID != c.hub.world.ID {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "unknown world"}})
		return
	}

	name := msg.Username
	if name == "" {
		name = "Pilot"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	entity, err := c.hub.world.Join(msg.PlayerID, name)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		c.conn.Close()
		return
	}
	c.playerID = entity.ID
	c.hub.world.AttachViewer(c)
	c.hub.SetOnline(c.playerID, c.authPilotID)
	c.hub.analytics.Track(EvtJoin, c.authPilotID, entity.ID)

	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
		PlayerID: entity.ID,
		WorldID:  c.hub.world.ID,
		Spawn:    entity.Pos,
		Tick:     c.hub.world.Tick(),
		Entities: c.hub.world.FullSnapshot(),
	}})
	c.hub.Broadcast(Envelope{T: MsgEntityJoined, Data: EntityJoinedMsg{ID: entity.ID, Name: entity.Name}}, c)
}

func (c *Client) handleUpdate(data json.RawMessage) {
	if c.playerID == "" {
		return
	}
	var msg UpdateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	// Invalid positions and stunned pilots are rejected inside the world;
	// both are expected conditions and stay silent.
	c.hub.world.HandleUpdate(c.playerID, msg.Pos, msg.Yaw, msg.Pitch, msg.Speed, time.UnixMilli(msg.TS))
}

func (c *Client) handleLaunch(data json.RawMessage) {
	if c.playerID == "" {
		return
	}
	var msg LaunchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.world.HandleLaunch(c.playerID, msg.Vel)
}

func (c *Client) handleChat(data json.RawMessage) {
	if c.playerID == "" {
		return
	}
	var msg ChatMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Msg == "" || utf8.RuneCountInString(msg.Msg) > MaxChatLen {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "message too long"}})
		return
	}
	now := time.Now()
	if now.Sub(c.lastChatAt) < chatInterval {
		return
	}
	c.lastChatAt = now
	c.hub.world.HandleChat(c.playerID, msg.Msg)
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPilotID = id
	c.authUsername = msg.Username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: token, Username: msg.Username, PilotID: id}})
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPilotID = id
	c.authUsername = msg.Username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: token, Username: msg.Username, PilotID: id}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "invalid token"}})
		return
	}
	c.authPilotID = id
	c.authUsername = username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: msg.Token, Username: username, PilotID: id}})
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPilotID == 0 {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "not authenticated"}})
		return
	}
	prog, err := c.hub.db.GetProgress(c.authPilotID)
	if err != nil || prog == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "profile not found"}})
		return
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username:      c.authUsername,
		XP:            prog.XP,
		Level:         prog.Level,
		CoinsBanked:   prog.CoinsBanked,
		CoinsStolen:   prog.CoinsStolen,
		TimesGrounded: prog.TimesGrounded,
	}})
}
