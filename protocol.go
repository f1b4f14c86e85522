package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin         = "join"
	MsgUpdate       = "update"
	MsgLaunch       = "launch"
	MsgBankStart    = "bank_start"
	MsgBankComplete = "bank_complete"
	MsgBankCancel   = "bank_cancel"
	MsgChat         = "chat"
	MsgRegister     = "register"
	MsgLogin        = "login"
	MsgAuth         = "auth"
	MsgProfile      = "profile"
)

// Server -> Client message types
const (
	MsgWelcome      = "welcome"
	MsgState        = "state"
	MsgEntityJoined = "entity_joined"
	MsgEntityLeft   = "entity_left"
	MsgError        = "error"
	MsgAuthOK       = "auth_ok"
	MsgProfileData  = "profile_data"
)

// Event types carried inside state snapshots
const (
	EvPvPHit   = "pvp_hit"
	EvBanked   = "banked"
	EvGrounded = "grounded"
	EvBounty   = "bounty"
	EvChat     = "chat"
)

const MaxChatLen = 150

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids
// double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// Event is one entry in a snapshot's event list
type Event struct {
	T string      `json:"t" msgpack:"t"`
	D interface{} `json:"d,omitempty" msgpack:"d,omitempty"`
}

// JoinMsg requests entry into a world
type JoinMsg struct {
	PlayerID string `json:"pid"`
	Username string `json:"name"`
	WorldID  string `json:"wid"`
}

// UpdateMsg is the client movement intent
type UpdateMsg struct {
	Pos   Vec3    `json:"pos"`
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Speed float64 `json:"spd"`
	TS    int64   `json:"ts"` // client clock, unix ms
}

// LaunchMsg requests a projectile launch
type LaunchMsg struct {
	Vel Vec3 `json:"vel"`
}

// ChatMsg carries one chat line
type ChatMsg struct {
	Msg string `json:"msg"`
}

// WelcomeMsg is sent once after a successful join
type WelcomeMsg struct {
	PlayerID string           `json:"pid"`
	WorldID  string           `json:"wid"`
	Spawn    Vec3             `json:"spawn"`
	Tick     uint64           `json:"tick"`
	Entities []MidEntityState `json:"entities"`
}

// EntityJoinedMsg announces a new entity to everyone
type EntityJoinedMsg struct {
	ID   string `json:"id"`
	Name string `json:"n"`
}

// EntityLeftMsg announces a departure
type EntityLeftMsg struct {
	ID string `json:"id"`
}

// ErrorMsg sends a user-visible error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// ChatEvent is the fanned-out form of a chat line
type ChatEvent struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"n" msgpack:"n"`
	Msg  string `json:"msg" msgpack:"msg"`
}

// GroundedEvent notifies a pilot of a grounding and its coin penalty
type GroundedEvent struct {
	ID        string `json:"id" msgpack:"id"`
	CoinsLost int    `json:"lost" msgpack:"lost"`
}

// BountyEvent announces a mode-manager coin award
type BountyEvent struct {
	ID    string `json:"id" msgpack:"id"`
	Name  string `json:"n" msgpack:"n"`
	Coins int    `json:"coins" msgpack:"coins"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// LoginMsg authenticates an existing account
type LoginMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

// AuthMsg resumes a session from a token
type AuthMsg struct {
	Token string `json:"tok"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"tok"`
	Username string `json:"u"`
	PilotID  int64  `json:"pilot"`
}

// ProfileDataMsg returns persistent progression for an authenticated pilot
type ProfileDataMsg struct {
	Username      string `json:"u"`
	XP            int    `json:"xp"`
	Level         int    `json:"lvl"`
	CoinsBanked   int    `json:"banked"`
	CoinsStolen   int    `json:"stolen"`
	TimesGrounded int    `json:"grounded"`
}
