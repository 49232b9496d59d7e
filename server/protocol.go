package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin   = "join"
	MsgLeave  = "leave"
	MsgInput  = "input"
	MsgCreate = "create" // create session
	MsgList   = "list"   // list sessions
	MsgCheck  = "check"  // check if session exists
	MsgDefuse = "defuse" // defuse the bomb nearest the pilot
	MsgBest   = "best"   // best score for a level
)

// Server -> Client message types
const (
	MsgState    = "state"
	MsgWelcome  = "welcome"
	MsgSessions = "sessions"
	MsgJoined   = "joined"
	MsgCreated  = "created" // session created, client should navigate
	MsgError    = "error"
	MsgChecked  = "checked"
	MsgFx       = "fx"     // effects of one tick
	MsgPhase    = "phase"  // match phase change
	MsgResult   = "result" // level summary
	MsgBestOK   = "best_ok"
)

// Binary input frame: [0x01, flags]
const (
	binInput     = 0x01
	flagLeft     = 0x01
	flagRight    = 0x02
	flagFire     = 0x04
	flagDefuse   = 0x08
	binInputSize = 2
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string `json:"t"`
	Data any    `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// ClientInput is the pilot's held keys.
type ClientInput struct {
	Left  bool `json:"l"`
	Right bool `json:"r"`
	Fire  bool `json:"f"`
}

// JoinMsg is sent when a client wants to join a session
type JoinMsg struct {
	Name      string `json:"name"`
	SessionID string `json:"sid"`
}

// CreateMsg is sent when a client wants to create a session
type CreateMsg struct {
	Name        string `json:"name"`
	SessionName string `json:"sname"`
	Level       string `json:"level"`
}

// CheckMsg is sent by client to check if a session exists
type CheckMsg struct {
	SID string `json:"sid"`
}

// BestMsg asks for a level's stored best score
type BestMsg struct {
	Level string `json:"level"`
}

// EntityState is one entity in a snapshot.
type EntityState struct {
	ID    uint32  `msgpack:"id"`
	Kind  uint8   `msgpack:"k"`
	Owner uint8   `msgpack:"o"`
	X     float32 `msgpack:"x"`
	Y     float32 `msgpack:"y"`
	R     float32 `msgpack:"r"`
	W     float32 `msgpack:"w,omitempty"`
	H     float32 `msgpack:"h,omitempty"`
	HP    float32 `msgpack:"hp,omitempty"`
	State string  `msgpack:"s,omitempty"`
	AgeMS int32   `msgpack:"a"`
}

// HUDState is the status line of a snapshot.
type HUDState struct {
	Score      int     `msgpack:"sc"`
	Combo      int     `msgpack:"cb"`
	Lives      int     `msgpack:"l"`
	Health     float32 `msgpack:"hp"`
	Shield     float32 `msgpack:"sh"`
	Weapon     string  `msgpack:"wp"`
	Wave       int     `msgpack:"wv"`
	TotalWaves int     `msgpack:"tw"`
	Stage      string  `msgpack:"st"`
	BossPhase  int     `msgpack:"bp"`
	BossHealth float32 `msgpack:"bh"`
	Best       int     `msgpack:"best"`
}

// GameState is the binary snapshot broadcast every few ticks
type GameState struct {
	Tick     uint64        `msgpack:"tick"`
	Phase    string        `msgpack:"ph"`
	HUD      HUDState      `msgpack:"hud"`
	Entities []EntityState `msgpack:"e"`
}

// FxState is one forwarded effect
type FxState struct {
	Kind   string  `json:"k"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Amount float64 `json:"a,omitempty"`
	Radius float64 `json:"r,omitempty"`
	Name   string  `json:"n,omitempty"`
	Value  int     `json:"v,omitempty"`
}

// FxMsg carries every effect of one tick
type FxMsg struct {
	Tick    uint64    `json:"tick"`
	Effects []FxState `json:"fx"`
}

// WelcomeMsg is sent to a client when it joins
type WelcomeMsg struct {
	ID    string `json:"id"`
	Pilot bool   `json:"pilot"`
	Level string `json:"level"`
	Best  int    `json:"best"`
}

// PhaseMsg announces a match phase change
type PhaseMsg struct {
	Phase string `json:"phase"`
}

// ResultMsg is sent when the level ends
type ResultMsg struct {
	Score        int      `json:"score"`
	Stars        int      `json:"stars"`
	Accuracy     float64  `json:"accuracy"`
	Waves        int      `json:"waves"`
	Won          bool     `json:"won"`
	NewBest      bool     `json:"newBest"`
	Achievements []string `json:"achievements,omitempty"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Level   string `json:"level"`
	Phase   string `json:"phase"`
	Viewers int    `json:"viewers"`
}

// CheckedMsg is the response to a session check
type CheckedMsg struct {
	SID     string `json:"sid"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Viewers int    `json:"viewers,omitempty"`
}

// BestOKMsg answers BestMsg
type BestOKMsg struct {
	Level string `json:"level"`
	Score int    `json:"score"`
	Plays int    `json:"plays"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}
