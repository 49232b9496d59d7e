package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 80
	maxNameLen        = 16
	maxSessionNameLen = 30
)

// outbound is one queued websocket frame
type outbound struct {
	binary bool
	data   []byte
}

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan outbound
	viewerID   string
	sessionID  string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	log        *slog.Logger
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan outbound, sendBufSize),
		remoteAddr: remoteAddr,
		log:        hub.log.With("remote", remoteAddr),
	}
}

// ReadPump reads messages from the WebSocket connection
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
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws read error", "err", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn("rate limit exceeded, disconnecting")
			break
		}

		if msgType == websocket.BinaryMessage && len(message) == binInputSize && message[0] == binInput {
			c.handleBinaryInput(message)
		} else {
			c.handleMessage(message)
		}
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind := websocket.TextMessage
			if msg.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, msg.data); err != nil {
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

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal error", "err", err)
		return
	}
	c.enqueue(outbound{data: data})
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
func (c *Client) SendBinary(data []byte) {
	c.enqueue(outbound{binary: true, data: data})
}

// enqueue drops the frame when the client is too slow or already gone.
func (c *Client) enqueue(msg outbound) {
	defer func() { recover() }() // send on closed channel after unregister
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("unmarshal error", "err", err)
		return
	}

	switch env.T {
	case MsgList:
		c.handleList()
	case MsgCreate:
		c.handleCreate(env.D)
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgDefuse:
		c.handleDefuse()
	case MsgLeave:
		c.handleLeave()
	case MsgCheck:
		c.handleCheck(env.D)
	case MsgBest:
		c.handleBest(env.D)
	}
}

func (c *Client) handleList() {
	c.SendJSON(Envelope{T: MsgSessions, Data: c.hub.sessions.ListSessions()})
}

func (c *Client) handleCreate(data json.RawMessage) {
	var msg CreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sname := msg.SessionName
	if sname == "" {
		sname = "Invasion"
	}
	sname = truncate(sname, maxSessionNameLen)

	sess, err := c.hub.sessions.CreateSession(c.hub.context(), sname, msg.Level)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooManySessions), errors.Is(err, ErrUnknownLevel):
			c.sendError(err.Error())
		default:
			c.log.Error("create session failed", "err", err)
			c.sendError("could not start level")
		}
		return
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"sid": sess.ID}})
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	name := msg.Name
	if name == "" {
		name = "Pilot"
	}
	name = truncate(name, maxNameLen)

	if c.sessionID != "" {
		c.handleLeave()
	}
	sess := c.hub.sessions.GetSession(msg.SessionID)
	if sess == nil {
		c.sendError("session not found")
		return
	}

	id, pilot, err := sess.Game.AddViewer(name, c)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.viewerID = id
	c.sessionID = sess.ID

	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{"sid": sess.ID}})
	c.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{ID: id, Pilot: pilot, Level: sess.Level, Best: sess.Game.Best()}})
}

// handleBinaryInput decodes the compact [0x01, flags] input frame
func (c *Client) handleBinaryInput(msg []byte) {
	if c.sessionID == "" || c.viewerID == "" {
		return
	}
	flags := msg[1]
	sess := c.hub.sessions.GetSession(c.sessionID)
	if sess == nil {
		return
	}
	sess.Game.HandleInput(c.viewerID, ClientInput{
		Left:  flags&flagLeft != 0,
		Right: flags&flagRight != 0,
		Fire:  flags&flagFire != 0,
	})
	if flags&flagDefuse != 0 {
		sess.Game.RequestDefuse(c.viewerID)
	}
}

func (c *Client) handleInput(data json.RawMessage) {
	if c.sessionID == "" || c.viewerID == "" {
		return
	}
	var input ClientInput
	if err := json.Unmarshal(data, &input); err != nil {
		return
	}
	sess := c.hub.sessions.GetSession(c.sessionID)
	if sess == nil {
		return
	}
	sess.Game.HandleInput(c.viewerID, input)
}

func (c *Client) handleDefuse() {
	if c.sessionID == "" || c.viewerID == "" {
		return
	}
	if sess := c.hub.sessions.GetSession(c.sessionID); sess != nil {
		sess.Game.RequestDefuse(c.viewerID)
	}
}

func (c *Client) handleCheck(data json.RawMessage) {
	var msg CheckMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	sess := c.hub.sessions.GetSession(msg.SID)
	if sess == nil {
		c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{SID: msg.SID, Exists: false}})
		return
	}
	c.SendJSON(Envelope{T: MsgChecked, Data: CheckedMsg{
		SID:     msg.SID,
		Exists:  true,
		Name:    sess.Name,
		Viewers: sess.Game.ViewerCount(),
	}})
}

func (c *Client) handleBest(data json.RawMessage) {
	var msg BestMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Level == "" {
		msg.Level = DefaultLevel
	}
	res := BestOKMsg{Level: msg.Level}
	if c.hub.db != nil {
		best, plays, err := c.hub.db.BestScore(msg.Level)
		if err != nil {
			c.log.Error("best score lookup failed", "err", err)
			c.sendError("best score unavailable")
			return
		}
		res.Score, res.Plays = best, plays
	}
	c.SendJSON(Envelope{T: MsgBestOK, Data: res})
}

func (c *Client) handleLeave() {
	if c.sessionID == "" {
		return
	}
	c.hub.sessions.RemoveViewer(c.sessionID, c.viewerID)
	c.sessionID = ""
	c.viewerID = ""
}
