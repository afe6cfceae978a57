package ws

import (
	"encoding/json"

	"github.com/pizarra/whiteboard/internal/canvas"
)

type MessageType string

// Client -> server.
const (
	MsgJoin   MessageType = "join"
	MsgDraw   MessageType = "draw"
	MsgClear  MessageType = "clear"
	MsgRedraw MessageType = "redraw"
	MsgPing   MessageType = "ping"
)

// Server -> client.
const (
	MsgSession      MessageType = "session"
	MsgHistory      MessageType = "history"
	MsgEvent        MessageType = "event"
	MsgCreator      MessageType = "creator"
	MsgReplaced     MessageType = "replaced"
	MsgAck          MessageType = "ack"
	MsgPong         MessageType = "pong"
	MsgDisconnected MessageType = "disconnected"
)

// Message is an inbound frame; the payload is decoded per type.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is an outbound frame.
type Envelope struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type JoinPayload struct {
	// SessionID is the client's remembered session, if any. Identity is
	// resolved from the connection itself; the hint is informational.
	SessionID string `json:"sessionId,omitempty"`
}

type SessionPayload struct {
	SessionID  string `json:"sessionId"`
	Exists     bool   `json:"exists"`
	HasHistory bool   `json:"hasHistory"`
}

type HistoryPayload struct {
	Events  []canvas.Event `json:"events"`
	Creator bool           `json:"creator"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
}

const (
	AckOK    = "ok"
	AckError = "error"
)

type AckPayload struct {
	Status  string `json:"status"`
	EventID string `json:"eventId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type ReplacedPayload struct {
	Reason string `json:"reason"`
}

type DisconnectedPayload struct {
	Reason string `json:"reason"`
}
