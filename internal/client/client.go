package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/pizarra/whiteboard/internal/canvas"
	"github.com/pizarra/whiteboard/internal/ws"
)

// ErrReplaced is returned by Run when the server displaced this connection
// with a newer one from the same identity. The caller should not reconnect
// automatically; the newer connection owns the session now.
var ErrReplaced = errors.New("client: session replaced by a newer connection")

const (
	dialMaxElapsed = 2 * time.Minute
	writeTimeout   = 10 * time.Second
)

// Handlers receive server pushes. Nil fields are skipped. All handlers run
// on the Run goroutine, preserving server broadcast order.
type Handlers struct {
	Session  func(ws.SessionPayload)
	History  func(ws.HistoryPayload)
	Event    func(canvas.Event)
	Creator  func()
	Ack      func(ws.AckPayload)
	Replaced func(reason string)
}

// Client is the WebSocket transport side of the reconciliation engine.
type Client struct {
	url      string
	handlers Handlers

	mu      sync.Mutex
	writeMu sync.Mutex // serializes all socket writes
	conn    *websocket.Conn
}

func New(url string, handlers Handlers) *Client {
	return &Client{url: url, handlers: handlers}
}

// Connect dials the server with exponential backoff and announces the join.
func (c *Client) Connect(ctx context.Context) error {
	var conn *websocket.Conn
	op := func() error {
		dialed, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Printf("client: dial %s: %v", c.url, err)
			return err
		}
		conn = dialed
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = dialMaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("connecting to %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return c.write(ws.Message{Type: ws.MsgJoin})
}

// Run reads server pushes until the connection drops, the context is
// cancelled, or the session is replaced.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("client: not connected")
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading from server: %w", err)
		}

		var env struct {
			Type    ws.MessageType  `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if done, err := c.dispatch(env.Type, env.Payload); done {
			return err
		}
	}
}

func (c *Client) dispatch(t ws.MessageType, payload json.RawMessage) (bool, error) {
	switch t {
	case ws.MsgSession:
		var p ws.SessionPayload
		if json.Unmarshal(payload, &p) == nil && c.handlers.Session != nil {
			c.handlers.Session(p)
		}
	case ws.MsgHistory:
		var p ws.HistoryPayload
		if json.Unmarshal(payload, &p) == nil && c.handlers.History != nil {
			c.handlers.History(p)
		}
	case ws.MsgEvent:
		var ev canvas.Event
		if json.Unmarshal(payload, &ev) == nil && c.handlers.Event != nil {
			c.handlers.Event(ev)
		}
	case ws.MsgCreator:
		if c.handlers.Creator != nil {
			c.handlers.Creator()
		}
	case ws.MsgAck:
		var p ws.AckPayload
		if json.Unmarshal(payload, &p) == nil && c.handlers.Ack != nil {
			c.handlers.Ack(p)
		}
	case ws.MsgReplaced:
		var p ws.ReplacedPayload
		_ = json.Unmarshal(payload, &p)
		if c.handlers.Replaced != nil {
			c.handlers.Replaced(p.Reason)
		}
		return true, ErrReplaced
	case ws.MsgDisconnected:
		var p ws.DisconnectedPayload
		_ = json.Unmarshal(payload, &p)
		return true, fmt.Errorf("client: disconnected by server: %s", p.Reason)
	}
	return false, nil
}

// Draw submits one drawing event.
func (c *Client) Draw(ev canvas.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.write(ws.Message{Type: ws.MsgDraw, Payload: raw})
}

// RequestClear asks the server to wipe the board. The server answers with a
// negative ack unless this session holds creator authority.
func (c *Client) RequestClear() error {
	return c.write(ws.Message{Type: ws.MsgClear})
}

// RequestRedraw asks for a fresh history snapshot, sent to this caller only.
func (c *Client) RequestRedraw() error {
	return c.write(ws.Message{Type: ws.MsgRedraw})
}

// Ping refreshes the session's activity stamp.
func (c *Client) Ping() error {
	return c.write(ws.Message{Type: ws.MsgPing})
}

func (c *Client) write(msg ws.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("client: not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

// Close hangs up.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
