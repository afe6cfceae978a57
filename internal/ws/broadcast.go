package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pizarra/whiteboard/internal/canvas"
)

// client is one live connection. Outbound frames go through the buffered
// send channel; writePump is the only goroutine that writes to the socket.
type client struct {
	id        string
	key       string // resolved identity key
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id, key string, conn *websocket.Conn, buffer int) *client {
	c := &client{
		id:   id,
		key:  key,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			// Flush whatever is already queued, then hang up.
			for {
				select {
				case msg := <-c.send:
					if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// enqueue drops the frame if the client's queue is full rather than blocking
// the caller. A peer that lost frames recovers with a redraw request.
func (c *client) enqueue(env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("ws: marshal %s: %v", env.Type, err)
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) ID() string { return c.id }

// Grant implements registry.Conn.
func (c *client) Grant() {
	c.enqueue(Envelope{Type: MsgCreator})
}

// Replace implements registry.Conn: the connection learns it was superseded,
// then the send channel is closed so writePump flushes and hangs up.
func (c *client) Replace() {
	c.enqueue(Envelope{Type: MsgReplaced, Payload: ReplacedPayload{Reason: "new connection from the same identity"}})
	c.shutdown()
}

// Kick implements registry.Conn.
func (c *client) Kick(reason string) {
	c.enqueue(Envelope{Type: MsgDisconnected, Payload: DisconnectedPayload{Reason: reason}})
	c.shutdown()
}

func (c *client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Broadcaster fans drawing events out to every connection. The stream mutex
// makes log-append and fan-out a single step: the order peers receive events
// is always the order the log recorded them.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	stream  sync.Mutex
	history *canvas.Log
	buffer  int
}

func NewBroadcaster(history *canvas.Log, buffer int) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]bool),
		history: history,
		buffer:  buffer,
	}
}

func (b *Broadcaster) add(id, key string, conn *websocket.Conn) *client {
	c := newClient(id, key, conn, b.buffer)
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	return c
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.shutdown()
	}
	b.mu.Unlock()
}

// Publish appends the event to the history and broadcasts the finalized
// event. Connections matching excludeID (the author, who already drew
// locally) are skipped. Send failure to one peer never aborts the fan-out
// and is never rolled back from the log.
func (b *Broadcaster) Publish(ev canvas.Event, excludeID string) canvas.Event {
	b.stream.Lock()
	defer b.stream.Unlock()

	finalized := b.history.Append(ev)

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	env := Envelope{Type: MsgEvent, Payload: finalized}
	for _, c := range clients {
		if c.id == excludeID {
			continue
		}
		if !c.enqueue(env) {
			log.Printf("ws: client %s cannot keep up, disconnecting", c.id)
			b.remove(c)
		}
	}
	return finalized
}

// History returns the current replay snapshot.
func (b *Broadcaster) History() []canvas.Event {
	return b.history.Snapshot()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) EventCount() int {
	return b.history.Len()
}
