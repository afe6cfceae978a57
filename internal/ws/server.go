package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pizarra/whiteboard/internal/canvas"
	"github.com/pizarra/whiteboard/internal/config"
	"github.com/pizarra/whiteboard/internal/health"
	"github.com/pizarra/whiteboard/internal/registry"
)

type Server struct {
	cfg            *config.Config
	registry       *registry.Registry
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	startedAt      time.Time
}

func NewServer(cfg *config.Config, reg *registry.Registry, broadcaster *Broadcaster) *Server {
	s := &Server{
		cfg:            cfg,
		registry:       reg,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		startedAt:      time.Now(),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/status", s.handleStatus)
}

// Run drives the periodic session sweep until the context is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Board.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.registry.Sweep(now)
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	// Identity is resolved exactly once, here. Unresolvable origins are
	// refused before any session state exists for them.
	key, err := registry.Identity(clientAddr(r), r.UserAgent())
	if err != nil {
		log.Printf("ws: refusing connection from %q: %v", r.RemoteAddr, err)
		http.Error(w, "unresolvable client identity", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	c := s.broadcaster.add(uuid.NewString(), key, conn)
	view := s.registry.Resolve(key, c)
	log.Printf("ws: connection %s attached to session %s (new=%v creator=%v)", c.id, view.SessionID, view.IsNew, view.Creator)

	// Replay current history to the newcomer before any live event.
	c.enqueue(Envelope{Type: MsgHistory, Payload: s.historyPayload(key)})
	if view.Creator {
		c.Grant()
	}

	go s.readLoop(c, view)
}

func (s *Server) readLoop(c *client, view registry.View) {
	defer func() {
		s.broadcaster.remove(c)
		s.registry.Detach(c.id)
		log.Printf("ws: connection %s disconnected", c.id)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		// A connection displaced by a reconnect may still push a few
		// frames before it notices; those are ignored, not applied.
		if !s.registry.Attached(c.id) {
			continue
		}

		switch msg.Type {
		case MsgJoin:
			s.handleJoin(c, view)
		case MsgDraw:
			s.handleDraw(c, msg.Payload)
		case MsgClear:
			s.handleClear(c)
		case MsgRedraw:
			c.enqueue(Envelope{Type: MsgHistory, Payload: s.historyPayload(c.key)})
		case MsgPing:
			s.registry.Touch(c.key)
			c.enqueue(Envelope{Type: MsgPong})
		}
	}
}

func (s *Server) handleJoin(c *client, view registry.View) {
	s.registry.Touch(c.key)
	c.enqueue(Envelope{Type: MsgSession, Payload: SessionPayload{
		SessionID:  view.SessionID,
		Exists:     !view.IsNew,
		HasHistory: s.broadcaster.EventCount() > 0,
	}})
}

func (s *Server) handleDraw(c *client, payload json.RawMessage) {
	var ev canvas.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.enqueue(Envelope{Type: MsgAck, Payload: AckPayload{Status: AckError, Reason: "malformed event"}})
		return
	}

	// Clears submitted through the draw channel hit the same authority
	// gate as explicit clear requests.
	if ev.Kind == canvas.KindClear {
		s.handleClear(c)
		return
	}

	s.registry.Touch(c.key)
	ev.Session = c.key
	finalized := s.broadcaster.Publish(ev, c.id)
	c.enqueue(Envelope{Type: MsgAck, Payload: AckPayload{Status: AckOK, EventID: finalized.ID}})
}

func (s *Server) handleClear(c *client) {
	if !s.registry.IsCreator(c.key) {
		log.Printf("ws: unauthorized clear attempt from connection %s", c.id)
		c.enqueue(Envelope{Type: MsgAck, Payload: AckPayload{Status: AckError, Reason: "clear requires creator authority"}})
		return
	}

	s.registry.Touch(c.key)
	ev := canvas.Event{Kind: canvas.KindClear, Session: c.key}
	// Everyone receives the clear, the author included: the log truncation
	// and every raster wipe come from the same broadcast.
	finalized := s.broadcaster.Publish(ev, "")
	c.enqueue(Envelope{Type: MsgAck, Payload: AckPayload{Status: AckOK, EventID: finalized.ID}})
	log.Printf("ws: board cleared by session holder %s", c.id)
}

func (s *Server) historyPayload(key string) HistoryPayload {
	return HistoryPayload{
		Events:  s.broadcaster.History(),
		Creator: s.registry.IsCreator(key),
		Width:   s.cfg.Canvas.Width,
		Height:  s.cfg.Canvas.Height,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := health.Snapshot(s.startedAt, s.registry.Len(), s.broadcaster.ClientCount(), s.broadcaster.EventCount())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// clientAddr prefers the X-Forwarded-For chain so identities survive a
// reverse proxy, falling back to the socket address.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	return r.RemoteAddr
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}
	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	err := http.ListenAndServe(addr, mux)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
