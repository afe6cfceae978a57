package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBadIdentity means the connection's network origin could not be parsed.
// Such connections are refused before any session exists for them.
var ErrBadIdentity = errors.New("registry: unresolvable network identity")

// Conn is the registry's handle on one live transport connection. All three
// signals enqueue onto the connection's buffered outbound queue; the registry
// never blocks on network I/O while holding its lock.
type Conn interface {
	ID() string
	// Grant tells the connection's client it now holds creator authority.
	Grant()
	// Replace tells the connection it has been superseded by a newer
	// connection from the same identity and should disconnect.
	Replace()
	// Kick force-disconnects the connection with a reason.
	Kick(reason string)
}

// Session is one participant's presence across reconnects.
type Session struct {
	ID           string
	Key          string // identity key (origin + agent hash)
	Conns        map[string]Conn
	LastActivity time.Time
	EmptySince   time.Time // zero while at least one conn is attached
	Creator      bool
	joined       uint64 // monotonic join order, used for deterministic election
}

// View is what Resolve reports back to the transport layer.
type View struct {
	SessionID   string
	IsNew       bool
	Creator     bool
	WasReplaced bool // an older connection was displaced by this attach
}

// Registry owns the session table and the creator authority. One mutex
// serializes every mutation, including the periodic sweep, so attach,
// detach, election and expiry never interleave partially.
type Registry struct {
	mu                sync.Mutex
	sessions          map[string]*Session // identity key -> session
	byConn            map[string]string   // conn id -> identity key
	joinSeq           uint64
	inactivityTimeout time.Duration
	detachGrace       time.Duration
}

func New(inactivityTimeout, detachGrace time.Duration) *Registry {
	return &Registry{
		sessions:          make(map[string]*Session),
		byConn:            make(map[string]string),
		inactivityTimeout: inactivityTimeout,
		detachGrace:       detachGrace,
	}
}

// Identity derives the stable participant key from the connection's network
// origin and client-agent string. The same device reconnecting maps to the
// same key; distinct devices behind distinct origins do not collide.
func Identity(remoteAddr, userAgent string) (string, error) {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimSpace(host)
	if host == "" || net.ParseIP(host) == nil {
		return "", ErrBadIdentity
	}
	sum := sha256.Sum256([]byte(host + "|" + userAgent))
	return hex.EncodeToString(sum[:16]), nil
}

// Resolve attaches conn to the session for key, creating the session if this
// identity has never been seen. If an older connection is still attached
// under the same identity it is signalled with Replace and detached first;
// the registry does not wait for it to actually close.
func (r *Registry) Resolve(key string, conn Conn) View {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	s, ok := r.sessions[key]
	if !ok {
		r.joinSeq++
		s = &Session{
			ID:           uuid.NewString(),
			Key:          key,
			Conns:        make(map[string]Conn),
			LastActivity: now,
			joined:       r.joinSeq,
		}
		r.sessions[key] = s
	}

	replaced := false
	for id, old := range s.Conns {
		if id == conn.ID() {
			continue
		}
		old.Replace()
		delete(s.Conns, id)
		delete(r.byConn, id)
		replaced = true
	}

	s.Conns[conn.ID()] = conn
	s.EmptySince = time.Time{}
	s.LastActivity = now
	r.byConn[conn.ID()] = key

	r.electLocked()

	return View{
		SessionID:   s.ID,
		IsNew:       !ok,
		Creator:     s.Creator,
		WasReplaced: replaced,
	}
}

// Touch refreshes the session's activity stamp. Called on every inbound
// drawing or keep-alive message.
func (r *Registry) Touch(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		s.LastActivity = time.Now()
	}
}

// Detach removes the connection from its session. An emptied session is not
// deleted immediately: it survives until the detach grace elapses so a quick
// reconnect keeps its identity (and creator role, via re-election order).
func (r *Registry) Detach(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)

	s := r.sessions[key]
	if s == nil {
		return
	}
	delete(s.Conns, connID)
	if len(s.Conns) == 0 {
		s.EmptySince = time.Now()
	}

	// Re-elect before releasing the lock: a non-empty registry must never
	// be observable without a creator.
	r.electLocked()
}

// Sweep removes sessions idle past the inactivity timeout (kicking any
// connections still attached) and empty sessions past the detach grace.
// Runs under the same mutex as live traffic.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, s := range r.sessions {
		idle := now.Sub(s.LastActivity) > r.inactivityTimeout
		abandoned := len(s.Conns) == 0 && !s.EmptySince.IsZero() && now.Sub(s.EmptySince) > r.detachGrace
		if !idle && !abandoned {
			continue
		}
		for id, c := range s.Conns {
			c.Kick("session expired")
			delete(r.byConn, id)
		}
		delete(r.sessions, key)
		log.Printf("registry: removed session %s (idle=%v abandoned=%v)", s.ID, idle, abandoned)
	}

	r.electLocked()
}

// electLocked enforces the creator invariant: exactly one live session holds
// authority whenever any session with an attached connection exists, and a
// handover is a single step with no observable creator-less gap. The holder
// is chosen deterministically by earliest join order. Caller must hold r.mu.
func (r *Registry) electLocked() {
	var holder *Session
	var live *Session // earliest-joined session with an attached connection
	var any *Session  // earliest-joined session overall
	for _, s := range r.sessions {
		if s.Creator {
			holder = s
		}
		if any == nil || s.joined < any.joined {
			any = s
		}
		if len(s.Conns) > 0 && (live == nil || s.joined < live.joined) {
			live = s
		}
	}

	// A holder with live connections keeps authority. A holder whose last
	// connection just dropped also keeps it while no live session exists
	// to take over: a reconnect within the detach grace inherits the role.
	if holder != nil && (len(holder.Conns) > 0 || live == nil) {
		return
	}

	candidate := live
	if candidate == nil {
		candidate = any
	}
	if candidate == nil {
		return
	}

	if holder != nil {
		holder.Creator = false
	}
	candidate.Creator = true
	for _, c := range candidate.Conns {
		c.Grant()
	}
	log.Printf("registry: creator granted to session %s", candidate.ID)
}

// IsCreator reports whether the session identified by key currently holds
// creator authority.
func (r *Registry) IsCreator(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return ok && s.Creator
}

// Attached reports whether connID is still the registered connection for its
// identity. Messages from a displaced connection are ignored once detached.
func (r *Registry) Attached(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byConn[connID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CreatorCount returns how many sessions hold authority. Always 0 or 1.
func (r *Registry) CreatorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.Creator {
			n++
		}
	}
	return n
}
