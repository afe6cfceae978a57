package registry

import (
	"sync"
	"testing"
	"time"
)

// fakeConn records the signals the registry sends it.
type fakeConn struct {
	id string

	mu       sync.Mutex
	grants   int
	replaced int
	kicked   []string
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Grant() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants++
}

func (f *fakeConn) Replace() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced++
}

func (f *fakeConn) Kick(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, reason)
}

func (f *fakeConn) grantCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants
}

func (f *fakeConn) replaceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaced
}

func newTestRegistry() *Registry {
	return New(30*time.Minute, 30*time.Second)
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		agent   string
		wantErr bool
	}{
		{"HostPort", "192.0.2.1:55000", "firefox", false},
		{"BareIP", "192.0.2.1", "firefox", false},
		{"IPv6", "[2001:db8::1]:443", "chrome", false},
		{"Empty", "", "firefox", true},
		{"Garbage", "not-an-address", "firefox", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Identity(tt.addr, tt.agent)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Identity(%q) succeeded, want error", tt.addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Identity(%q): %v", tt.addr, err)
			}
			if key == "" {
				t.Error("empty identity key")
			}
		})
	}
}

func TestIdentityStableAcrossPorts(t *testing.T) {
	k1, err := Identity("192.0.2.1:1000", "firefox")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := Identity("192.0.2.1:2000", "firefox")
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Error("same origin+agent should map to the same identity")
	}

	k3, err := Identity("192.0.2.1:1000", "chrome")
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k3 {
		t.Error("different agents should map to different identities")
	}
}

func TestResolveCreatesSessionAndElectsFirstCreator(t *testing.T) {
	r := newTestRegistry()
	conn := newFakeConn("c1")

	view := r.Resolve("alice", conn)

	if !view.IsNew {
		t.Error("first resolve should create a session")
	}
	if !view.Creator {
		t.Error("first session should hold creator authority")
	}
	if view.SessionID == "" {
		t.Error("empty session id")
	}
	if got := r.CreatorCount(); got != 1 {
		t.Errorf("creator count = %d, want 1", got)
	}
}

func TestResolveReattachKeepsSession(t *testing.T) {
	r := newTestRegistry()
	v1 := r.Resolve("alice", newFakeConn("c1"))
	r.Detach("c1")

	v2 := r.Resolve("alice", newFakeConn("c2"))

	if v2.IsNew {
		t.Error("reattach within grace should reuse the session")
	}
	if v2.SessionID != v1.SessionID {
		t.Errorf("session id changed across reconnect: %s != %s", v2.SessionID, v1.SessionID)
	}
	if !v2.Creator {
		t.Error("reconnect should inherit creator authority")
	}
}

func TestResolveReplacesLiveConnection(t *testing.T) {
	r := newTestRegistry()
	old := newFakeConn("c1")
	r.Resolve("alice", old)

	view := r.Resolve("alice", newFakeConn("c2"))

	if !view.WasReplaced {
		t.Error("second attach under the same identity should report a replacement")
	}
	if old.replaceCount() != 1 {
		t.Errorf("old connection replace signals = %d, want 1", old.replaceCount())
	}
	if !view.Creator {
		t.Error("replacing connection should inherit creator authority")
	}
	if r.Attached("c1") {
		t.Error("displaced connection should no longer be attached")
	}
	if !r.Attached("c2") {
		t.Error("new connection should be attached")
	}
}

func TestCreatorUniqueAcrossManySessions(t *testing.T) {
	r := newTestRegistry()
	for i, key := range []string{"a", "b", "c", "d", "e"} {
		r.Resolve(key, newFakeConn(string(rune('0'+i))))
		if got := r.CreatorCount(); got != 1 {
			t.Fatalf("after %d sessions creator count = %d, want 1", i+1, got)
		}
	}
}

func TestCreatorHandoverOnDetach(t *testing.T) {
	r := newTestRegistry()
	first := newFakeConn("c1")
	second := newFakeConn("c2")
	r.Resolve("alice", first)
	r.Resolve("bob", second)

	if second.grantCount() != 0 {
		t.Fatal("second session should not hold authority yet")
	}

	r.Detach("c1")

	// The handover is a single step: authority is already held by bob by
	// the time Detach returns, with no creator-less window in between.
	if got := r.CreatorCount(); got != 1 {
		t.Errorf("creator count after handover = %d, want 1", got)
	}
	if !r.IsCreator("bob") {
		t.Error("bob should have been granted authority")
	}
	if second.grantCount() != 1 {
		t.Errorf("bob grant signals = %d, want 1", second.grantCount())
	}
}

func TestCreatorRetainedWhileNoLiveReplacement(t *testing.T) {
	r := newTestRegistry()
	r.Resolve("alice", newFakeConn("c1"))
	r.Detach("c1")

	// Alice's session is empty but inside the detach grace; with nobody
	// else connected she keeps the role for a quick reconnect.
	if !r.IsCreator("alice") {
		t.Error("sole session should keep authority through a reconnect gap")
	}
	if got := r.CreatorCount(); got != 1 {
		t.Errorf("creator count = %d, want 1", got)
	}
}

func TestDeterministicElectionOrder(t *testing.T) {
	r := newTestRegistry()
	r.Resolve("a", newFakeConn("c1"))
	r.Resolve("b", newFakeConn("c2"))
	r.Resolve("c", newFakeConn("c3"))

	r.Detach("c1")
	if !r.IsCreator("b") {
		t.Error("earliest-joined live session (b) should be elected")
	}

	r.Detach("c2")
	if !r.IsCreator("c") {
		t.Error("authority should pass to c")
	}
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	r := New(time.Minute, time.Second)
	conn := newFakeConn("c1")
	r.Resolve("alice", conn)

	// Not idle yet.
	r.Sweep(time.Now())
	if r.Len() != 1 {
		t.Fatal("fresh session should survive a sweep")
	}

	r.Sweep(time.Now().Add(2 * time.Minute))
	if r.Len() != 0 {
		t.Error("idle session should have been swept")
	}
	conn.mu.Lock()
	kicked := len(conn.kicked)
	conn.mu.Unlock()
	if kicked != 1 {
		t.Errorf("attached connection kick signals = %d, want 1", kicked)
	}
	if r.Attached("c1") {
		t.Error("kicked connection should be forgotten")
	}
}

func TestSweepRemovesAbandonedSessionsAfterGrace(t *testing.T) {
	r := New(time.Hour, time.Second)
	r.Resolve("alice", newFakeConn("c1"))
	r.Detach("c1")

	r.Sweep(time.Now())
	if r.Len() != 1 {
		t.Fatal("empty session inside the grace should survive")
	}

	r.Sweep(time.Now().Add(5 * time.Second))
	if r.Len() != 0 {
		t.Error("abandoned session should have been removed after the grace")
	}
	if got := r.CreatorCount(); got != 0 {
		t.Errorf("creator count with empty registry = %d, want 0", got)
	}
}

func TestSweepHandsAuthorityPastExpiredHolder(t *testing.T) {
	r := New(time.Hour, time.Second)
	r.Resolve("alice", newFakeConn("c1"))
	bob := newFakeConn("c2")
	r.Resolve("bob", bob)

	// The holder walks away and their grace expires while bob stays live.
	r.Detach("c1")
	r.Sweep(time.Now().Add(5 * time.Second))

	if r.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", r.Len())
	}
	if !r.IsCreator("bob") {
		t.Error("bob should hold authority after the holder expired")
	}
	if bob.grantCount() != 1 {
		t.Errorf("bob grant signals = %d, want 1", bob.grantCount())
	}
}

func TestTouchRefreshesActivity(t *testing.T) {
	r := New(time.Minute, time.Second)
	r.Resolve("alice", newFakeConn("c1"))

	r.Touch("alice")
	r.Sweep(time.Now().Add(30 * time.Second))
	if r.Len() != 1 {
		t.Error("touched session should survive a sweep inside the timeout")
	}
}

func TestConcurrentResolveDetachSweep(t *testing.T) {
	r := New(time.Minute, 10*time.Millisecond)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%4))
			for j := 0; j < 50; j++ {
				id := key + "-" + string(rune('0'+j%10))
				r.Resolve(key, newFakeConn(id))
				r.Touch(key)
				r.Detach(id)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			r.Sweep(time.Now())
		}
	}()
	wg.Wait()

	if got := r.CreatorCount(); got > 1 {
		t.Errorf("creator count = %d, want at most 1", got)
	}
}
