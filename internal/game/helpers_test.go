package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spy-game/internal/db"

	"github.com/jonboulle/clockwork"
)

type delivery struct {
	connID string
	msg    Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []delivery
}

func (n *recordingNotifier) Send(connID string, msg Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, delivery{connID: connID, msg: msg})
}

func (n *recordingNotifier) ofType(connID, eventType string) []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Message
	for _, d := range n.sent {
		if d.connID == connID && d.msg.Type == eventType {
			out = append(out, d.msg)
		}
	}
	return out
}

func (n *recordingNotifier) countType(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, d := range n.sent {
		if d.msg.Type == eventType {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

// waitFor polls until connID has received count messages of eventType.
func (n *recordingNotifier) waitFor(t *testing.T, connID, eventType string, count int) []Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs := n.ofType(connID, eventType)
		if len(msgs) >= count {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d %s messages for %s, got %d", count, eventType, connID, len(msgs))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type recordingMirror struct {
	mu     sync.Mutex
	events []delivery
}

func (m *recordingMirror) Publish(roomID string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, delivery{connID: roomID, msg: msg})
}

func (m *recordingMirror) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, event := range m.events {
		out = append(out, event.msg.Type)
	}
	return out
}

// failingDirectory fails round assignment writes when fail is set and room
// or user lookups when failLookups is set.
type failingDirectory struct {
	*db.MemoryStore
	mu          sync.Mutex
	fail        bool
	failLookups bool
}

func (f *failingDirectory) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *failingDirectory) setFailLookups(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLookups = fail
}

func (f *failingDirectory) lookupsFailing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failLookups
}

func (f *failingDirectory) RoomByID(ctx context.Context, id string) (*db.Room, error) {
	if f.lookupsFailing() {
		return nil, errors.New("connection reset by peer")
	}
	return f.MemoryStore.RoomByID(ctx, id)
}

func (f *failingDirectory) UserByUsername(ctx context.Context, roomID, username string) (*db.User, error) {
	if f.lookupsFailing() {
		return nil, errors.New("connection reset by peer")
	}
	return f.MemoryStore.UserByUsername(ctx, roomID, username)
}

func (f *failingDirectory) RecordRoundAssignment(ctx context.Context, spyID, keyword string) (*db.Game, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return f.MemoryStore.RecordRoundAssignment(ctx, spyID, keyword)
}

// blockingDirectory holds the first round assignment write until release is
// closed, signalling on entered once the write is pending.
type blockingDirectory struct {
	*db.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingDirectory(store *db.MemoryStore) *blockingDirectory {
	return &blockingDirectory{
		MemoryStore: store,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (b *blockingDirectory) RecordRoundAssignment(ctx context.Context, spyID, keyword string) (*db.Game, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.MemoryStore.RecordRoundAssignment(ctx, spyID, keyword)
}

// startRoundAsync runs StartRound in the background and returns its result channel
// once the store write is pending.
func startRoundAsync(t *testing.T, f *fixture, dir *blockingDirectory, connID, roomID string, words []string) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- f.sup.StartRound(context.Background(), connID, roomID, words)
	}()
	select {
	case <-dir.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("round assignment write never started")
	}
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("start round did not return")
		return nil
	}
}

type fixture struct {
	sup    *Supervisor
	store  *db.MemoryStore
	notify *recordingNotifier
	clock  *clockwork.FakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := db.NewMemoryStore()
	return newFixtureWithDirectory(t, store, store, opts...)
}

func newFixtureWithDirectory(t *testing.T, store *db.MemoryStore, dir Directory, opts ...Option) *fixture {
	t.Helper()
	notify := &recordingNotifier{}
	clock := clockwork.NewFakeClock()
	opts = append([]Option{WithClock(clock)}, opts...)
	return &fixture{
		sup:    NewSupervisor(dir, notify, opts...),
		store:  store,
		notify: notify,
		clock:  clock,
	}
}

// seedRoom registers a room and one user per username and returns the room
// code and the user ids by username.
func (f *fixture) seedRoom(t *testing.T, usernames ...string) (string, map[string]string) {
	t.Helper()
	ctx := context.Background()
	room, err := f.store.CreateRoom(ctx, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	ids := make(map[string]string, len(usernames))
	for _, username := range usernames {
		user, err := f.store.CreateUser(ctx, username, room.ID)
		if err != nil {
			t.Fatalf("create user %s: %v", username, err)
		}
		ids[username] = user.ID
	}
	return room.ID, ids
}

// joinAll joins every username on a connection named after it.
func (f *fixture) joinAll(t *testing.T, roomID string, usernames ...string) {
	t.Helper()
	for _, username := range usernames {
		if _, err := f.sup.Join(context.Background(), "conn-"+username, roomID, username); err != nil {
			t.Fatalf("join %s: %v", username, err)
		}
	}
}

// advance moves the fake clock one second and waits for connID to see the
// resulting timer message.
func (f *fixture) advance(t *testing.T, connID, eventType string, count int) []Message {
	t.Helper()
	f.clock.Advance(time.Second)
	return f.notify.waitFor(t, connID, eventType, count)
}

func usernamesOf(entries []RosterEntry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Username)
	}
	return out
}
