package gateway

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"chat-service/apperr"
	"chat-service/database"
	"chat-service/event"
	"chat-service/presence"
	"chat-service/profile"
	"chat-service/ratelimit"
	"chat-service/repository"
	"chat-service/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/neilotoole/slogt"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type emitted struct {
	Event   string
	Payload any
}

// fakeHub routes emits between fakeConns by room membership, delivering at
// most once per connection like socket.io does.
type fakeHub struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
}

func newFakeHub() *fakeHub {
	return &fakeHub{conns: map[string]*fakeConn{}}
}

func (h *fakeHub) conn(id string) *fakeConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &fakeConn{id: id, hub: h, rooms: map[string]bool{}}
	h.conns[id] = c
	return c
}

func (h *fakeHub) sorted() []*fakeConn {
	conns := make([]*fakeConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].id < conns[j].id })
	return conns
}

func (h *fakeHub) EmitTo(rooms []string, except string, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sorted() {
		if c.id == except || c.disconnected {
			continue
		}
		for _, room := range rooms {
			if c.rooms[room] {
				c.events = append(c.events, emitted{Event: event, Payload: payload})
				break
			}
		}
	}
}

func (h *fakeHub) Broadcast(event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sorted() {
		if !c.disconnected {
			c.events = append(c.events, emitted{Event: event, Payload: payload})
		}
	}
}

type fakeConn struct {
	id           string
	hub          *fakeHub
	rooms        map[string]bool
	events       []emitted
	disconnected bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Join(room string) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	c.rooms[room] = true
}

func (c *fakeConn) Leave(room string) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	delete(c.rooms, room)
}

func (c *fakeConn) Emit(event string, payload any) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	c.events = append(c.events, emitted{Event: event, Payload: payload})
}

func (c *fakeConn) Disconnect() {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	c.disconnected = true
}

// take returns and clears the events the connection received.
func (c *fakeConn) take() []emitted {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	events := c.events
	c.events = nil
	return events
}

func (c *fakeConn) named(name string) []any {
	var payloads []any
	for _, e := range c.take() {
		if e.Event == name {
			payloads = append(payloads, e.Payload)
		}
	}
	return payloads
}

type fakeVerifier map[string]string

func (f fakeVerifier) Verify(token string) (string, error) {
	if userID, ok := f[token]; ok {
		return userID, nil
	}
	return "", apperr.ErrInvalidCredential
}

type fakePublisher struct {
	mu     sync.Mutex
	events []event.MessageCreated
}

func (f *fakePublisher) MessageCreated(evt event.MessageCreated) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

type fakeProfiles struct{}

func (fakeProfiles) Profile(_ context.Context, userID string) (profile.Profile, error) {
	return profile.Profile{ID: userID, DisplayName: "Name of " + userID}, nil
}

type harness struct {
	t             *testing.T
	gw            *Gateway
	hub           *fakeHub
	mr            *miniredis.Miniredis
	conversations *service.ConversationService
	messages      *service.MessageService
	publisher     *fakePublisher
	registry      *presence.Registry
}

const rateLimit = 5

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{NowFunc: database.NowUTC})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })

	log := slogt.New(t)
	registry := presence.New(cli, "gw-test", 30*time.Second)
	conversations := service.NewConversationService(repository.NewConversationRepository(db), fakeProfiles{}, registry, log, 100)
	messages := service.NewMessageService(repository.NewMessageRepository(db), conversations, log, 0)

	h := &harness{
		t:             t,
		hub:           newFakeHub(),
		mr:            mr,
		conversations: conversations,
		messages:      messages,
		publisher:     &fakePublisher{},
		registry:      registry,
	}
	h.gw = New(Deps{
		Hub:           h.hub,
		Verifier:      fakeVerifier{"token-alice": "alice", "token-bob": "bob", "token-carol": "carol"},
		Presence:      registry,
		Limiter:       ratelimit.New(cli, "message", rateLimit, 10*time.Second),
		Conversations: conversations,
		Messages:      messages,
		Publisher:     h.publisher,
		Profiles:      fakeProfiles{},
		Log:           log,
		Timeout:       5 * time.Second,
	})
	return h
}

// connect opens a session for the user behind token on a new connection.
func (h *harness) connect(socketID, token string) (*Session, *fakeConn) {
	h.t.Helper()
	conn := h.hub.conn(socketID)
	s, err := h.gw.Connect(context.Background(), conn, Credentials{Query: token})
	require.NoError(h.t, err)
	return s, conn
}

func (h *harness) conversation(a, b string) string {
	h.t.Helper()
	c, _, err := h.conversations.FindOrCreate(context.Background(), a, b, nil)
	require.NoError(h.t, err)
	return c.ID
}

// call runs an event with an acknowledgement and returns the reply.
func (h *harness) call(s *Session, name string, payload string) Reply {
	h.t.Helper()
	var reply *Reply
	h.gw.Handle(context.Background(), s, name, []byte(payload), func(r Reply) { reply = &r })
	require.NotNil(h.t, reply, "no ack for %s", name)
	return *reply
}

// removeFails is a presence registry whose RemoveSocket is down.
type removeFails struct {
	*presence.Registry
}

func (removeFails) RemoveSocket(context.Context, string, string) (int64, error) {
	return 0, apperr.ErrPresenceUnavailable(redis.ErrClosed)
}
