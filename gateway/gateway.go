// Package gateway runs the realtime side of chat: it authenticates
// connections, tracks presence and turns client events into service calls
// and room broadcasts. It knows nothing about the wire transport; the
// socketio package adapts it.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"chat-service/apperr"
	"chat-service/event"
	"chat-service/model"
	"chat-service/profile"
	"chat-service/ratelimit"
	"chat-service/service"
)

// Conn is one client connection.
type Conn interface {
	ID() string
	Join(room string)
	Leave(room string)
	Emit(event string, payload any)
	Disconnect()
}

// Hub reaches connections across every gateway instance.
type Hub interface {
	// EmitTo sends to connections in any of rooms, once per connection,
	// skipping the connection with id except when it is not empty.
	EmitTo(rooms []string, except string, event string, payload any)
	Broadcast(event string, payload any)
}

type Verifier interface {
	Verify(token string) (string, error)
}

type Presence interface {
	AddSocket(ctx context.Context, userID, socketID string) (int64, error)
	RemoveSocket(ctx context.Context, userID, socketID string) (int64, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
	UnmapSocket(ctx context.Context, socketID string) error
}

type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

type Conversations interface {
	Authorize(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
	ResetUnread(ctx context.Context, conversationID, userID string) error
}

type Messages interface {
	Send(ctx context.Context, in service.SendInput) (*model.Message, *model.Conversation, error)
	MarkRead(ctx context.Context, conversationID string, messageIDs []string, readerID string) (int64, error)
	UnreadFor(ctx context.Context, conversationID, readerID string) ([]model.Message, error)
	Edit(ctx context.Context, messageID, text, editorID string) (*model.Message, error)
}

type Publisher interface {
	MessageCreated(evt event.MessageCreated)
}

type Profiles interface {
	Profile(ctx context.Context, userID string) (profile.Profile, error)
}

type Deps struct {
	Hub           Hub
	Verifier      Verifier
	Presence      Presence
	Limiter       Limiter
	Conversations Conversations
	Messages      Messages
	Publisher     Publisher
	Profiles      Profiles
	Log           *slog.Logger
	// Timeout bounds every event handler.
	Timeout time.Duration
}

type handlerFunc func(ctx context.Context, s *Session, raw json.RawMessage) (result, error)

// result is a handler's answer to the calling connection. Event is emitted
// when the client did not ask for an acknowledgement; empty means no event.
type result struct {
	Event   string
	Payload any
}

type Gateway struct {
	Deps

	handlers map[string]handlerFunc
	wg       sync.WaitGroup
}

func New(d Deps) *Gateway {
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	g := &Gateway{Deps: d}
	g.handlers = map[string]handlerFunc{
		EventJoinConversation:  g.joinConversation,
		EventLeaveConversation: g.leaveConversation,
		EventMessageSend:       g.sendMessage,
		EventMessageRead:       g.markRead,
		EventMessageEdit:       g.editMessage,
		EventTyping:            g.typing,
		EventPresenceSubscribe: g.presenceSubscribe,
	}
	return g
}

// Events lists the client events the gateway handles.
func (g *Gateway) Events() []string {
	events := make([]string, 0, len(g.handlers))
	for name := range g.handlers {
		events = append(events, name)
	}
	return events
}

// Authenticate resolves the user behind the handshake credentials. Callers
// must refuse the connection when it fails.
func (g *Gateway) Authenticate(c Credentials) (string, error) {
	token := c.Token()
	if token == "" {
		return "", apperr.ErrMissingCredential
	}
	return g.Verifier.Verify(token)
}

// Open activates an authenticated connection: the socket is registered in
// the presence registry and, for the user's first socket, everyone is told
// the user came online.
func (g *Gateway) Open(ctx context.Context, conn Conn, userID string) *Session {
	s := newSession(conn)
	if !s.authenticate(userID) {
		return s
	}
	conn.Join(UserRoom(userID))

	n, err := g.Presence.AddSocket(ctx, userID, conn.ID())
	if err != nil {
		g.Log.Error("presence add failed", "user", userID, "socket", conn.ID(), "error", err)
		conn.Emit(EventError, errorPayload("", err))
	} else if n == 1 {
		g.Hub.Broadcast(EventPresenceUpdate, PresenceUpdate{UserID: userID, Online: true})
	}

	s.advance(StateAuthenticated, StateActive)
	g.Log.Debug("connection opened", "user", userID, "socket", conn.ID())
	return s
}

// Connect authenticates and opens conn in one go, disconnecting it when the
// credentials are refused.
func (g *Gateway) Connect(ctx context.Context, conn Conn, c Credentials) (*Session, error) {
	userID, err := g.Authenticate(c)
	if err != nil {
		g.Log.Info("connection refused", "socket", conn.ID(), "error", err)
		conn.Disconnect()
		return nil, err
	}
	return g.Open(ctx, conn, userID), nil
}

// Close ends the session. When it held the user's last socket everyone is
// told the user went offline. Closing twice is a no-op.
func (g *Gateway) Close(ctx context.Context, s *Session) {
	wasActive := s.State() != StateConnecting
	if !s.disconnect() || !wasActive {
		return
	}

	userID := s.UserID()
	n, err := g.Presence.RemoveSocket(ctx, userID, s.ID())
	if uerr := g.Presence.UnmapSocket(ctx, s.ID()); uerr != nil {
		g.Log.Warn("presence unmap failed", "socket", s.ID(), "error", uerr)
	}
	if err != nil {
		g.Log.Error("presence remove failed", "user", userID, "socket", s.ID(), "error", err)
		return
	}
	if n == 0 {
		g.Hub.Broadcast(EventPresenceUpdate, PresenceUpdate{UserID: userID, Online: false})
	}
	g.Log.Debug("connection closed", "user", userID, "socket", s.ID())
}

// Offline tells every client that users went offline. Used after presence
// reconciliation released the sockets of a dead instance.
func (g *Gateway) Offline(users []string) {
	for _, userID := range users {
		g.Hub.Broadcast(EventPresenceUpdate, PresenceUpdate{UserID: userID, Online: false})
	}
}

// Handle runs one client event. Failures never close the connection: they
// go back to the caller as an error event, and through ack when given.
func (g *Gateway) Handle(ctx context.Context, s *Session, name string, raw json.RawMessage, ack Ack) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	res, err := g.dispatch(ctx, s, name, raw)
	if err != nil {
		g.fail(s, name, err, ack)
		return
	}

	if ack != nil {
		ack(Reply{OK: true, Data: res.Payload})
		return
	}
	if res.Event != "" {
		s.conn.Emit(res.Event, res.Payload)
	}
}

func (g *Gateway) dispatch(ctx context.Context, s *Session, name string, raw json.RawMessage) (result, error) {
	if s.State() != StateActive {
		return result{}, apperr.ErrConnectionNotActive
	}
	h, ok := g.handlers[name]
	if !ok {
		return result{}, apperr.ErrUnknownEvent
	}
	return h(ctx, s, raw)
}

func (g *Gateway) fail(s *Session, name string, err error, ack Ack) {
	switch apperr.CodeOf(err) {
	case apperr.CodeInternal, apperr.CodeUnavailable, apperr.CodeUnknown:
		g.Log.Error("event failed", "event", name, "user", s.UserID(), "socket", s.ID(), "error", err)
	default:
		g.Log.Debug("event rejected", "event", name, "user", s.UserID(), "error", err)
	}

	payload := errorPayload(name, err)
	s.conn.Emit(EventError, payload)
	if ack != nil {
		ack(Reply{OK: false, Error: &payload})
	}
}

func errorPayload(name string, err error) ErrorPayload {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnknown {
		code = apperr.CodeInternal
	}
	return ErrorPayload{Message: apperr.MessageOf(err), Code: code, Event: name}
}

// Wait blocks until background event publishing has finished.
func (g *Gateway) Wait() {
	g.wg.Wait()
}
