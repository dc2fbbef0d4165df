package gateway

import "sync"

type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is the server side of one client connection. It only moves
// forward: Connecting, Authenticated, Active, Disconnected.
type Session struct {
	conn Conn

	mu     sync.Mutex
	state  State
	userID string
	rooms  map[string]struct{}
}

func newSession(conn Conn) *Session {
	return &Session{
		conn:  conn,
		state: StateConnecting,
		rooms: make(map[string]struct{}),
	}
}

func (s *Session) ID() string {
	return s.conn.ID()
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) advance(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) authenticate(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return false
	}
	s.userID = userID
	s.state = StateAuthenticated
	return true
}

// disconnect reports whether this call performed the transition.
func (s *Session) disconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	s.state = StateDisconnected
	return true
}

func (s *Session) join(conversationID string) {
	s.mu.Lock()
	s.rooms[conversationID] = struct{}{}
	s.mu.Unlock()
	s.conn.Join(ConversationRoom(conversationID))
}

func (s *Session) leave(conversationID string) {
	s.mu.Lock()
	delete(s.rooms, conversationID)
	s.mu.Unlock()
	s.conn.Leave(ConversationRoom(conversationID))
}

func (s *Session) joined(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[conversationID]
	return ok
}
