package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/internal/auth"
	"github.com/sharetube/watchsync/internal/service/room"
)

type ConnState uint8

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateAuthenticated
	StateRejected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Session is one live websocket connection of an authenticated user.
type Session struct {
	id           string
	identity     auth.Identity
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu    sync.Mutex
	state ConnState
	grant room.Grant
}

func newSession(id string) *Session {
	return &Session{id: id, state: StateConnecting}
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Identity() auth.Identity { return s.identity }

func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition moves the session forward. Rejected and disconnected are terminal.
func (s *Session) transition(to ConnState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRejected || s.state == StateDisconnected {
		return false
	}
	s.state = to
	return true
}

// roomGrant returns the cached grant when it belongs to roomID.
func (s *Session) roomGrant(roomID string) (room.Grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grant.RoomID() == "" || s.grant.RoomID() != roomID {
		return room.Grant{}, false
	}
	return s.grant, true
}

func (s *Session) setGrant(g room.Grant) {
	s.mu.Lock()
	s.grant = g
	s.mu.Unlock()
}

func (s *Session) clearGrant(roomID string) {
	s.mu.Lock()
	if s.grant.RoomID() == roomID {
		s.grant = room.Grant{}
	}
	s.mu.Unlock()
}

// Send writes out to the peer. It fails with ErrClosed once the session is
// disconnected.
func (s *Session) Send(out *Output) error {
	if s.State() == StateDisconnected {
		return ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	return s.conn.WriteJSON(out)
}

func (s *Session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

func (s *Session) closeWith(code int, reason string) {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	s.writeMu.Unlock()

	_ = s.conn.Close()
}

type ctxKey int

const sessionCtxKey ctxKey = iota

func withSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

func sessionFromCtx(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionCtxKey).(*Session)
	return s
}
