package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/internal/auth"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/rest"
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

type iRoomService interface {
	Authorize(ctx context.Context, roomID, userID string) (room.Grant, error)
	JoinSync(ctx context.Context, grant room.Grant) (room.SyncedState, error)
	Sync(ctx context.Context, grant room.Grant) (room.SyncedState, error)
	UpdateState(ctx context.Context, grant room.Grant, params *room.UpdateStateParams) (room.UpdateStateResponse, error)
	RecordLeave(ctx context.Context, roomID, userID string, data map[string]any)
}

type iAuthenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

const (
	DefaultEventsPerMinute = 100
	DefaultLimiterCapacity = 10_000
	limitWindow            = time.Minute
)

type Config struct {
	EventsPerMinute int
	LimiterCapacity int
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	PongWait        time.Duration
	SweepInterval   time.Duration
}

func (c *Config) withDefaults() {
	if c.EventsPerMinute <= 0 {
		c.EventsPerMinute = DefaultEventsPerMinute
	}
	if c.LimiterCapacity <= 0 {
		c.LimiterCapacity = DefaultLimiterCapacity
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = 60 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = limitWindow
	}
}

type Option func(*Gateway)

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// Gateway is the realtime endpoint: it authenticates websocket handshakes,
// attaches sessions to rooms and relays playback events between them.
type Gateway struct {
	roomService   iRoomService
	authenticator iAuthenticator
	logger        *slog.Logger
	cfg           Config
	now           func() time.Time

	registry *Registry
	limiter  *EventLimiter
	router   *wsrouter.WSRouter
	upgrader websocket.Upgrader
	validate *validator.Validator

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(roomService iRoomService, authenticator iAuthenticator, logger *slog.Logger, cfg Config, opts ...Option) (*Gateway, error) {
	cfg.withDefaults()

	g := &Gateway{
		roomService:   roomService,
		authenticator: authenticator,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
		registry:      NewRegistry(),
		validate:      validator.NewValidator(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(g)
	}

	limiter, err := NewEventLimiter(cfg.EventsPerMinute, limitWindow, cfg.LimiterCapacity, g.now)
	if err != nil {
		return nil, err
	}
	g.limiter = limiter
	g.router = g.newRouter()

	return g, nil
}

func (g *Gateway) newRouter() *wsrouter.WSRouter {
	r := wsrouter.New()
	r.Use(g.wsRequestIdMw(), g.loggerMw(), g.rateLimitMw())
	r.OnError(g.handleError)

	wsrouter.Handle(r, "join-room", g.handleJoinRoom)
	wsrouter.Handle(r, "leave-room", g.handleLeaveRoom)
	wsrouter.Handle(r, "video-play", g.videoHandler(room.EventPlay))
	wsrouter.Handle(r, "video-pause", g.videoHandler(room.EventPause))
	wsrouter.Handle(r, "video-seek", g.videoHandler(room.EventSeek))
	wsrouter.Handle(r, "request-sync", g.handleRequestSync)
	wsrouter.Handle(r, "heartbeat", g.handleHeartbeat)

	return r
}

// Start launches the limiter sweeper. It returns immediately.
func (g *Gateway) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil || g.stopped {
		return
	}

	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})

	go func() {
		defer close(g.done)

		ticker := time.NewTicker(g.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := g.limiter.Sweep(); n > 0 {
					g.logger.DebugContext(ctx, "limiter windows swept", "removed", n)
				}
			}
		}
	}()
}

// Stop refuses new connections and closes every live session.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	g.stopped = true
	cancel, done := g.cancel, g.done
	g.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	sessions := g.registry.Close()
	for _, s := range sessions {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	g.logger.InfoContext(ctx, "gateway stopped", "closed_sessions", len(sessions))

	return nil
}

func (g *Gateway) isStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

// Roster returns the users with a live session attached to roomID.
func (g *Gateway) Roster(roomID string) []auth.Identity {
	return g.registry.Roster(roomID)
}

// NotifyRoom sends out to every session attached to roomID.
func (g *Gateway) NotifyRoom(ctx context.Context, roomID string, out *Output) {
	g.broadcast(ctx, g.registry.Peers(roomID, ""), out)
}

func (g *Gateway) broadcast(ctx context.Context, sessions []*Session, out *Output) {
	for _, s := range sessions {
		if err := s.Send(out); err != nil {
			g.logger.DebugContext(ctx, "failed to send to session", "session_id", s.ID(), "type", out.Type, "error", err)
		}
	}
}

func (g *Gateway) timestamp() int64 {
	return g.now().UnixMilli()
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if g.isStopped() {
		rest.WriteJSON(w, http.StatusServiceUnavailable, rest.Envelope{"error": ErrClosed.Error()})
		return
	}

	s := newSession(uuid.Must(uuid.NewV7()).String())
	s.writeTimeout = g.cfg.WriteTimeout
	s.transition(StateAuthenticating)

	identity, err := g.authenticator.Authenticate(ctx, auth.TokenFromRequest(r))
	if err != nil {
		s.transition(StateRejected)
		if errors.Is(err, auth.ErrUnauthenticated) {
			g.logger.InfoContext(ctx, "websocket handshake rejected", "error", err)
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "unauthenticated"})
			return
		}
		g.logger.ErrorContext(ctx, "failed to authenticate websocket handshake", "error", err)
		rest.WriteJSON(w, http.StatusServiceUnavailable, rest.Envelope{"error": "service temporarily unavailable"})
		return
	}
	s.identity = identity

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.InfoContext(ctx, "failed to upgrade connection", "error", err)
		return
	}
	s.conn = conn
	s.transition(StateAuthenticated)

	if err := g.registry.Add(s); err != nil {
		s.transition(StateDisconnected)
		if errors.Is(err, ErrClosed) {
			g.logger.InfoContext(ctx, "session refused during shutdown")
			s.closeWith(websocket.CloseGoingAway, "server shutting down")
			return
		}
		g.logger.ErrorContext(ctx, "failed to register session", "error", err)
		s.closeWith(websocket.CloseInternalServerErr, "internal error")
		return
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.String("session_id", s.id))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", identity.UserID))
	ctx = withSession(ctx, s)

	g.logger.InfoContext(ctx, "session connected")

	stopPing := g.keepAlive(ctx, s)
	err = g.router.ServeConn(ctx, conn)
	stopPing()

	g.disconnect(ctx, s, disconnectReason(err))
}

// keepAlive pings the peer and extends the read deadline on every pong.
func (g *Gateway) keepAlive(ctx context.Context, s *Session) func() {
	_ = s.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(g.cfg.PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.ping(); err != nil {
					g.logger.DebugContext(ctx, "failed to ping session", "error", err)
					return
				}
			}
		}
	}()

	return func() { close(done) }
}

func disconnectReason(err error) string {
	var closeErr *websocket.CloseError
	switch {
	case err == nil:
		return "server closed"
	case errors.As(err, &closeErr):
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return "client disconnect"
		default:
			return fmt.Sprintf("close %d", closeErr.Code)
		}
	case errors.Is(err, context.Canceled):
		return "server shutdown"
	default:
		return "transport error"
	}
}

func (g *Gateway) disconnect(ctx context.Context, s *Session, reason string) {
	s.transition(StateDisconnected)
	_ = s.conn.Close()

	roomID, attached := g.registry.Remove(s.id)
	if attached {
		g.leave(context.WithoutCancel(ctx), s, roomID, map[string]any{"reason": reason})
	}

	g.logger.InfoContext(ctx, "session disconnected", "reason", reason, "state", s.State().String())
}

// leave records the departure and tells the remaining members of roomID.
// The session must already be detached from roomID.
func (g *Gateway) leave(ctx context.Context, s *Session, roomID string, data map[string]any) {
	s.clearGrant(roomID)

	ts := g.timestamp()
	data["timestamp"] = ts
	g.roomService.RecordLeave(ctx, roomID, s.Identity().UserID, data)

	payload := map[string]any{
		"user":      s.Identity(),
		"roomId":    roomID,
		"timestamp": ts,
	}
	if reason, ok := data["reason"]; ok {
		payload["reason"] = reason
	}
	g.broadcast(ctx, g.registry.Peers(roomID, s.id), &Output{Type: "user-left", Payload: payload})
}

func (g *Gateway) handleError(ctx context.Context, _ *websocket.Conn, err error) {
	s := sessionFromCtx(ctx)
	if s == nil || s.State() != StateAuthenticated {
		return
	}

	code := errorCode(err)
	if code == CodeInternal || code == CodeUpstreamUnavailable {
		g.logger.ErrorContext(ctx, "websocket message failed", "error", err)
	} else {
		g.logger.InfoContext(ctx, "websocket message rejected", "code", code, "error", err)
	}

	if sendErr := s.Send(&Output{
		Type:    "error",
		Payload: ErrorPayload{Message: errorMessage(err), Code: code},
	}); sendErr != nil {
		g.logger.DebugContext(ctx, "failed to send error", "error", sendErr)
	}
}
