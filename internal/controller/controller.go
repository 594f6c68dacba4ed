package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sharetube/watchsync/internal/auth"
	"github.com/sharetube/watchsync/internal/gateway"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/streamurl"
	"github.com/sharetube/watchsync/pkg/validator"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.Room, error)
	GetRoom(ctx context.Context, roomID, userID string) (room.Room, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.Room, error)
	LeaveRoom(ctx context.Context, roomID, userID string) error
	RemoveParticipant(ctx context.Context, roomID, hostID, participantID string) error
	ListParticipants(context.Context, room.Grant) ([]room.Participant, error)
	ListPublicRooms(context.Context, room.Page) ([]room.Room, error)
	ListHostedRooms(ctx context.Context, hostID string, page room.Page) ([]room.Room, error)
	ListJoinedRooms(ctx context.Context, userID string, page room.Page) ([]room.Room, error)
	UpdateRoom(context.Context, *room.UpdateRoomParams) (room.Room, error)
	DeleteRoom(ctx context.Context, roomID, hostID string) error

	Authorize(ctx context.Context, roomID, userID string) (room.Grant, error)
	GetState(context.Context, room.Grant) (room.PlaybackState, error)
	UpdateState(context.Context, room.Grant, *room.UpdateStateParams) (room.UpdateStateResponse, error)
	Sync(context.Context, room.Grant) (room.SyncedState, error)
	RecentEvents(ctx context.Context, grant room.Grant, limit int) ([]room.Event, error)
}

type iStreamURLService interface {
	Validate(ctx context.Context, rawURL string, kind streamurl.Kind) (*streamurl.Validation, error)
	Metadata(ctx context.Context, rawURL string, kind streamurl.Kind) (*streamurl.Metadata, error)
}

type iAuthenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

type iAccountService interface {
	Register(context.Context, *auth.RegisterParams) (auth.Credentials, error)
	Login(ctx context.Context, username, password string) (auth.Credentials, error)
	Profile(ctx context.Context, userID string) (auth.Profile, error)
}

type iGateway interface {
	http.Handler
	Roster(roomID string) []auth.Identity
	NotifyRoom(ctx context.Context, roomID string, out *gateway.Output)
}

type Config struct {
	// RequestsPerMinute caps HTTP requests per client address. Zero disables the limit.
	RequestsPerMinute int
	// LimiterCapacity bounds how many client addresses are tracked at once.
	LimiterCapacity int
}

type Controller struct {
	roomService   iRoomService
	urlService    iStreamURLService
	authenticator iAuthenticator
	accounts      iAccountService
	gateway       iGateway
	logger        *slog.Logger
	validate      *validator.Validator
	limiter       *ipLimiter
}

func NewController(
	roomService iRoomService,
	urlService iStreamURLService,
	authenticator iAuthenticator,
	accounts iAccountService,
	gw iGateway,
	logger *slog.Logger,
	cfg Config,
) (*Controller, error) {
	c := &Controller{
		roomService:   roomService,
		urlService:    urlService,
		authenticator: authenticator,
		accounts:      accounts,
		gateway:       gw,
		logger:        logger,
		validate:      validator.NewValidator(),
	}

	if cfg.RequestsPerMinute > 0 {
		limiter, err := newIPLimiter(cfg.RequestsPerMinute, cfg.LimiterCapacity)
		if err != nil {
			return nil, err
		}
		c.limiter = limiter
	}

	return c, nil
}
