package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sharetube/watchsync/internal/auth"
	"github.com/sharetube/watchsync/internal/controller"
	"github.com/sharetube/watchsync/internal/gateway"
	"github.com/sharetube/watchsync/internal/repository/directory"
	"github.com/sharetube/watchsync/internal/repository/directory/postgres"
	"github.com/sharetube/watchsync/internal/repository/directory/sqlite"
	playbackredis "github.com/sharetube/watchsync/internal/repository/playback/redis"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/redisclient"
	"github.com/sharetube/watchsync/pkg/streamurl"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	shutdownTimeout = 30 * time.Second
)

type AppConfig struct {
	Secret                string        `json:"-"`
	Host                  string        `json:"host"`
	Port                  int           `json:"port"`
	LogLevel              string        `json:"log_level"`
	RedisHost             string        `json:"redis_host"`
	RedisPort             int           `json:"redis_port"`
	RedisPassword         string        `json:"-"`
	DirectoryDriver       string        `json:"directory_driver"`
	DatabaseURL           string        `json:"-"`
	SQLitePath            string        `json:"sqlite_path"`
	StateTTL              time.Duration `json:"state_ttl"`
	EventLogLimit         int64         `json:"event_log_limit"`
	WSEventsPerMinute     int           `json:"ws_events_per_minute"`
	WSLimiterCapacity     int           `json:"ws_limiter_capacity"`
	HTTPRequestsPerMinute int           `json:"http_requests_per_minute"`
	TokenTTL              time.Duration `json:"token_ttl"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return errors.New("secret must be set")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range", cfg.Port)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch cfg.DirectoryDriver {
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("sqlite path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("database url must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown directory driver %q", cfg.DirectoryDriver)
	}
	if cfg.StateTTL < 0 {
		return errors.New("state ttl must not be negative")
	}
	if cfg.EventLogLimit < 1 {
		return errors.New("event log limit must be greater than 0")
	}
	if cfg.WSEventsPerMinute < 1 {
		return errors.New("ws events per minute must be greater than 0")
	}
	if cfg.WSLimiterCapacity < 1 {
		return errors.New("ws limiter capacity must be greater than 0")
	}
	if cfg.HTTPRequestsPerMinute < 0 {
		return errors.New("http requests per minute must not be negative")
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("token ttl must be greater than 0")
	}
	return nil
}

func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type directoryRepo interface {
	CreateUser(context.Context, *directory.CreateUserParams) (directory.User, error)
	FindUserByID(ctx context.Context, id string) (directory.User, error)
	FindUserByUsername(ctx context.Context, username string) (directory.User, error)
	FindRoomByID(ctx context.Context, id string) (directory.Room, error)
	CreateRoom(context.Context, *directory.CreateRoomParams) (directory.Room, error)
	FindParticipation(ctx context.Context, roomID, userID string) (directory.Participation, error)
	AddParticipant(context.Context, *directory.AddParticipantParams) (directory.Participation, error)
	RemoveParticipant(context.Context, *directory.RemoveParticipantParams) error
	ListParticipants(ctx context.Context, roomID string) ([]directory.Participant, error)
	UpdateRoom(context.Context, *directory.UpdateRoomParams) (directory.Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListPublicRooms(context.Context, *directory.ListRoomsParams) ([]directory.Room, error)
	ListRoomsByHost(ctx context.Context, hostID string, params *directory.ListRoomsParams) ([]directory.Room, error)
	ListJoinedRooms(ctx context.Context, userID string, params *directory.ListRoomsParams) ([]directory.Room, error)
}

func openDirectory(ctx context.Context, cfg *AppConfig) (directoryRepo, func(), error) {
	switch cfg.DirectoryDriver {
	case DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	default:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	}
}

// Components are the wired services behind the HTTP handler.
type Components struct {
	Handler     http.Handler
	Gateway     *gateway.Gateway
	RoomService *room.Service
}

// Close stops the realtime gateway first so no new events reach the room
// service, then discards pending seeks.
func (c *Components) Close(ctx context.Context) error {
	err := c.Gateway.Stop(ctx)
	c.RoomService.Close()
	return err
}

type Deps struct {
	Logger     *slog.Logger
	Playback   *playbackredis.Repo
	Directory  directoryRepo
	URLService *streamurl.Client
	Clock      func() time.Time
}

func NewComponents(cfg *AppConfig, deps Deps) (*Components, error) {
	var roomOpts []room.Option
	var gatewayOpts []gateway.Option
	if deps.Clock != nil {
		roomOpts = append(roomOpts, room.WithClock(deps.Clock))
		gatewayOpts = append(gatewayOpts, gateway.WithClock(deps.Clock))
	}

	roomService := room.NewService(deps.Playback, deps.Directory, deps.Logger, room.Config{}, roomOpts...)

	tokens := auth.NewTokens(cfg.Secret, cfg.TokenTTL)
	authenticator := auth.NewAuthenticator(tokens, deps.Directory)
	accounts := auth.NewAccounts(deps.Directory, tokens, bcrypt.DefaultCost)

	gw, err := gateway.New(roomService, authenticator, deps.Logger, gateway.Config{
		EventsPerMinute: cfg.WSEventsPerMinute,
		LimiterCapacity: cfg.WSLimiterCapacity,
	}, gatewayOpts...)
	if err != nil {
		roomService.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	urlService := deps.URLService
	if urlService == nil {
		urlService = streamurl.New()
	}

	ctrl, err := controller.NewController(roomService, urlService, authenticator, accounts, gw, deps.Logger, controller.Config{
		RequestsPerMinute: cfg.HTTPRequestsPerMinute,
	})
	if err != nil {
		roomService.Close()
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	return &Components{
		Handler:     ctrl.Mux(),
		Gateway:     gw,
		RoomService: roomService,
	}, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := NewLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	dir, closeDir, err := openDirectory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}
	defer closeDir()

	components, err := NewComponents(cfg, Deps{
		Logger: logger,
		Playback: playbackredis.NewRepo(rc, playbackredis.Config{
			StateTTL:      cfg.StateTTL,
			EventLogLimit: cfg.EventLogLimit,
		}),
		Directory: dir,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	components.Gateway.Start(gCtx)

	g.Go(func() error {
		logger.InfoContext(gCtx, "starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.InfoContext(gCtx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), shutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by the server;
		// the gateway closes them.
		serverErr := server.Shutdown(shutdownCtx)
		closeErr := components.Close(shutdownCtx)

		return errors.Join(serverErr, closeErr)
	})

	return g.Wait()
}
