package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/watchsync/internal/repository/directory"
	"github.com/sharetube/watchsync/internal/repository/playback"
	"golang.org/x/crypto/bcrypt"
)

type iPlaybackRepo interface {
	GetOrInit(ctx context.Context, roomID string, at time.Time) (playback.State, error)
	Commit(context.Context, *playback.CommitParams) (playback.State, error)
	AppendEvent(context.Context, *playback.AppendEventParams) (playback.Event, error)
	RecentEvents(ctx context.Context, roomID string, limit int64) ([]playback.Event, error)
	Delete(ctx context.Context, roomID string) error
}

type iDirectoryRepo interface {
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

const (
	DefaultSeekDebounce  = 500 * time.Millisecond
	defaultCommitTimeout = 5 * time.Second
)

type Config struct {
	// SeekDebounce is the window in which consecutive seeks of a room collapse
	// into one commit.
	SeekDebounce  time.Duration
	CommitTimeout time.Duration
	BcryptCost    int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	playbackRepo  iPlaybackRepo
	directoryRepo iDirectoryRepo
	debouncer     *Debouncer
	locks         roomLocks
	logger        *slog.Logger
	now           func() time.Time
	commitTimeout time.Duration
	bcryptCost    int
}

func NewService(playbackRepo iPlaybackRepo, directoryRepo iDirectoryRepo, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	if cfg.SeekDebounce <= 0 {
		cfg.SeekDebounce = DefaultSeekDebounce
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = defaultCommitTimeout
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	s := &Service{
		playbackRepo:  playbackRepo,
		directoryRepo: directoryRepo,
		debouncer:     NewDebouncer(cfg.SeekDebounce),
		logger:        logger,
		now:           time.Now,
		commitTimeout: cfg.CommitTimeout,
		bcryptCost:    cfg.BcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Close discards pending debounced seeks. They never reached the store, so
// nothing committed is lost.
func (s *Service) Close() {
	s.debouncer.Stop()
}

func (s *Service) newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
