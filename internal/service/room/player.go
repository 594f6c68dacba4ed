package room

import (
	"context"
	"math"
	"time"

	"github.com/sharetube/watchsync/internal/repository/playback"
)

const (
	DefaultEventsLimit = 50
	MaxEventsLimit     = 100
)

func fromRepoState(st playback.State) PlaybackState {
	return PlaybackState{
		RoomID:        st.RoomID,
		VideoPosition: st.VideoPosition,
		IsPlaying:     st.IsPlaying,
		VideoDuration: st.VideoDuration,
		LastUpdated:   st.LastUpdated,
		UpdatedBy:     st.UpdatedBy,
	}
}

func (s *Service) getOrInit(ctx context.Context, roomID string) (PlaybackState, error) {
	st, err := s.playbackRepo.GetOrInit(ctx, roomID, s.now())
	if err != nil {
		return PlaybackState{}, upstream("get playback state", err)
	}

	return fromRepoState(st), nil
}

// GetState returns the stored state, creating it on first access.
func (s *Service) GetState(ctx context.Context, grant Grant) (PlaybackState, error) {
	if err := s.checkGrant(grant); err != nil {
		return PlaybackState{}, err
	}

	return s.getOrInit(ctx, grant.roomID)
}

// JoinSync hands a joining user the projected state and logs the join.
func (s *Service) JoinSync(ctx context.Context, grant Grant) (SyncedState, error) {
	return s.syncWithEvent(ctx, grant, EventJoin)
}

// Sync hands out the projected state on explicit request and logs it.
func (s *Service) Sync(ctx context.Context, grant Grant) (SyncedState, error) {
	return s.syncWithEvent(ctx, grant, EventSync)
}

func (s *Service) syncWithEvent(ctx context.Context, grant Grant, eventType EventType) (SyncedState, error) {
	if err := s.checkGrant(grant); err != nil {
		return SyncedState{}, err
	}

	state, err := s.getOrInit(ctx, grant.roomID)
	if err != nil {
		return SyncedState{}, err
	}

	now := s.now()
	synced := project(state, now)
	s.appendEvent(ctx, grant.roomID, grant.userID, eventType, map[string]any{
		"syncPosition": synced.VideoPosition,
		"isPlaying":    synced.IsPlaying,
	}, now)

	return synced, nil
}

// RecordLeave logs that userID left roomID. It needs no grant: leaving is
// recorded even after access was revoked.
func (s *Service) RecordLeave(ctx context.Context, roomID, userID string, data map[string]any) {
	s.appendEvent(ctx, roomID, userID, EventLeave, data, s.now())
}

func (s *Service) RecentEvents(ctx context.Context, grant Grant, limit int) ([]Event, error) {
	if err := s.checkGrant(grant); err != nil {
		return nil, err
	}

	if limit == 0 {
		limit = DefaultEventsLimit
	}
	if limit < 1 || limit > MaxEventsLimit {
		return nil, invalid("limit must be between 1 and %d", MaxEventsLimit)
	}

	records, err := s.playbackRepo.RecentEvents(ctx, grant.roomID, int64(limit))
	if err != nil {
		return nil, upstream("get recent events", err)
	}

	events := make([]Event, 0, len(records))
	for _, r := range records {
		eventType, err := ParseEventType(r.EventType)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unknown event type in log", "room_id", grant.roomID, "event_id", r.ID, "event_type", r.EventType)
			continue
		}
		events = append(events, Event{
			ID:        r.ID,
			RoomID:    r.RoomID,
			UserID:    r.UserID,
			EventType: eventType,
			EventData: r.EventData,
			Timestamp: r.Timestamp,
		})
	}

	return events, nil
}

// appendEvent writes to the activity log. The log is best-effort: a failed
// write is logged and never fails the caller.
func (s *Service) appendEvent(ctx context.Context, roomID, userID string, eventType EventType, data map[string]any, at time.Time) {
	if _, err := s.playbackRepo.AppendEvent(ctx, &playback.AppendEventParams{
		RoomID:    roomID,
		UserID:    userID,
		EventType: eventType.String(),
		EventData: data,
		Timestamp: at,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to append event", "room_id", roomID, "event_type", eventType.String(), "error", err)
	}
}

type UpdateStateParams struct {
	EventType     EventType
	VideoPosition float64
	IsPlaying     bool
	VideoDuration *float64
	EventData     map[string]any
	// OnSettled is called with the outcome of a debounced seek. It runs on a
	// timer goroutine and must not block.
	OnSettled func(SeekOutcome)
}

type UpdateStateResponse struct {
	State PlaybackState
	// Pending is set for seeks: the outcome arrives through OnSettled.
	Pending bool
}

type SeekOutcome struct {
	State PlaybackState
	Err   error
	// Discarded is set when a newer seek superseded this one or the service
	// shut down before the window elapsed.
	Discarded bool
}

func validPosition(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func (p *UpdateStateParams) validate() error {
	if !validPosition(p.VideoPosition) {
		return invalid("videoPosition must be a non-negative number")
	}
	if p.VideoDuration != nil && !validPosition(*p.VideoDuration) {
		return invalid("videoDuration must be a non-negative number")
	}
	return nil
}

// UpdateState writes a complete playback state. Play, pause and sync commit at
// once; seeks are debounced per room and only the last one of a burst commits.
func (s *Service) UpdateState(ctx context.Context, grant Grant, params *UpdateStateParams) (UpdateStateResponse, error) {
	if err := s.checkGrant(grant); err != nil {
		return UpdateStateResponse{}, err
	}

	if err := params.validate(); err != nil {
		return UpdateStateResponse{}, err
	}

	switch params.EventType {
	case EventSeek:
		return s.scheduleSeek(ctx, grant, params)
	case EventPlay, EventPause, EventSync:
		// A pending seek is older than this update and must not overwrite it.
		s.debouncer.Cancel(grant.roomID)
		state, err := s.commit(ctx, grant, params.EventType, params, stateEventData(params))
		if err != nil {
			return UpdateStateResponse{}, err
		}
		return UpdateStateResponse{State: state}, nil
	case EventJoin, EventLeave:
		return UpdateStateResponse{}, invalid("%s is not a state update", params.EventType)
	default:
		return UpdateStateResponse{}, invalid("unknown event type %d", params.EventType)
	}
}

func stateEventData(params *UpdateStateParams) map[string]any {
	data := make(map[string]any, len(params.EventData)+2)
	for k, v := range params.EventData {
		data[k] = v
	}
	data["position"] = params.VideoPosition
	data["isPlaying"] = params.IsPlaying

	return data
}

func seekEventData(params *UpdateStateParams) map[string]any {
	return map[string]any{
		"fromPosition": params.EventData["fromPosition"],
		"toPosition":   params.VideoPosition,
	}
}

func (s *Service) scheduleSeek(ctx context.Context, grant Grant, params *UpdateStateParams) (UpdateStateResponse, error) {
	settle := func(outcome SeekOutcome) {
		if params.OnSettled != nil {
			params.OnSettled(outcome)
		}
	}

	arrived := s.now()
	commit := func() {
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.commitTimeout)
		defer cancel()

		state, stale, err := s.commitSeek(commitCtx, grant, params, arrived)
		if stale {
			s.logger.DebugContext(ctx, "stale seek skipped", "room_id", grant.roomID, "user_id", grant.userID)
			settle(SeekOutcome{Discarded: true})
			return
		}
		settle(SeekOutcome{State: state, Err: err})
	}
	discard := func() {
		s.logger.DebugContext(ctx, "seek discarded", "room_id", grant.roomID, "user_id", grant.userID)
		settle(SeekOutcome{Discarded: true})
	}

	if !s.debouncer.Schedule(grant.roomID, commit, discard) {
		return UpdateStateResponse{}, upstream("schedule seek", errClosed)
	}

	return UpdateStateResponse{Pending: true}, nil
}

// commit replaces the room state and logs the event while holding the room
// lock, so commits and their log entries are ordered per room.
func (s *Service) commit(ctx context.Context, grant Grant, eventType EventType, params *UpdateStateParams, data map[string]any) (PlaybackState, error) {
	unlock := s.locks.lock(grant.roomID)
	defer unlock()

	return s.commitLocked(ctx, grant, eventType, params, data)
}

// commitSeek commits a debounced seek unless the room state was written after
// the seek arrived. That happens when a play or pause lands while the seek
// timer has already fired but not yet taken the room lock.
func (s *Service) commitSeek(ctx context.Context, grant Grant, params *UpdateStateParams, arrived time.Time) (PlaybackState, bool, error) {
	unlock := s.locks.lock(grant.roomID)
	defer unlock()

	current, err := s.playbackRepo.GetOrInit(ctx, grant.roomID, s.now())
	if err != nil {
		return PlaybackState{}, false, upstream("get playback state", err)
	}
	if current.LastUpdated.UnixMilli() > arrived.UnixMilli() {
		return PlaybackState{}, true, nil
	}

	state, err := s.commitLocked(ctx, grant, EventSeek, params, seekEventData(params))
	return state, false, err
}

func (s *Service) commitLocked(ctx context.Context, grant Grant, eventType EventType, params *UpdateStateParams, data map[string]any) (PlaybackState, error) {
	now := s.now()
	st, err := s.playbackRepo.Commit(ctx, &playback.CommitParams{
		RoomID:        grant.roomID,
		VideoPosition: params.VideoPosition,
		IsPlaying:     params.IsPlaying,
		VideoDuration: params.VideoDuration,
		UpdatedBy:     grant.userID,
		UpdatedAt:     now,
	})
	if err != nil {
		return PlaybackState{}, upstream("commit playback state", err)
	}

	s.appendEvent(ctx, grant.roomID, grant.userID, eventType, data, now)
	s.logger.DebugContext(ctx, "playback state committed", "room_id", grant.roomID, "event_type", eventType.String(), "position", st.VideoPosition, "is_playing", st.IsPlaying)

	return fromRepoState(st), nil
}
