package room

import (
	"math"
	"time"
)

// ProjectPosition returns where playback is at now. A playing state advances
// by the wall-clock time elapsed since it was last written; the result is
// never negative.
func ProjectPosition(state PlaybackState, now time.Time) float64 {
	if !state.IsPlaying || state.LastUpdated.IsZero() {
		return state.VideoPosition
	}

	elapsed := now.Sub(state.LastUpdated).Seconds()

	return math.Max(0, state.VideoPosition+elapsed)
}

func project(state PlaybackState, now time.Time) SyncedState {
	projected := state
	projected.VideoPosition = ProjectPosition(state, now)

	return SyncedState{
		PlaybackState: projected,
		SyncTimestamp: now.UnixMilli(),
	}
}
