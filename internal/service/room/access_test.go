package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizePolicy(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	host := env.user(t, "host")
	guest := env.user(t, "guest")
	member := env.user(t, "member")

	public := env.room(t, host, false)
	private := env.room(t, host, true)

	_, err := env.svc.JoinRoom(ctx, &JoinRoomParams{RoomID: private.ID, UserID: member, Password: "letmein"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		roomID string
		userID string
		role   Role
		err    error
	}{
		{"host on private", private.ID, host, RoleHost, nil},
		{"host on public", public.ID, host, RoleHost, nil},
		{"guest on public", public.ID, guest, RolePublic, nil},
		{"guest on private", private.ID, guest, 0, ErrAccessDenied},
		{"member on private", private.ID, member, RoleParticipant, nil},
		{"missing room", "00000000-0000-0000-0000-000000000000", host, 0, ErrRoomNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := env.svc.Authorize(ctx, tc.roomID, tc.userID)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.role, g.Role())
			assert.Equal(t, tc.roomID, g.RoomID())
			assert.Equal(t, tc.userID, g.UserID())
		})
	}

	require.NoError(t, env.svc.LeaveRoom(ctx, private.ID, member))
	_, err = env.svc.Authorize(ctx, private.ID, member)
	assert.ErrorIs(t, err, ErrAccessDenied, "inactive participation must not pass")
}

func TestZeroGrantIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.GetState(context.Background(), Grant{})
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = env.svc.UpdateState(context.Background(), Grant{}, &UpdateStateParams{EventType: EventPlay})
	assert.ErrorIs(t, err, ErrAccessDenied)
}
