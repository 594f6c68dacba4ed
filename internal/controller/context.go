package controller

import (
	"context"

	"github.com/sharetube/watchsync/internal/auth"
)

type contextKey int

const identityCtxKey contextKey = iota

func withIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

func (c *Controller) getIdentityFromCtx(ctx context.Context) auth.Identity {
	identity, ok := ctx.Value(identityCtxKey).(auth.Identity)
	if !ok {
		return auth.Identity{}
	}

	return identity
}
