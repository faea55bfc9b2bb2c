package engine

import (
	"context"

	"github.com/mesh-intelligence/cmdb/internal/hooks"
)

type actorKey struct{}

// WithActor attaches the name of the user performing the request. Hook
// events carry it.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor attached to ctx, or hooks.DefaultActor.
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return hooks.DefaultActor
}
