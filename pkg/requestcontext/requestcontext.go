// Package requestcontext carries per-request values (clock, actor) through
// context. Services read time via Now so tests can pin the clock
// deterministically.
package requestcontext

import (
	"context"
	"time"
)

type nowKey struct{}

type actorKey struct{}

// WithActor records who initiated the request, for audit attribution.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the initiating identity, or empty when unattributed.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok {
		return actor
	}
	return ""
}

// WithNow overrides the clock for the remainder of the context chain.
// Intended for tests and replayed operations.
func WithNow(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, now)
}

// Now returns the pinned clock if present, otherwise the wall clock in UTC.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(nowKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}
