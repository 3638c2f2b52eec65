package telemetry

import (
	"context"
)

type cycleIDKey struct{}

// WithCycleID returns a context tagged with the update cycle identifier.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

// CycleID returns the update cycle identifier stored in ctx, if any.
func CycleID(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)

	return id
}
