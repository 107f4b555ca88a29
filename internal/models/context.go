package models

import "context"

type eventContextKey struct{}

// EventContext carries the gateway event being reconciled so that downstream
// logs can be correlated with the webhook delivery that triggered them.
type EventContext struct {
	EventId string
	RawType string
}

// WithEventContext attaches gateway event data to a context.
func WithEventContext(ctx context.Context, ec *EventContext) context.Context {
	return context.WithValue(ctx, eventContextKey{}, ec)
}

// GetEventContext retrieves gateway event data from context, or nil if absent.
func GetEventContext(ctx context.Context) *EventContext {
	ec, _ := ctx.Value(eventContextKey{}).(*EventContext)
	return ec
}
