package common

import "context"

type ctxKey string

const (
	userIDKey   ctxKey = "auth/user-id"
	userSlotKey ctxKey = "auth/user-slot"
)

type userSlot struct{ id string }

// WithUserSlot prepares ctx so that a user id attached further down the
// middleware chain is also visible to code holding this outer context.
func WithUserSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, userSlotKey, &userSlot{})
}

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	if slot, ok := ctx.Value(userSlotKey).(*userSlot); ok {
		slot.id = id
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
// Anonymous callers yield ("", false).
func UserID(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		return id, true
	}
	if slot, ok := ctx.Value(userSlotKey).(*userSlot); ok && slot.id != "" {
		return slot.id, true
	}
	return "", false
}
