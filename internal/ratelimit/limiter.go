package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable signals that the shared counter store could not be
// reached. Callers must treat this as a rejection, never as an admission.
var ErrStoreUnavailable = errors.New("rate limit counter store unavailable")

// ActionCreateMessage is the action class for message-creation requests.
const ActionCreateMessage = "message:create"

// CounterStore is the shared per-(subject, action) window counter. Hit must
// be atomic across processes: reset-or-increment-and-compare happens as one
// operation. A rejected hit leaves the counter untouched.
type CounterStore interface {
	Hit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error)
}

// Limiter enforces at most Limit admitted operations per rolling window for
// each (user, action) pair.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

// NewLimiter builds a Limiter over the given counter store.
func NewLimiter(store CounterStore, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow admits or rejects one operation for the user. Store failure fails
// closed: the request is rejected and the error surfaced.
func (l *Limiter) Allow(ctx context.Context, userID int, action string) (bool, error) {
	subject := fmt.Sprintf("user:%d", userID)
	allowed, err := l.store.Hit(ctx, subject, action, l.limit, l.window)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return allowed, nil
}

// Limit returns the configured cap, for error payloads.
func (l *Limiter) Limit() int { return l.limit }

// WindowSeconds returns the window length in seconds, for error payloads.
func (l *Limiter) WindowSeconds() int { return int(l.window / time.Second) }
