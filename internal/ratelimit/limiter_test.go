package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Hit(context.Context, string, string, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestLimiterAdmitsUpToLimit(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryCounterStoreWithClock(func() time.Time { return now })
	limiter := NewLimiter(store, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(context.Background(), 7, ActionCreateMessage)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be admitted", i+1)
	}

	allowed, err := limiter.Allow(context.Background(), 7, ActionCreateMessage)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiterRejectionDoesNotConsumeBudget(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryCounterStoreWithClock(func() time.Time { return now })
	limiter := NewLimiter(store, 1, time.Minute)

	allowed, err := limiter.Allow(context.Background(), 7, ActionCreateMessage)
	require.NoError(t, err)
	require.True(t, allowed)

	// Repeated rejections must not extend the window or grow the counter.
	for i := 0; i < 5; i++ {
		allowed, err = limiter.Allow(context.Background(), 7, ActionCreateMessage)
		require.NoError(t, err)
		assert.False(t, allowed)
	}

	now = now.Add(time.Minute)
	allowed, err = limiter.Allow(context.Background(), 7, ActionCreateMessage)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiterResetsAfterWindowElapses(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryCounterStoreWithClock(func() time.Time { return now })
	limiter := NewLimiter(store, 2, time.Minute)

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(context.Background(), 7, ActionCreateMessage)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	now = now.Add(59 * time.Second)
	allowed, err := limiter.Allow(context.Background(), 7, ActionCreateMessage)
	require.NoError(t, err)
	assert.False(t, allowed)

	now = now.Add(time.Second)
	allowed, err = limiter.Allow(context.Background(), 7, ActionCreateMessage)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiterIsolatesUsersAndActions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryCounterStoreWithClock(func() time.Time { return now })
	limiter := NewLimiter(store, 1, time.Minute)

	allowed, err := limiter.Allow(context.Background(), 7, ActionCreateMessage)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), 8, ActionCreateMessage)
	require.NoError(t, err)
	assert.True(t, allowed, "a different user has their own budget")

	allowed, err = limiter.Allow(context.Background(), 7, "message:edit")
	require.NoError(t, err)
	assert.True(t, allowed, "a different action has its own budget")
}

func TestLimiterFailsClosedOnStoreError(t *testing.T) {
	limiter := NewLimiter(failingStore{}, 10, time.Minute)

	allowed, err := limiter.Allow(context.Background(), 7, ActionCreateMessage)
	assert.False(t, allowed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestLimiterReportsConfiguredShape(t *testing.T) {
	limiter := NewLimiter(NewMemoryCounterStore(), 10, 90*time.Second)

	assert.Equal(t, 10, limiter.Limit())
	assert.Equal(t, 90, limiter.WindowSeconds())
}
