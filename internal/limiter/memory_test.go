package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_BlocksAfterMaxFails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, time.Minute, 3, 10*time.Minute)
	ip := HashIP("10.0.0.1:5555")

	for i := 0; i < 2; i++ {
		blocked, _, err := m.Failure(ctx, "0xabc", ip)
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := m.Failure(ctx, "0xabc", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)

	ok, retry, err := m.Allow(ctx, "0xabc", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, retry, time.Duration(0))

	ok, _, err = m.Allow(ctx, "0xabc", HashIP("10.0.0.2:1"))
	require.NoError(t, err)
	require.True(t, ok, "other ip is independent")
}

func TestMemory_SuccessResets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, time.Minute, 2, time.Minute)
	ip := HashIP("x")

	_, _, _ = m.Failure(ctx, "a", ip)
	require.NoError(t, m.Success(ctx, "a", ip))
	blocked, _, err := m.Failure(ctx, "a", ip)
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestMemory_WindowRestartsCount(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, time.Minute, 2, time.Hour)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ip := HashIP("x")

	_, _, _ = m.Failure(ctx, "a", ip)
	now = now.Add(2 * time.Minute)
	blocked, _, err := m.Failure(ctx, "a", ip)
	require.NoError(t, err)
	require.False(t, blocked, "first failure fell out of the window")
}
