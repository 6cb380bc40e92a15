package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopLockerAlwaysAcquires(t *testing.T) {
	l := NewRedisLocker(Params{})
	require.IsType(t, Noop{}, l)

	release, err := l.Acquire(context.Background(), "escrow:1", time.Second)
	require.NoError(t, err)
	release()
	release()

	_, err = l.Acquire(context.Background(), "escrow:1", time.Second)
	require.NoError(t, err)
}

func TestRandomTokenIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		tok, err := randomToken()
		require.NoError(t, err)
		require.Len(t, tok, 32)
		require.False(t, seen[tok])
		seen[tok] = true
	}
}
