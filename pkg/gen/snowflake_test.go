package gen

import (
	"testing"

	"curtailment-controlplane/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestSnowflakeIDsAreUniqueAndOrdered(t *testing.T) {
	g, err := NewSnowflakeNode(&config.Config{NodeID: 3})
	require.NoError(t, err)

	prev := g.NextID()
	for i := 0; i < 100; i++ {
		next := g.NextID()
		require.NotEqual(t, prev, next)
		require.Len(t, next, len(prev))
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestSnowflakeRejectsInvalidNode(t *testing.T) {
	_, err := NewSnowflakeNode(&config.Config{NodeID: 5000})
	require.Error(t, err)
}
