package featureflags

import (
	"context"
	"testing"

	"curtailment-controlplane/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestUnconfiguredUsesFallback(t *testing.T) {
	ff := ProvideFeatureFlag(FeatureParams{Config: &config.Config{}})

	require.True(t, ff.Enabled(context.Background(), ReconcilerEnabled, true))
	require.False(t, ff.Enabled(context.Background(), RewardPayoutsPaused, false))
}

func TestStatic(t *testing.T) {
	ff := Static{ReconcilerEnabled: false}

	require.False(t, ff.Enabled(context.Background(), ReconcilerEnabled, true))
	require.True(t, ff.Enabled(context.Background(), "unknown_flag", true))
}
