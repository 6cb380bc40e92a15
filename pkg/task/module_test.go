package task

import (
	"testing"

	"curtailment-controlplane/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestQueuesIncludeRewardQueue(t *testing.T) {
	cfg := &config.Config{}
	cfg.Reward.Queue = "settlement"

	queues := Queues(cfg)
	require.Equal(t, 10, queues["settlement"])
	require.Equal(t, 10, queues["critical"])
	require.Len(t, queues, 4)
}

func TestQueuesKeepDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Reward.Queue = "critical"

	require.Len(t, Queues(cfg), 3)
}
