package featureflags

import (
	"context"

	"curtailment-controlplane/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

// Flag names understood by the reconciler.
const (
	ReconcilerEnabled   = "escrow_reconciler_enabled"
	RewardPayoutsPaused = "reward_payouts_paused"
)

type FeatureFlag interface {
	// Enabled returns fallback when the flag service is not configured or
	// cannot be reached.
	Enabled(ctx context.Context, name string, fallback bool) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Enabled(ctx context.Context, name string, fallback bool) bool {
	if s.client == nil {
		return fallback
	}

	flags, err := s.client.GetEnvironmentFlags()
	if err != nil {
		zap.L().Warn("feature flags unavailable, using fallback", zap.String("flag", name), zap.Bool("fallback", fallback), zap.Error(err))
		return fallback
	}

	enabled, err := flags.IsFeatureEnabled(name)
	if err != nil {
		return fallback
	}
	return enabled
}

// Static is a fixed flag set, mostly for tests and local runs.
type Static map[string]bool

func (s Static) Enabled(ctx context.Context, name string, fallback bool) bool {
	if v, ok := s[name]; ok {
		return v
	}
	return fallback
}
