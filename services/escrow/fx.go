package escrow

import (
	"context"
	"time"

	"curtailment-controlplane/pkg/config"
	"curtailment-controlplane/pkg/featureflags"
	"curtailment-controlplane/pkg/health"
	"curtailment-controlplane/pkg/lock"
	"curtailment-controlplane/pkg/task"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("escrow.reconciler",
	fx.Provide(
		NewRepository,
		NewXummGateway,
		NewXrplGateway,
		provideSettler,
		provideReconciler,
		fx.Annotate(
			NewProbe,
			fx.As(new(health.Probe)),
			fx.ResultTags(`group:"health.probes"`),
		),
	),
	fx.Invoke(startReconciler),
)

func provideSettler(cfg *config.Config, enqueuer task.Enqueuer) Settler {
	return NewTaskSettler(enqueuer, cfg.Reward.Queue, cfg.Reward.MaxRetry)
}

type reconcilerParams struct {
	fx.In

	Config   *config.Config
	Repo     Repository
	Xumm     *XummGateway
	Xrpl     *XrplGateway
	Verifier ParticipationVerifier
	Creators CreatorDirectory
	Settler  Settler                  `optional:"true"`
	Locker   lock.Locker              `optional:"true"`
	Flags    featureflags.FeatureFlag `optional:"true"`
	Passes   []Pass                   `group:"escrow.passes"`
}

func provideReconciler(p reconcilerParams) *Reconciler {
	return NewReconciler(Dependencies{
		Repo:     p.Repo,
		Signing:  p.Xumm,
		Ledger:   p.Xrpl,
		Signer:   p.Xumm,
		Verifier: p.Verifier,
		Creators: p.Creators,
		Settler:  p.Settler,
		Locker:   p.Locker,
		Flags:    p.Flags,
		Passes:   p.Passes,
	}, Config{
		Interval:    p.Config.Reconciler.Interval,
		Lookback:    p.Config.Reconciler.Lookback,
		Concurrency: p.Config.Reconciler.Concurrency,
		LockTTL:     p.Config.Reconciler.LockTTL,
	})
}

func startReconciler(lc fx.Lifecycle, r *Reconciler) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				r.Run(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				zap.L().Warn("[Reconciler] shutdown timed out, abandoning in-flight tick")
			case <-time.After(30 * time.Second):
			}
			return nil
		},
	})
}

// compile-time checks
var (
	_ SigningGateway = (*XummGateway)(nil)
	_ LedgerSigner   = (*XummGateway)(nil)
	_ LedgerGateway  = (*XrplGateway)(nil)
	_ Settler        = (*TaskSettler)(nil)
	_ health.Probe   = (*Probe)(nil)
)
