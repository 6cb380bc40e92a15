package reward

import (
	"curtailment-controlplane/pkg/config"
	"curtailment-controlplane/pkg/featureflags"
	"curtailment-controlplane/pkg/gen"
	"curtailment-controlplane/pkg/lock"
	"curtailment-controlplane/pkg/xumm"
	"curtailment-controlplane/services/curtailment"
	"curtailment-controlplane/services/escrow"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("reward",
	fx.Provide(
		provideEngine,
		NewTask,
		fx.Annotate(
			NewPaymentPass,
			fx.As(new(escrow.Pass)),
			fx.ResultTags(`group:"escrow.passes"`),
		),
	),
	fx.Invoke(registerHandlers),
)

type engineParams struct {
	fx.In

	Config  *config.Config
	DB      *gorm.DB
	Events  curtailment.Repository
	IDs     gen.IDGenerator
	Xumm    *xumm.Client
	Signing *escrow.XummGateway
	Ledger  *escrow.XrplGateway
	Locker  lock.Locker              `optional:"true"`
	Flags   featureflags.FeatureFlag `optional:"true"`
}

func provideEngine(p engineParams) *Engine {
	return NewEngine(Options{
		DB:      p.DB,
		Events:  p.Events,
		IDs:     p.IDs,
		Payout:  NewXummPayout(p.Xumm, p.Config.Reward.ReserveAddress),
		Signing: p.Signing,
		Ledger:  p.Ledger,
		Locker:  p.Locker,
		Flags:   p.Flags,
	})
}
