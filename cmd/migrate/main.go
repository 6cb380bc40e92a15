package main

import (
	"context"
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"curtailment-controlplane/pkg/config"
	"curtailment-controlplane/pkg/db"
	"curtailment-controlplane/pkg/hashistack/secretmanager"
	"curtailment-controlplane/pkg/logger"
	"curtailment-controlplane/services/curtailment"
	"curtailment-controlplane/services/escrow"
	"curtailment-controlplane/services/reward"
)

// Models lists every table the control plane reads or owns.
var Models = []any{
	&curtailment.Event{},
	&curtailment.Participation{},
	&curtailment.UserWallet{},
	&escrow.Escrow{},
	&reward.Allocation{},
	&reward.Payment{},
	&reward.Hold{},
}

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		fx.Invoke(migrate),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	_ = app.Stop(context.Background())
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		zap.L().Error("auto migrate failed", zap.Error(err))
		return err
	}
	zap.L().Info("schema migrated", zap.Int("tables", len(Models)))
	return nil
}
