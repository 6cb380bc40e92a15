package main

import (
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"curtailment-controlplane/pkg/config"
	"curtailment-controlplane/pkg/db"
	"curtailment-controlplane/pkg/featureflags"
	"curtailment-controlplane/pkg/gen"
	"curtailment-controlplane/pkg/hashistack/secretmanager"
	"curtailment-controlplane/pkg/hashistack/servicediscover"
	"curtailment-controlplane/pkg/health"
	"curtailment-controlplane/pkg/lock"
	"curtailment-controlplane/pkg/logger"
	"curtailment-controlplane/pkg/otelcol"
	"curtailment-controlplane/pkg/profiling"
	"curtailment-controlplane/pkg/redis"
	"curtailment-controlplane/pkg/server"
	"curtailment-controlplane/pkg/task"
	"curtailment-controlplane/pkg/xrpl"
	"curtailment-controlplane/pkg/xumm"
	"curtailment-controlplane/services/curtailment"
	"curtailment-controlplane/services/escrow"
	"curtailment-controlplane/services/reward"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		configModule(),
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		lock.Module,
		gen.Module,
		featureflags.Module,
		task.Client,
		task.Server,
		xumm.Module,
		xrpl.Module,
		curtailment.Module,
		escrow.Module,
		reward.Module,
		health.Module,
		server.ProvideHTTPServer,
		servicediscover.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

// configModule reads from a remote provider when one is configured.
func configModule() fx.Option {
	if _, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		return config.RemoteModule
	}
	return config.Module
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})
