package profiling

import (
	"context"
	"fmt"

	"curtailment-controlplane/pkg/config"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("profiling", fx.Invoke(ProvideProfiling))

func profileTypes() []pyroscope.ProfileType {
	return []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
		pyroscope.ProfileMutexCount,
		pyroscope.ProfileBlockCount,
	}
}

// ProvideProfiling is a no-op unless PYROSCOPE.ADDR is set.
func ProvideProfiling(lc fx.Lifecycle, c *config.Config) {
	if c.Pyroscope.Addr == "" {
		zap.L().Debug("pyroscope disabled")
		return
	}

	var profiler *pyroscope.Profiler
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("starting pyroscope", zap.String("app_name", c.AppName), zap.String("pyroscope_addr", c.Pyroscope.Addr))
			p, err := pyroscope.Start(pyroscope.Config{
				ApplicationName: c.AppName,
				ServerAddress:   c.Pyroscope.Addr,
				ProfileTypes:    profileTypes(),
				Tags: map[string]string{
					"service_name": c.AppName,
					"env":          c.AppEnv,
					"node_id":      fmt.Sprint(c.NodeID),
				},
			})
			if err != nil {
				// profiling is best effort
				zap.L().Error("failed to start pyroscope", zap.Error(err))
				return nil
			}
			profiler = p
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if profiler == nil {
				return nil
			}
			zap.L().Info("Shutting down Pyroscope")
			return profiler.Stop()
		},
	})
}
