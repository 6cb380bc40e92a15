package otelcol

import (
	"context"

	"curtailment-controlplane/pkg/config"
	"curtailment-controlplane/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module installs a global tracer provider exporting over OTLP when
// OTEL.ADDR is configured. Without it the otel globals stay no-op.
var Module = fx.Module("otelcol",
	fx.Invoke(registerTracing),
)

func serviceResource(cfg *config.Config) *resource.Resource {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		return resource.Default()
	}
	return res
}

func registerTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Otel.Addr == "" {
		zap.L().Debug("otel exporter disabled")
		return nil
	}

	var exporter trace.SpanExporter
	var err error
	if cfg.Otel.Protocol == "http" {
		exporter, err = exporters.ProvideHttp(cfg)
	} else {
		exporter, err = exporters.ProvideGrpc(cfg)
	}
	if err != nil {
		return err
	}

	tp := ProvideTrace(exporter, trace.WithResource(serviceResource(cfg)))
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return nil
}

func defaultTraceProviderOption() []trace.TracerProviderOption {
	return []trace.TracerProviderOption{
		trace.WithResource(resource.Default()),
	}
}

func ProvideTrace(exporter trace.SpanExporter, opts ...trace.TracerProviderOption) *trace.TracerProvider {
	if len(opts) == 0 {
		opts = defaultTraceProviderOption()
	}

	opts = append(opts, trace.WithBatcher(exporter))

	return trace.NewTracerProvider(opts...)
}

func defaultMetricProviderOption() []metric.Option {
	return []metric.Option{
		metric.WithResource(resource.Default()),
	}
}

func ProvideMetric(reader metric.Reader, opts ...metric.Option) *metric.MeterProvider {
	if len(opts) == 0 {
		opts = defaultMetricProviderOption()
	}

	opts = append(opts, metric.WithReader(reader))

	return metric.NewMeterProvider(opts...)
}
