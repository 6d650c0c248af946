package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ProviderConfig configures the metrics SDK provider InitProvider builds.
type ProviderConfig struct {
	// ServiceName defaults to "lvcsr" when empty. InitProvider attaches no
	// resource to the MeterProvider, so the name is not exported with the
	// metrics.
	ServiceName string
}

// InitProvider wires an SDK MeterProvider backed by a Prometheus
// exporter, registers it as the process-global provider, and returns
// the Metrics instance plus a shutdown function a caller should defer
// from main. The exporter itself serves /metrics once the caller mounts
// promhttp's handler (or the otel exporter's own default registry) on
// the address config.TelemetryConfig.ListenAddr names; that HTTP
// plumbing belongs to cmd/, not this package.
func InitProvider(ctx context.Context, cfg ProviderConfig) (met *Metrics, shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "lvcsr"
	}

	exp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)

	met, err = NewMetrics(mp)
	if err != nil {
		return nil, nil, err
	}

	return met, mp.Shutdown, nil
}
