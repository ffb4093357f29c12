// Package factory builds the observability adapters selected by configuration.
package factory

import (
	"fmt"

	"orangebook/internal/config"
	"orangebook/internal/observability"
	"orangebook/internal/observability/adapters/prometheus"
	"orangebook/internal/observability/adapters/stdout"
)

// New builds the logger and metrics adapters selected by cfg, scoped to the service
func New(cfg *config.Config) (observability.Logger, observability.Metrics, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration is required")
	}

	var logger observability.Logger = stdout.NewLogger(stdout.LoggerOptions{
		Level: cfg.LogLevel,
		JSON:  cfg.LogFormat == "json",
	})

	var metrics observability.Metrics
	switch cfg.Adapters.Metrics {
	case "stdout":
		metrics = stdout.NewMetrics(cfg.LogFormat == "json")
	case "prometheus":
		metrics = prometheus.NewMetrics(prometheus.Options{
			Namespace:      cfg.Metrics.Namespace,
			PushgatewayURL: cfg.Metrics.PushgatewayURL,
			Job:            cfg.ServiceName,
		})
	default:
		return nil, nil, fmt.Errorf("unsupported metrics adapter: %s", cfg.Adapters.Metrics)
	}

	logger, metrics = observability.Scope(logger, metrics, cfg, "")
	return logger, metrics, nil
}
