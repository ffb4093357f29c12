package observability

import "orangebook/internal/config"

// Scope attaches the service identity, and optionally a component name, to
// every log line and metric sample.
func Scope(logger Logger, metrics Metrics, cfg *config.Config, component string) (Logger, Metrics) {
	fields := map[string]interface{}{
		"service": cfg.ServiceName,
		"version": cfg.Version,
		"env":     cfg.Environment,
	}
	tags := map[string]string{
		"service": cfg.ServiceName,
		"env":     cfg.Environment,
	}
	if component != "" {
		fields["component"] = component
		tags["component"] = component
	}
	return logger.WithFields(fields), metrics.WithTags(tags)
}
