package config

import "log/slog"

// LoggingUpdater defines the interface for components that can update
// logging levels at runtime.
type LoggingUpdater interface {
	UpdateLevel(level string) error
}

// ProvidersUpdater defines the interface for components that can react to a
// change in the configured provider set without a restart.
type ProvidersUpdater interface {
	UpdateProviders(providers []ProviderConfig) error
}

// ComponentRegistry holds references to updatable components, mirroring the
// teacher's hot-reload fan-out pattern.
type ComponentRegistry struct {
	Logging   LoggingUpdater
	Providers ProvidersUpdater
	logger    *slog.Logger
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry(logger *slog.Logger) *ComponentRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	return &ComponentRegistry{logger: logger}
}

// RegisterLogging registers a logging updater.
func (r *ComponentRegistry) RegisterLogging(updater LoggingUpdater) {
	r.Logging = updater
}

// RegisterProviders registers a providers updater.
func (r *ComponentRegistry) RegisterProviders(updater ProvidersUpdater) {
	r.Providers = updater
}

// ApplyUpdates applies configuration updates to all registered components.
func (r *ComponentRegistry) ApplyUpdates(oldConfig, newConfig *Config) {
	if oldConfig.Log.Level != newConfig.Log.Level {
		if r.Logging != nil {
			if err := r.Logging.UpdateLevel(newConfig.Log.Level); err != nil {
				r.logger.Error("failed to update log level", "err", err)
			} else {
				r.logger.Info("log level updated", "old", oldConfig.Log.Level, "new", newConfig.Log.Level)
			}
		}
	}

	if !providersEqual(oldConfig.Providers, newConfig.Providers) {
		if r.Providers != nil {
			if err := r.Providers.UpdateProviders(newConfig.Providers); err != nil {
				r.logger.Error("failed to update providers", "err", err)
			} else {
				r.logger.Info("providers updated", "count", len(newConfig.Providers))
			}
		}
	}
}

func providersEqual(a, b []ProviderConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].BaseURL != b[i].BaseURL || a[i].Kind != b[i].Kind {
			return false
		}
	}
	return true
}
