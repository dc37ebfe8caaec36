package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultLoggingUpdater manages dynamic logging level updates against a
// shared leveler (see internal/slogutil.DynamicLeveler) without replacing
// the configured handler/writer pair.
type DefaultLoggingUpdater struct {
	setLevel func(slog.Level)
	current  string
	mutex    sync.RWMutex
}

// NewLoggingUpdater creates a new logging updater wired to setLevel, the
// mutator of the process's active leveler.
func NewLoggingUpdater(initialLevel string, setLevel func(slog.Level)) LoggingUpdater {
	return &DefaultLoggingUpdater{
		setLevel: setLevel,
		current:  initialLevel,
	}
}

// UpdateLevel updates the active logging level.
func (u *DefaultLoggingUpdater) UpdateLevel(level string) error {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.current == level {
		return nil
	}

	parsed, err := parseLoggingLevel(level)
	if err != nil {
		return err
	}

	u.current = level
	if u.setLevel != nil {
		u.setLevel(parsed)
	}
	return nil
}

func parseLoggingLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
