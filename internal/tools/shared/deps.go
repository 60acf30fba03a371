package shared

import (
	"time"

	"geminilab/internal/adapters/config"
	"geminilab/internal/tools/middleware"
	"geminilab/pkg/logger"
)

// Deps bundles dependencies required by concrete tool implementations
type Deps struct {
	Config config.ToolsConfig
	Stats  middleware.Recorder
	Now    func() time.Time
	Log    *logger.Logger
}

// Clock returns Now, or time.Now when unset
func (d Deps) Clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// Logger returns Log, or the global logger when unset
func (d Deps) Logger() *logger.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.Get()
}

// Build applies the configured retry and stats middleware to a handler
func (d Deps) Build(f *middleware.Factory) *middleware.Factory {
	if d.Config.RetryAttempts > 1 {
		f = f.WithRetry(d.Config.RetryAttempts, d.Config.RetryBackoff)
	}
	return f.WithStats(d.Stats)
}
