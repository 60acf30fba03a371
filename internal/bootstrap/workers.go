package bootstrap

import (
	"time"

	"geminilab/internal/adapters/config"
	"geminilab/internal/workers"
)

// provideWorkers registers the relay's maintenance workers. A zero interval
// in config disables the corresponding worker.
func provideWorkers(
	cfg config.WorkerConfig,
	liveCfg config.LiveConfig,
	issuer workers.TokenRefresher,
	proxy workers.Reaper,
	usage workers.UsageSource,
	toolStats workers.ToolStatsSource,
) *workers.Scheduler {
	scheduler := workers.NewScheduler()

	scheduler.RegisterWorker(workers.NewTokenPrewarmer(issuer, cfg.TokenPrewarmInterval))
	scheduler.RegisterWorker(workers.NewSessionReaper(proxy, cfg.SessionReaperInterval, liveCfg.MaxSessionDuration))
	scheduler.RegisterWorker(workers.NewUsageReporter(usage, toolStats, cfg.UsageReportInterval))

	return scheduler
}

func maxInterval(cfg config.WorkerConfig) time.Duration {
	return max(cfg.TokenPrewarmInterval, cfg.SessionReaperInterval, cfg.UsageReportInterval)
}
