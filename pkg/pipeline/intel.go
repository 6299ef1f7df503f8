package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/intel"
)

// IntelTaskName identifies the threat-intel refresh in the scheduler.
const IntelTaskName = "intel_refresh"

// IntelTask refreshes the IOC store from the configured feeds.
type IntelTask struct {
	fetcher *intel.Fetcher
	guard   cycleGuard
	logger  zerolog.Logger
}

// NewIntelTask wraps the feed fetcher as a scheduled task.
func NewIntelTask(fetcher *intel.Fetcher, logger zerolog.Logger) *IntelTask {
	return &IntelTask{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "pipeline").Str("pipeline", IntelTaskName).Logger(),
	}
}

// Name implements scheduler.Task.
func (t *IntelTask) Name() string { return IntelTaskName }

// Run implements scheduler.Task.
func (t *IntelTask) Run(ctx context.Context) {
	if !t.guard.tryStart(IntelTaskName, t.logger) {
		return
	}
	defer t.guard.finish()

	started := time.Now()
	defer observeCycle(IntelTaskName, started)

	t.fetcher.FetchAll(ctx)
}
