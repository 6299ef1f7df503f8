// Package pipeline contains the scheduled tasks that make up the
// detection and response loop: the per-window detection cycles, the
// response cycle that matches fresh events against playbooks, and the
// threat-intel refresh.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logstore"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/metrics"
)

// Telemetry fetches Suricata records from the log backend for one
// detection window, split by record kind.
type Telemetry struct {
	store *logstore.Client
}

// NewTelemetry creates a telemetry source over the log store client.
func NewTelemetry(store *logstore.Client) *Telemetry {
	return &Telemetry{store: store}
}

func (t *Telemetry) fetch(ctx context.Context, eventType string, start, end time.Time) ([]logstore.RawRecord, error) {
	selector := logstore.Selector(map[string]string{
		"job":        "suricata",
		"event_type": eventType,
	})
	return t.store.QueryRange(ctx, selector, start, end)
}

// Flows returns the flow records for the window.
func (t *Telemetry) Flows(ctx context.Context, start, end time.Time) ([]logstore.RawRecord, error) {
	return t.fetch(ctx, "flow", start, end)
}

// DNS returns the DNS records for the window.
func (t *Telemetry) DNS(ctx context.Context, start, end time.Time) ([]logstore.RawRecord, error) {
	return t.fetch(ctx, "dns", start, end)
}

// Alerts returns the IDS alert records for the window.
func (t *Telemetry) Alerts(ctx context.Context, start, end time.Time) ([]logstore.RawRecord, error) {
	return t.fetch(ctx, "alert", start, end)
}

// cycleGuard keeps a task from overlapping itself. A cycle that is still
// running when the next tick (or a manual trigger) arrives wins; the new
// cycle is skipped and counted.
type cycleGuard struct {
	running atomic.Bool
}

func (g *cycleGuard) tryStart(task string, logger zerolog.Logger) bool {
	if !g.running.CompareAndSwap(false, true) {
		metrics.CyclesSkipped.WithLabelValues(task).Inc()
		logger.Warn().Str("task", task).Msg("Previous cycle still running, skipping")
		return false
	}
	return true
}

func (g *cycleGuard) finish() {
	g.running.Store(false)
}

func observeCycle(task string, start time.Time) {
	metrics.CycleDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}
