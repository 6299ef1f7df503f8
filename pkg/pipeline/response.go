package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/actions"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/playbook"
)

// ResponseTaskName identifies the response loop in metrics and the
// scheduler.
const ResponseTaskName = "response"

// ResponseTask matches recent security events against the playbook set
// and hands matched playbooks to the action dispatcher. Each cycle
// evaluates against a single playbook snapshot, so a mid-cycle reload
// never mixes rule versions.
type ResponseTask struct {
	sink       *events.Sink
	playbooks  *playbook.Store
	dispatcher *actions.Dispatcher
	execCtx    actions.ExecutionContext
	lookback   time.Duration
	guard      cycleGuard

	// watermark is the timestamp of the newest event already handled.
	// Cycles overlap in what they read (the lookback window slides less
	// than it spans), so without it the same event would be re-evaluated
	// every cycle it stays inside the window. Guarded by cycleGuard.
	watermark time.Time

	logger zerolog.Logger
}

// NewResponseTask assembles the response loop.
func NewResponseTask(sink *events.Sink, playbooks *playbook.Store, dispatcher *actions.Dispatcher, execCtx actions.ExecutionContext, lookback time.Duration, logger zerolog.Logger) *ResponseTask {
	return &ResponseTask{
		sink:       sink,
		playbooks:  playbooks,
		dispatcher: dispatcher,
		execCtx:    execCtx,
		lookback:   lookback,
		logger:     logger.With().Str("component", "pipeline").Str("pipeline", ResponseTaskName).Logger(),
	}
}

// Name implements scheduler.Task.
func (t *ResponseTask) Name() string { return ResponseTaskName }

// Run implements scheduler.Task.
func (t *ResponseTask) Run(ctx context.Context) {
	if !t.guard.tryStart(ResponseTaskName, t.logger) {
		return
	}
	defer t.guard.finish()

	started := time.Now()
	defer observeCycle(ResponseTaskName, started)

	end := time.Now().UTC()
	evs, err := t.sink.ReadEvents(ctx, end.Add(-t.lookback), end)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to read security events, skipping cycle")
		return
	}
	if len(evs) == 0 {
		t.logger.Debug().Msg("No security events in window")
		return
	}

	snapshot := t.playbooks.Current()

	// Each event is handled once per process lifetime. Live actions stay
	// protected across restarts by the dedup guard; the watermark keeps a
	// dry-run rule from re-simulating the same event every cycle.
	processed, dispatched := 0, 0
	maxSeen := t.watermark
	for _, ev := range evs {
		if !ev.Timestamp.After(t.watermark) {
			continue
		}
		if ev.Timestamp.After(maxSeen) {
			maxSeen = ev.Timestamp
		}
		processed++
		for _, pb := range snapshot.Match(ev) {
			t.dispatcher.Dispatch(ctx, t.execCtx, pb, ev)
			dispatched++
		}
	}
	t.watermark = maxSeen

	t.logger.Info().Int("events", processed).Int("playbooks_dispatched", dispatched).
		Dur("took", time.Since(started)).Msg("Response cycle complete")
}
