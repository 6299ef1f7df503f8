package actions

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/dedup"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/metrics"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/playbook"
)

const (
	defaultCooldown   = 1 * time.Hour
	defaultMaxRetries = 2 // retries after the first attempt, 3 attempts total
)

// AuditWriter records every attempted action, including simulated and
// deduplicated ones.
type AuditWriter interface {
	WriteAudit(ctx context.Context, rec events.AuditRecord) error
}

// Dispatcher executes (or simulates) the actions of matched playbooks.
// One playbook's failure never prevents evaluation of the next; every
// attempt leaves an audit record.
type Dispatcher struct {
	providers map[string]Provider
	cooldowns map[string]time.Duration
	guard     dedup.Guard
	audit     AuditWriter
	retries   uint64
	mu        sync.RWMutex
	logger    zerolog.Logger
}

// NewDispatcher creates an action dispatcher. maxRetries < 0 selects the
// default retry ceiling.
func NewDispatcher(guard dedup.Guard, audit AuditWriter, maxRetries int, logger zerolog.Logger) *Dispatcher {
	retries := uint64(defaultMaxRetries)
	if maxRetries >= 0 {
		retries = uint64(maxRetries)
	}
	return &Dispatcher{
		providers: make(map[string]Provider),
		cooldowns: make(map[string]time.Duration),
		guard:     guard,
		audit:     audit,
		retries:   retries,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Register adds an action provider with the cool-down for its dedup keys.
// cooldown <= 0 selects the default.
func (d *Dispatcher) Register(p Provider, cooldown time.Duration) {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	d.mu.Lock()
	d.providers[p.Type()] = p
	d.cooldowns[p.Type()] = cooldown
	d.mu.Unlock()

	d.logger.Info().Str("action", p.Type()).Dur("cooldown", cooldown).
		Bool("simulate_only", p.SimulateOnly()).Msg("Action provider registered")
}

// Dispatch runs the actions of one matched playbook against its
// triggering event, in declared order. Errors are absorbed into audit
// records; the caller just moves on to the next playbook.
func (d *Dispatcher) Dispatch(ctx context.Context, ec ExecutionContext, pb playbook.Playbook, ev events.SecurityEvent) {
	for _, action := range pb.Actions {
		d.dispatchOne(ctx, ec, pb, action, ev)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, ec ExecutionContext, pb playbook.Playbook, action playbook.Action, ev events.SecurityEvent) {
	params := playbook.ResolveParams(action.Params, ev)

	d.mu.RLock()
	provider, known := d.providers[action.Type]
	cooldown := d.cooldowns[action.Type]
	d.mu.RUnlock()

	if !known {
		d.record(ctx, pb, action.Type, ev, params, events.OutcomeFailed,
			"unknown action type")
		return
	}

	// Global dry-run OR rule dry-run OR a provider that can only simulate.
	if ec.GlobalDryRun || pb.DryRun || provider.SimulateOnly() {
		d.logger.Info().Str("playbook", pb.ID).Str("action", action.Type).
			Str("subject", ev.Subject).Msg("Dry run, simulating action")
		d.record(ctx, pb, action.Type, ev, params, events.OutcomeSimulated, "")
		return
	}

	// The dedup key is acquired before the first live attempt so that a
	// crash-restart mid-retry cannot produce a second live effect.
	acquired, err := d.guard.TryAcquire(ctx, dedup.Key{Subject: ev.Subject, ActionType: action.Type}, cooldown)
	if err != nil {
		d.record(ctx, pb, action.Type, ev, params, events.OutcomeFailed,
			"dedup guard unavailable: "+err.Error())
		return
	}
	if !acquired {
		d.logger.Debug().Str("playbook", pb.ID).Str("action", action.Type).
			Str("subject", ev.Subject).Msg("Duplicate within cool-down, skipping")
		d.record(ctx, pb, action.Type, ev, params, events.OutcomeSkippedDuplicate, "")
		return
	}

	detail, err := d.executeWithRetry(ctx, provider, params)
	if err != nil {
		d.logger.Error().Err(err).Str("playbook", pb.ID).Str("action", action.Type).
			Str("subject", ev.Subject).Msg("Action failed")
		d.record(ctx, pb, action.Type, ev, params, events.OutcomeFailed, err.Error())
		return
	}

	d.logger.Info().Str("playbook", pb.ID).Str("action", action.Type).
		Str("subject", ev.Subject).Msg("Action executed")
	d.record(ctx, pb, action.Type, ev, params, events.OutcomeSucceeded, detail)
}

// executeWithRetry retries transient provider failures with bounded
// exponential backoff. The dedup key is already held, so retries cannot
// race another cycle into a duplicate effect.
//
// The provider call itself runs on a context detached from shutdown
// cancellation: aborting an external call mid-effect would leave the
// remote side in an unknown state with a "failed" audit record.
// Cancellation still stops further attempts from starting, and the
// provider's own HTTP timeout bounds each attempt.
func (d *Dispatcher) executeWithRetry(ctx context.Context, provider Provider, params map[string]string) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second

	callCtx := context.WithoutCancel(ctx)

	var detail string
	op := func() error {
		var err error
		detail, err = provider.Execute(callCtx, params)
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, d.retries), ctx))
	return detail, err
}

func (d *Dispatcher) record(ctx context.Context, pb playbook.Playbook, actionType string, ev events.SecurityEvent, params map[string]string, outcome events.Outcome, detail string) {
	metrics.ActionsTotal.WithLabelValues(actionType, string(outcome)).Inc()

	// The outcome of a completed call must land in the audit trail even
	// when it finished during shutdown.
	ctx = context.WithoutCancel(ctx)

	rec := events.NewAuditRecord(pb.ID, actionType, ev, params, outcome, detail)
	if err := d.audit.WriteAudit(ctx, rec); err != nil {
		d.logger.Error().Err(err).Str("playbook", pb.ID).Str("action", actionType).
			Msg("Failed to write audit record")
	}
}
