package actions

import (
	"context"
)

// Provider defines the interface for an external enforcement action the
// response engine can take. Each action type maps to exactly one
// side-effecting call against an external system.
type Provider interface {
	// Type returns the unique action type tag (e.g. "block_domain").
	Type() string
	// SimulateOnly reports whether this provider can only ever simulate,
	// e.g. because its external endpoint is not configured. A simulate-only
	// provider is never promoted to live execution.
	SimulateOnly() bool
	// Execute performs the action with the resolved parameters. It is
	// passed a context for deadlines and cancellation and returns detail
	// text for the audit record. Transient transport failures should be
	// returned as plain errors so the dispatcher retries them; permanent
	// failures should be wrapped with backoff.Permanent.
	Execute(ctx context.Context, params map[string]string) (string, error)
}

// ExecutionContext carries the safety settings for one dispatch. It is an
// explicit value threaded through the dispatcher rather than process
// state, so concurrent cycles and tests can hold independent contexts.
// GlobalDryRun can only force execution to be safer: when set, every
// action is simulated regardless of per-rule settings.
type ExecutionContext struct {
	GlobalDryRun bool
}
