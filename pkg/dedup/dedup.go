// Package dedup implements the enforcement deduplicator: the single
// source of idempotence for side-effecting actions. A key is held for the
// cool-down of its action type; while held, no second live execution of
// the same (subject, action type) pair may start.
package dedup

import (
	"context"
	"time"
)

// Key identifies one enforcement target.
type Key struct {
	Subject    string
	ActionType string
}

// Guard is the acquire-before-execute gate consulted by the dispatcher.
// TryAcquire atomically checks for an unexpired entry for the key: if none
// exists it records one with the given cool-down and returns true (the
// caller may proceed); otherwise it returns false (the caller must skip).
// The key is acquired before the first external call attempt, so a
// crash-restart during retries cannot double-fire.
type Guard interface {
	TryAcquire(ctx context.Context, key Key, cooldown time.Duration) (bool, error)
}
