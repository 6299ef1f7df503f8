// Package scheduler runs the periodic detection and response tasks, each
// on its own fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task defines the interface for any task that can be scheduled. Run is
// expected to guard against overlapping itself (skip-if-already-running):
// the scheduler keeps ticking regardless of how long a cycle takes.
type Task interface {
	Name() string
	Run(ctx context.Context)
}

type entry struct {
	task     Task
	interval time.Duration
}

// Scheduler manages the registration and execution of periodic tasks.
type Scheduler struct {
	entries []entry
	wg      sync.WaitGroup
}

// NewScheduler creates and returns a new Scheduler instance.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Register adds a task with its run interval to the scheduler's list.
func (s *Scheduler) Register(t Task, interval time.Duration) {
	if interval <= 0 {
		log.Error().Msgf("Invalid interval for task '%s', skipping registration.", t.Name())
		return
	}
	s.entries = append(s.entries, entry{task: t, interval: interval})
	log.Info().Msgf("Task '%s' registered with interval %s.", t.Name(), interval)
}

// Start launches all registered tasks. Each task runs once immediately
// and then on every tick until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("Scheduler starting...")

	for _, e := range s.entries {
		s.wg.Add(1)
		go s.runTask(ctx, e)
	}

	log.Info().Msgf("All %d tasks started.", len(s.entries))
}

// Wait blocks until every task loop has exited after cancellation.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, e entry) {
	defer s.wg.Done()

	log.Debug().Msgf("Running task '%s' for the first time.", e.task.Name())
	e.task.Run(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Debug().Msgf("Running task '%s'.", e.task.Name())
			e.task.Run(ctx)
		case <-ctx.Done():
			log.Info().Msgf("Task '%s' received shutdown signal.", e.task.Name())
			return
		}
	}
}
