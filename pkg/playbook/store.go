package playbook

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Store holds the current playbook set and reloads it when the document
// changes on disk. The set swap is atomic: an evaluation cycle that has
// already taken a snapshot keeps it for the whole cycle.
type Store struct {
	path       string
	allowEmpty bool
	mu         sync.RWMutex
	current    *Set
	logger     zerolog.Logger
}

// NewStore loads the document at path and returns a store around it. The
// initial load is fatal on a broken document (unless allowEmpty permits a
// usable-but-empty result), per the startup safety contract.
func NewStore(path string, allowEmpty bool, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "playbooks").Logger()

	set, err := LoadFile(path, allowEmpty, logger)
	if err != nil {
		return nil, err
	}

	return &Store{
		path:       path,
		allowEmpty: allowEmpty,
		current:    set,
		logger:     logger,
	}, nil
}

// Current returns the active playbook set snapshot.
func (s *Store) Current() *Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the document. Unlike startup, a reload failure keeps
// the previous rule set in place rather than leaving the process without
// rules.
func (s *Store) Reload() error {
	set, err := LoadFile(s.path, s.allowEmpty, s.logger)
	if err != nil {
		s.logger.Error().Err(err).Msg("Playbook reload failed, keeping previous rule set")
		return err
	}

	s.mu.Lock()
	s.current = set
	s.mu.Unlock()
	return nil
}

// Watch reloads the document whenever it is rewritten, until the context
// is cancelled. Editors and config managers typically replace the file,
// so the parent directory is watched and events are filtered by name.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				s.logger.Info().Str("op", event.Op.String()).Msg("Playbook document changed, reloading")
				s.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error().Err(err).Msg("Playbook watcher error")
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
