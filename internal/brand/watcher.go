package brand

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadDebounce is how long writes must settle before the profile reloads.
const ReloadDebounce = 100 * time.Millisecond

// Store serves the current profile and reloads it when its file changes.
type Store struct {
	mu      sync.RWMutex
	current Profile
	path    string
	logger  *slog.Logger
}

// NewStore serves the default profile, or the profile at path when set.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{current: Default(), path: path, logger: logger}
	if path == "" {
		return s, nil
	}

	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.current = p
	return s, nil
}

// Current returns the active profile.
func (s *Store) Current() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Watch reloads the profile once writes settle, until ctx is done. A file
// that is empty or fails to parse leaves the previous profile active.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}

	go func() {
		defer watcher.Close()
		var settle <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				settle = time.After(ReloadDebounce)
			case <-settle:
				settle = nil
				s.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("brand profile watch error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

func (s *Store) reload() {
	p, err := Load(s.path)
	if err != nil {
		s.logger.Error("failed to reload brand profile",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	s.logger.Info("brand profile reloaded", slog.String("name", p.Name))
}
