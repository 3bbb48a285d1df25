// Package file loads the orchestrator config from YAML and watches it.
package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

var _ ports.ConfigProvider = (*Provider)(nil)

// Provider implements ports.ConfigProvider on a YAML file with ORCH_ env
// overrides. Reloads are debounced and skipped when the file bytes are
// unchanged.
type Provider struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	watcher *fsnotify.Watcher
	current *config.Config
	digest  [sha256.Size]byte
}

// Option configures a Provider.
type Option func(*Provider)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDebounce sets how long the watcher waits for events to settle.
func WithDebounce(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.debounce = d
		}
	}
}

func NewProvider(path string, opts ...Option) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	p := &Provider{
		path:     path,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Load reads and validates the file.
func (p *Provider) Load(ctx context.Context) (*config.Config, error) {
	cfg, digest, err := p.read()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current, p.digest = cfg, digest
	p.mu.Unlock()

	p.logger.Info("config loaded", slog.String("path", p.path))
	return cfg, nil
}

func (p *Provider) read() (*config.Config, [sha256.Size]byte, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, fmt.Errorf("read config %s: %w", p.path, err)
	}
	cfg, err := config.LoadFile(p.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, fmt.Errorf("load config from %s: %w", p.path, err)
	}
	return cfg, sha256.Sum256(raw), nil
}

// Watch calls onChange with each successfully reloaded config until ctx ends.
// It returns once the watch is established.
func (p *Provider) Watch(ctx context.Context, onChange func(*config.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// the directory, so editors that save by rename are still seen
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.watcher = watcher
	p.mu.Unlock()

	p.logger.Info("watching config file", slog.String("path", p.path))
	go p.loop(ctx, watcher, onChange)
	return nil
}

func (p *Provider) loop(ctx context.Context, watcher *fsnotify.Watcher, onChange func(*config.Config)) {
	defer watcher.Close()

	target := filepath.Clean(p.path)
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("config watch stopped")
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == target && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				settle = time.After(p.debounce)
			}

		case <-settle:
			settle = nil
			if cfg := p.reload(); cfg != nil {
				onChange(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watch error", slog.String("error", err.Error()))
		}
	}
}

// reload returns nil when the file is unreadable, invalid, or unchanged.
func (p *Provider) reload() *config.Config {
	cfg, digest, err := p.read()
	if err != nil {
		p.logger.Error("config reload failed",
			slog.String("path", p.path),
			slog.String("error", err.Error()))
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if bytes.Equal(digest[:], p.digest[:]) {
		return nil
	}
	p.current, p.digest = cfg, digest
	p.logger.Info("config reloaded", slog.String("path", p.path))
	return cfg
}

// Current returns the most recently loaded configuration.
func (p *Provider) Current() *config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Close stops the watcher, if any.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	p.watcher = nil
	return err
}
