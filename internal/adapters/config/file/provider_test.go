package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
)

func writeConfig(t *testing.T, path, level string) {
	t.Helper()
	body := "log:\n  level: " + level + "\nserver:\n  port: 9090\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestNewProvider_EmptyPath(t *testing.T) {
	if _, err := NewProvider(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "debug")

	p, err := NewProvider(path)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	cfg, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Server.Port != 9090 {
		t.Errorf("unexpected config: level=%s port=%d", cfg.Log.Level, cfg.Server.Port)
	}
	if p.Current() != cfg {
		t.Error("Current() should return the loaded config")
	}
}

func TestProvider_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	p, err := NewProvider(path, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if _, err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *config.Config, 4)
	if err := p.Watch(ctx, func(c *config.Config) { changed <- c }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeConfig(t, path, "warn")

	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Log.Level == "warn" {
				return
			}
		case <-timeout:
			t.Fatal("config change not observed")
		}
	}
}

func TestProvider_WatchSkipsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "info")

	p, err := NewProvider(path, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if _, err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *config.Config, 4)
	if err := p.Watch(ctx, func(c *config.Config) { changed <- c }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeConfig(t, path, "info")

	select {
	case cfg := <-changed:
		t.Fatalf("unexpected reload with level %s", cfg.Log.Level)
	case <-time.After(300 * time.Millisecond):
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
