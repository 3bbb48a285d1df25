package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

func TestNewProvider(t *testing.T) {
	// Use in-memory SQLite for testing
	provider, err := NewProvider(":memory:")
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if provider == nil {
		t.Fatal("NewProvider returned nil")
	}

	var _ ports.UsageStore = provider

	provider.Close()
}

func TestNewProvider_CreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "orchestrator.db")

	provider, err := NewProvider(path)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	defer provider.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestNewProvider_InvalidPath(t *testing.T) {
	// a regular file cannot be a parent directory
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewProvider(filepath.Join(blocker, "sub", "test.db")); err == nil {
		t.Error("Expected error for invalid path")
	}
	if _, err := NewProvider(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestProvider_UsageRoundTrip(t *testing.T) {
	provider, err := NewProvider("file:provider_roundtrip?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	defer provider.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	if err := provider.InsertUsage(ctx, &domain.UsageRecord{
		ID: "u1", UserID: "U1", FunctionName: "vertex-ai-orchestrator", Units: 5, CreatedAt: now,
	}); err != nil {
		t.Fatalf("InsertUsage: %v", err)
	}

	used, err := provider.UsageSince(ctx, "U1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("UsageSince: %v", err)
	}
	if used != 5 {
		t.Errorf("UsageSince = %d, want 5", used)
	}
}

func TestProvider_Close(t *testing.T) {
	provider, _ := NewProvider(":memory:")

	err := provider.Close()
	if err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
