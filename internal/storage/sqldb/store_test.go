package sqldb

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_UsageSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dayStart := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	records := []*domain.UsageRecord{
		{UserID: "u1", FunctionName: "vertex-ai-orchestrator", Units: 5, CreatedAt: dayStart.Add(-time.Minute)},
		{UserID: "u1", FunctionName: "vertex-ai-orchestrator", Units: 3, CreatedAt: dayStart},
		{UserID: "u1", FunctionName: "vertex-ai-orchestrator", Units: 4, CreatedAt: dayStart.Add(5 * time.Hour)},
		{UserID: "u2", FunctionName: "vertex-ai-orchestrator", Units: 9, CreatedAt: dayStart.Add(time.Hour)},
	}
	for _, rec := range records {
		if err := store.InsertUsage(ctx, rec); err != nil {
			t.Fatalf("InsertUsage() error = %v", err)
		}
	}

	tests := []struct {
		user string
		want int
	}{
		{"u1", 7},
		{"u2", 9},
		{"nobody", 0},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			got, err := store.UsageSince(ctx, tt.user, dayStart)
			if err != nil {
				t.Fatalf("UsageSince() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UsageSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStore_UsageSinceNormalizesZones(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	toronto := time.FixedZone("EST", -5*3600)

	// 20:00 EST on the 13th is 01:00 UTC on the 14th
	rec := &domain.UsageRecord{UserID: "u1", FunctionName: "f", Units: 2, CreatedAt: time.Date(2025, 3, 13, 20, 0, 0, 0, toronto)}
	if err := store.InsertUsage(ctx, rec); err != nil {
		t.Fatalf("InsertUsage() error = %v", err)
	}

	got, err := store.UsageSince(ctx, "u1", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("UsageSince() error = %v", err)
	}
	if got != 2 {
		t.Errorf("UsageSince() = %d, want 2", got)
	}
}

func TestStore_InsertUsageFillsDefaults(t *testing.T) {
	store := newTestStore(t)
	rec := &domain.UsageRecord{UserID: "u1", FunctionName: "f", Units: 1}

	if err := store.InsertUsage(context.Background(), rec); err != nil {
		t.Fatalf("InsertUsage() error = %v", err)
	}
	if rec.ID == "" {
		t.Error("ID was not assigned")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt was not assigned")
	}
	if err := store.InsertUsage(context.Background(), nil); err != nil {
		t.Errorf("InsertUsage(nil) error = %v", err)
	}
}

func TestStore_AgentLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	logs := []*domain.AgentLog{
		{RunID: "run-1", UserID: "u1", Component: "planner", EventType: domain.EventFlashLiteRouting, Message: "planned", CostSaved: 0.30, CreatedAt: base},
		{RunID: "run-1", Component: "planner", EventType: domain.EventCacheHit, Message: "cache", CostSaved: 4.50, Metadata: map[string]any{"tokens_saved": 5000}, CreatedAt: base.Add(time.Second)},
		{RunID: "run-2", Component: "auditor", EventType: domain.EventComplianceCheck, Message: "other run", CreatedAt: base},
	}
	for _, l := range logs {
		if err := store.InsertAgentLog(ctx, l); err != nil {
			t.Fatalf("InsertAgentLog() error = %v", err)
		}
	}

	got, err := store.ListAgentLogs(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListAgentLogs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListAgentLogs() = %d logs, want 2", len(got))
	}
	if got[0].EventType != domain.EventFlashLiteRouting || got[0].UserID != "u1" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].CostSaved != 4.50 {
		t.Errorf("CostSaved = %v, want 4.50", got[1].CostSaved)
	}
	// JSON numbers decode as float64
	if v, ok := got[1].Metadata["tokens_saved"].(float64); !ok || v != 5000 {
		t.Errorf("Metadata = %v", got[1].Metadata)
	}

	empty, err := store.ListAgentLogs(ctx, "")
	if err != nil || len(empty) != 0 {
		t.Errorf("ListAgentLogs(\"\") = %v, %v", empty, err)
	}
}

func TestStore_ReopenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")

	first, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	if err := first.InsertUsage(context.Background(), &domain.UsageRecord{UserID: "u1", FunctionName: "f", Units: 3}); err != nil {
		t.Fatalf("InsertUsage() error = %v", err)
	}
	first.Close()

	second, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	got, err := second.UsageSince(context.Background(), "u1", time.Time{})
	if err != nil {
		t.Fatalf("UsageSince() error = %v", err)
	}
	if got != 3 {
		t.Errorf("UsageSince() = %d, want 3", got)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}
