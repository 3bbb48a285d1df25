package direct

import (
	"context"
	"testing"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/storage/sqldb"
)

func newStore(t *testing.T) *sqldb.Store {
	t.Helper()
	store, err := sqldb.NewSQLite("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewPublisher_NilStorage(t *testing.T) {
	_, err := NewPublisher(nil)
	if err == nil {
		t.Fatal("Expected error for nil storage")
	}
	if err.Error() != "storage provider required" {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestPublish(t *testing.T) {
	store := newStore(t)
	publisher, err := NewPublisher(store)
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	ctx := context.Background()

	log := &domain.AgentLog{
		RunID:     "run-123",
		Component: "researcher",
		EventType: domain.EventGroundingSearch,
		Message:   "grounded query",
		CostSaved: 1.20,
	}
	if err := publisher.Publish(ctx, log); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := publisher.Publish(ctx, nil); err != nil {
		t.Errorf("Publish(nil) error = %v", err)
	}

	logs, err := store.ListAgentLogs(ctx, "run-123")
	if err != nil {
		t.Fatalf("ListAgentLogs() error = %v", err)
	}
	if len(logs) != 1 || logs[0].EventType != domain.EventGroundingSearch {
		t.Errorf("logs = %+v", logs)
	}
}

func TestClose(t *testing.T) {
	publisher, _ := NewPublisher(newStore(t))
	if err := publisher.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
