// Package sqlite provides the SQLite usage store adapter.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/storage/sqldb"
)

// Provider implements ports.UsageStore using SQLite.
// It wraps the sqldb implementation.
type Provider struct {
	*sqldb.Store
}

// NewProvider opens (or creates) the database at path, creating its parent
// directory when needed. ":memory:" opens a private in-memory database.
func NewProvider(path string) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if !inMemory(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	store, err := sqldb.NewSQLite(path)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Store: store,
	}, nil
}

func inMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:") || strings.Contains(path, "mode=memory")
}

// Ensure Provider implements ports.UsageStore at compile time.
var _ ports.UsageStore = (*Provider)(nil)
