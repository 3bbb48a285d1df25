// Package orchestrator provides the public API for embedding the campaign
// orchestrator. This is the stable API for external consumers.
package orchestrator

import (
	"github.com/tjfontaine/campaign-orchestrator/internal/runtime"
)

// Orchestrator is the main entry point for running the campaign service.
// See internal/runtime.Orchestrator for full documentation.
type Orchestrator = runtime.Orchestrator

// Option is a functional option for configuring an Orchestrator.
type Option = runtime.Option

// New creates a new Orchestrator with the given options.
// Example:
//
//	orch, err := orchestrator.New(
//	    orchestrator.WithFileConfig("config.yaml"),
//	    orchestrator.WithSQLite("./data/orchestrator.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Authentication
	WithAPIKeyAuth   = runtime.WithAPIKeyAuth
	WithAuthProvider = runtime.WithAuthProvider

	// Storage and events
	WithSQLite         = runtime.WithSQLite
	WithUsageStore     = runtime.WithUsageStore
	WithEventPublisher = runtime.WithEventPublisher

	// Policy
	WithBasicPolicy   = runtime.WithBasicPolicy
	WithQualityPolicy = runtime.WithQualityPolicy
	WithCounterStore  = runtime.WithCounterStore

	// Inference
	WithCloudBackend = runtime.WithCloudBackend
	WithLocalBackend = runtime.WithLocalBackend

	// Logging
	WithLogger   = runtime.WithLogger
	WithLevelVar = runtime.WithLevelVar
)
