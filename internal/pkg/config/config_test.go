package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Policy.RateLimit.MaxRequests != 5 {
		t.Errorf("MaxRequests = %d, want 5", cfg.Policy.RateLimit.MaxRequests)
	}
	if cfg.Policy.RateLimit.Window != 5*time.Minute {
		t.Errorf("Window = %v, want 5m", cfg.Policy.RateLimit.Window)
	}
	if cfg.Policy.Quota.DailyLimit != 100 {
		t.Errorf("DailyLimit = %d, want 100", cfg.Policy.Quota.DailyLimit)
	}
	if cfg.Policy.Counter.Firestore.CountTTL != 30*time.Second {
		t.Errorf("CountTTL = %v, want 30s", cfg.Policy.Counter.Firestore.CountTTL)
	}
	if cfg.Pipeline.MaxResearchQueries != 3 {
		t.Errorf("MaxResearchQueries = %d, want 3", cfg.Pipeline.MaxResearchQueries)
	}
	if cfg.Cloud.Fast.Model != "gemini-2.0-flash-lite" {
		t.Errorf("Fast.Model = %q", cfg.Cloud.Fast.Model)
	}
	if cfg.Cloud.Capable.CostPerCall != 0.0001 {
		t.Errorf("Capable.CostPerCall = %v", cfg.Cloud.Capable.CostPerCall)
	}
	if cfg.Local.HealthTimeout != 5*time.Second {
		t.Errorf("HealthTimeout = %v, want 5s", cfg.Local.HealthTimeout)
	}
	if len(cfg.Local.Models) != 3 {
		t.Errorf("expected default local catalog, got %d models", len(cfg.Local.Models))
	}
	if cfg.Pipeline.EnableVisual {
		t.Error("visual generation should be off by default")
	}
}

func TestLoadFile_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
policy:
  rate_limit:
    max_requests: 10
    window: 1m
local:
  models:
    - name: phi3:mini
      capabilities: [classification]
      latency_ms: 25
pipeline:
  enable_visual: true
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Policy.RateLimit.MaxRequests != 10 {
		t.Errorf("MaxRequests = %d, want 10", cfg.Policy.RateLimit.MaxRequests)
	}
	if cfg.Policy.RateLimit.Window != time.Minute {
		t.Errorf("Window = %v, want 1m", cfg.Policy.RateLimit.Window)
	}
	if len(cfg.Local.Models) != 1 || cfg.Local.Models[0].Name != "phi3:mini" {
		t.Errorf("Local.Models = %+v", cfg.Local.Models)
	}
	if !cfg.Pipeline.EnableVisual {
		t.Error("expected enable_visual from file")
	}
	// Untouched defaults still apply
	if cfg.Policy.Quota.DailyLimit != 100 {
		t.Errorf("DailyLimit = %d, want 100", cfg.Policy.Quota.DailyLimit)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("ORCH_SERVER__PORT", "7070")
	t.Setenv("ORCH_POLICY__QUOTA__DAILY_LIMIT", "250")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Policy.Quota.DailyLimit != 250 {
		t.Errorf("DailyLimit = %d, want 250", cfg.Policy.Quota.DailyLimit)
	}
}

func TestLoadFile_SubstitutesSecrets(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret-value")
	path := writeConfig(t, `
cloud:
  api_key: ${TEST_GEMINI_KEY}
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Cloud.APIKey != "secret-value" {
		t.Errorf("Cloud.APIKey = %q, want substituted value", cfg.Cloud.APIKey)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A_VAR", "alpha")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${A_VAR}", "alpha"},
		{"prefix-${A_VAR}-suffix", "prefix-alpha-suffix"},
		{"${UNSET_VAR_FOR_TEST}", ""},
	}
	for _, tt := range tests {
		if got := substituteEnvVars(tt.in); got != tt.want {
			t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
