package apikey

import (
	"context"
	"errors"
	"testing"

	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
)

type staticConfig struct {
	cfg *config.Config
	err error
}

func (s *staticConfig) Load(ctx context.Context) (*config.Config, error) { return s.cfg, s.err }
func (s *staticConfig) Watch(ctx context.Context, onChange func(*config.Config)) error {
	return nil
}
func (s *staticConfig) Close() error { return nil }

func TestHashAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		expected string
	}{
		{
			name:     "simple key",
			apiKey:   "test-key-123",
			expected: "625faa3fbbc3d2bd9d6ee7678d04cc5339cb33dc68d9b58451853d60046e226a",
		},
		{
			name:     "empty key",
			apiKey:   "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hash := HashAPIKey(tt.apiKey); hash != tt.expected {
				t.Errorf("HashAPIKey() = %v, want %v", hash, tt.expected)
			}
		})
	}
}

func TestProvider_Authenticate(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{APIKeys: []config.APIKeyConfig{
		{KeyHash: HashAPIKey("valid-key-1"), UserID: "user-1", Description: "ops"},
		{KeyHash: HashAPIKey("valid-key-2"), UserID: "user-2"},
	}}}
	p, err := NewProvider(&staticConfig{cfg: cfg})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	tests := []struct {
		name     string
		token    string
		wantUser string
		wantErr  bool
	}{
		{"first key", "valid-key-1", "user-1", false},
		{"second key", "valid-key-2", "user-2", false},
		{"unknown key", "nope", "", true},
		{"empty key", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Authenticate(context.Background(), tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", got.UserID, tt.wantUser)
			}
		})
	}
}

func TestProvider_Reload(t *testing.T) {
	p, err := NewStaticProvider([]config.APIKeyConfig{{KeyHash: HashAPIKey("old"), UserID: "u"}})
	if err != nil {
		t.Fatalf("NewStaticProvider() error = %v", err)
	}

	next := &config.Config{Auth: config.AuthConfig{APIKeys: []config.APIKeyConfig{{KeyHash: HashAPIKey("new"), UserID: "u"}}}}
	if err := p.ReloadFromConfig(next); err != nil {
		t.Fatalf("ReloadFromConfig() error = %v", err)
	}

	if _, err := p.Authenticate(context.Background(), "old"); err == nil {
		t.Error("old key should be rejected after reload")
	}
	if _, err := p.Authenticate(context.Background(), "new"); err != nil {
		t.Errorf("new key rejected: %v", err)
	}
}

func TestNewProvider_Errors(t *testing.T) {
	if _, err := NewProvider(nil); err == nil {
		t.Error("expected error for nil config provider")
	}
	if _, err := NewProvider(&staticConfig{err: errors.New("boom")}); err == nil {
		t.Error("expected load error")
	}
	if _, err := NewStaticProvider([]config.APIKeyConfig{{KeyHash: "abc"}}); err == nil {
		t.Error("expected error for key without user")
	}
}
