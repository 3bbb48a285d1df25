// Package apikey provides API key-based authentication.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
	"github.com/tjfontaine/campaign-orchestrator/internal/pkg/config"
)

var _ ports.AuthProvider = (*Provider)(nil)

type keyEntry struct {
	userID      string
	description string
}

// Provider implements ports.AuthProvider using hashed API keys from config.
type Provider struct {
	mu   sync.RWMutex
	keys map[string]keyEntry // keyHash -> caller
}

// NewProvider creates a new API key auth provider.
func NewProvider(configProvider ports.ConfigProvider) (*Provider, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("config provider required")
	}

	cfg, err := configProvider.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	p := &Provider{}
	if err := p.ReloadFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("load api keys: %w", err)
	}
	return p, nil
}

// NewStaticProvider creates a provider over a fixed key list.
func NewStaticProvider(keys []config.APIKeyConfig) (*Provider, error) {
	p := &Provider{}
	if err := p.load(keys); err != nil {
		return nil, err
	}
	return p, nil
}

// Authenticate validates an API key and returns the caller.
func (p *Provider) Authenticate(ctx context.Context, token string) (*ports.AuthContext, error) {
	if token == "" {
		return nil, fmt.Errorf("missing API key")
	}
	keyHash := HashAPIKey(token)

	p.mu.RLock()
	defer p.mu.RUnlock()

	for hash, entry := range p.keys {
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(hash)) == 1 {
			return &ports.AuthContext{
				UserID: entry.userID,
				Metadata: map[string]string{
					"auth_method": "apikey",
					"description": entry.description,
				},
			}, nil
		}
	}
	return nil, fmt.Errorf("invalid API key")
}

// ReloadFromConfig replaces the key set. This is called when config changes.
func (p *Provider) ReloadFromConfig(cfg *config.Config) error {
	return p.load(cfg.Auth.APIKeys)
}

func (p *Provider) load(keys []config.APIKeyConfig) error {
	next := make(map[string]keyEntry, len(keys))
	for i, k := range keys {
		if k.KeyHash == "" || k.UserID == "" {
			return fmt.Errorf("api key %d: key_hash and user_id are required", i)
		}
		next[k.KeyHash] = keyEntry{userID: k.UserID, description: k.Description}
	}

	p.mu.Lock()
	p.keys = next
	p.mu.Unlock()
	return nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
