// Package jwt validates HS256 bearer tokens issued by the identity store.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

var _ ports.AuthProvider = (*Provider)(nil)

// Claims are the token claims read by the orchestrator.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	Email string `json:"email,omitempty"`
	gojwt.RegisteredClaims
}

// Provider implements ports.AuthProvider for HMAC signed JWTs.
type Provider struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) Option {
	return func(p *Provider) {
		p.issuer = issuer
	}
}

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) Option {
	return func(p *Provider) {
		p.audience = audience
	}
}

// WithLeeway tolerates clock skew on time based claims.
func WithLeeway(d time.Duration) Option {
	return func(p *Provider) {
		p.leeway = d
	}
}

// WithClock sets the time used to validate exp and nbf.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider creates a validator for tokens signed with secret.
func NewProvider(secret string, opts ...Option) (*Provider, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	p := &Provider{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Authenticate verifies token and returns its subject as the caller.
func (p *Provider) Authenticate(ctx context.Context, token string) (*ports.AuthContext, error) {
	if token == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	parserOpts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(p.now),
		gojwt.WithLeeway(p.leeway),
	}
	if p.issuer != "" {
		parserOpts = append(parserOpts, gojwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		parserOpts = append(parserOpts, gojwt.WithAudience(p.audience))
	}

	var claims Claims
	_, err := gojwt.ParseWithClaims(token, &claims, func(t *gojwt.Token) (any, error) {
		return p.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	auth := &ports.AuthContext{
		UserID:   claims.Subject,
		Metadata: map[string]string{"auth_method": "jwt"},
	}
	if claims.Scope != "" {
		auth.Scopes = strings.Fields(claims.Scope)
	}
	if claims.Email != "" {
		auth.Metadata["email"] = claims.Email
	}
	return auth, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return fmt.Errorf("token expired: %w", err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("invalid token signature: %w", err)
	default:
		return fmt.Errorf("invalid token: %w", err)
	}
}

// Sign issues a token for subject. It exists for local tooling and tests.
func (p *Provider) Sign(subject string, ttl time.Duration, scopes ...string) (string, error) {
	now := p.now()
	claims := Claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if p.audience != "" {
		claims.Audience = gojwt.ClaimStrings{p.audience}
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(p.secret)
}
