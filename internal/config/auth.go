package config

import (
	"fmt"
	"time"
)

const (
	// TokenIssuer is the iss claim of every API token
	TokenIssuer = "job-applier"
	// DefaultTokenTTL applies when jwt_expiration_hours is unset
	DefaultTokenTTL = 24 * time.Hour
	// MinSecretBytes is the shortest accepted HS256 signing secret
	MinSecretBytes = 32
)

// JWTConfig holds what the server needs to issue and verify API tokens
type JWTConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// JWT returns the token configuration, or nil when no secret is configured and
// the server should run without authentication.
func (c *Config) JWT() (*JWTConfig, error) {
	if c.JWTSecret == "" {
		return nil, nil
	}
	if len(c.JWTSecret) < MinSecretBytes {
		return nil, fmt.Errorf("config error: 'jwt_secret' must be at least %d bytes", MinSecretBytes)
	}

	ttl := time.Duration(c.JWTExpirationHours) * time.Hour
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTConfig{
		Secret: []byte(c.JWTSecret),
		TTL:    ttl,
		Issuer: TokenIssuer,
	}, nil
}
