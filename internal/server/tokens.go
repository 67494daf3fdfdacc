package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/job-applier/internal/config"
)

// clockSkew is the leeway allowed on time-based claims
const clockSkew = 30 * time.Second

// ErrNoToken is returned when an empty token is verified
var ErrNoToken = errors.New("token string is empty")

// Claims are the registered claims of an API token; the subject names the client.
type Claims struct {
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 API tokens
type Tokens struct {
	cfg    *config.JWTConfig
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokens creates a Tokens for cfg
func NewTokens(cfg *config.JWTConfig) *Tokens {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Tokens{cfg: cfg, parser: jwt.NewParser(opts...), now: time.Now}
}

// Issue signs a token naming subject. Every token gets a unique ID so a run log
// can tell two tokens of the same client apart.
func (t *Tokens) Issue(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject cannot be empty")
	}

	now := t.now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    t.cfg.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.TTL)),
	}}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and checks its signature and time claims
func (t *Tokens) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	_, err := t.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.cfg.Secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("malformed token: %w", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, fmt.Errorf("invalid token signature: %w", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("token expired: %w", err)
	default:
		return nil, fmt.Errorf("invalid token: %w", err)
	}
}

// Subject verifies token and returns the client it names
func (t *Tokens) Subject(token string) (string, error) {
	claims, err := t.Verify(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
