// Package session resolves the signed-in user from a signed session token.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

// Claims carried by a session token. The subject is the owner ID all remote
// rows are scoped to.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

type tokenSession struct {
	token  string
	secret []byte
	issuer string
	now    func() time.Time
}

// Option customizes the token session.
type Option func(*tokenSession)

// WithClock overrides the time used to validate expiry.
func WithClock(now func() time.Time) Option {
	return func(s *tokenSession) { s.now = now }
}

// NewTokenSession validates an HS256 token signed with secret on every call.
// An empty issuer disables the issuer check.
func NewTokenSession(token, secret, issuer string, opts ...Option) repository.SessionProvider {
	s := &tokenSession{token: token, secret: []byte(secret), issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *tokenSession) CurrentOwner(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.token == "" {
		return "", fmt.Errorf("%w: no session token", entity.ErrNotAuthenticated)
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("%w: no session secret configured", entity.ErrNotAuthenticated)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.NewParser(parserOpts...).ParseWithClaims(s.token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", fmt.Errorf("%w: %w", entity.ErrNotAuthenticated, entity.ErrSessionExpired)
	case err != nil:
		return "", fmt.Errorf("%w: %w: %v", entity.ErrNotAuthenticated, entity.ErrInvalidSessionToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: %w: missing subject", entity.ErrNotAuthenticated, entity.ErrInvalidSessionToken)
	}
	return claims.Subject, nil
}

// IssueToken signs a session token for owner. It backs the CLI login helper
// and tests.
func IssueToken(owner, secret, issuer string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   owner,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
