// Package auth provides TokenSource implementations for the table chat client.
// Issuing tokens is the auth server's job; these sources only hand out a
// token that was obtained elsewhere.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ZiplEix/questhub/tablechat-go/tablechat"
)

var (
	// ErrNoToken means the source has nothing to offer.
	ErrNoToken = errors.New("no token available")

	// ErrTokenExpired means the JWT's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
)

// Static always returns token; an empty token reports ErrNoToken.
func Static(token string) tablechat.TokenSource {
	return tablechat.TokenFunc(func(context.Context) (string, error) {
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	})
}

// File reads the token from path on every call, so a rotated token is used
// by the next Join or Send.
func File(path string) tablechat.TokenSource {
	return tablechat.TokenFunc(func(context.Context) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", ErrNoToken
			}
			return "", fmt.Errorf("read token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	})
}

// EnvConfig selects a token source from the environment.
type EnvConfig struct {
	Token     string `env:"TABLECHAT_TOKEN"`
	TokenFile string `env:"TABLECHAT_TOKEN_FILE"`
}

// FromEnv returns a File source when TABLECHAT_TOKEN_FILE is set, otherwise
// a Static source over TABLECHAT_TOKEN (which may be empty).
func FromEnv() (tablechat.TokenSource, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TokenFile != "" {
		return File(cfg.TokenFile), nil
	}
	return Static(cfg.Token), nil
}

// JWTGuard wraps a source of JWTs and withholds tokens that have expired.
// The signature is not checked; the server does that.
type JWTGuard struct {
	Source tablechat.TokenSource
	Leeway time.Duration
	Now    func() time.Time
}

// Guard returns a JWTGuard over src with a small clock-skew allowance.
func Guard(src tablechat.TokenSource) *JWTGuard {
	return &JWTGuard{Source: src, Leeway: 5 * time.Second}
}

func (g *JWTGuard) Token(ctx context.Context) (string, error) {
	token, err := g.Source.Token(ctx)
	if err != nil {
		return "", err
	}
	exp, err := ExpiresAt(token)
	if err != nil {
		return "", err
	}
	if exp.IsZero() {
		return token, nil
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	if now().After(exp.Add(g.Leeway)) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	return token, nil
}

// ExpiresAt decodes the exp claim without verifying the signature.
// The zero time means the token has no exp claim.
func ExpiresAt(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse jwt: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
