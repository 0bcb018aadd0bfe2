package agentrpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims embeds the backends a token is scoped to, replacing the bare
// per-backend string-equality token check spec.md §4.5 describes with
// a signed, expiring token (SPEC_FULL.md's jwt/v5 decision).
type Claims struct {
	jwt.RegisteredClaims
	Backends []string `json:"backends"`
}

// IssueToken mints an HS256 token scoped to backends, valid for ttl.
func IssueToken(secret string, backends []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Backends: backends,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

var errUnauthorized = errors.New("agentrpc: unauthorized")

// verifyToken parses and validates tokenString, and confirms it is
// scoped to backend. Every failure collapses to errUnauthorized so the
// caller returns the same generic 401 regardless of which check failed
// (spec.md §4.5 "no information leak about which arm failed").
func verifyToken(secret, tokenString, backend string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}
	for _, b := range claims.Backends {
		if b == backend {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}
