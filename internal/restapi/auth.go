package restapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims embeds the backends a client token is scoped to (spec.md
// §6.1 "the Controller maintains token -> allowed-backends mappings").
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

var errUnauthorized = errors.New("restapi: unauthorized")

// verifyToken parses tokenString and confirms it is scoped to backend.
// Every failure collapses to errUnauthorized.
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

// anyBackendAllowed reports whether tokenString is valid for at least
// one backend, used by /rap/status/ and /backend/status/ which aren't
// scoped to a single path-parameter backend.
func anyBackendAllowed(secret, tokenString string) ([]string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || len(claims.Backends) == 0 {
		return nil, errUnauthorized
	}
	return claims.Backends, nil
}
