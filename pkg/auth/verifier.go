package auth

import (
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"resultdb/pkg/config"
)

// Claims carried by accepted tokens: subject and expiry from the
// registered set plus an application role list.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against a single configured algorithm
// and key. Construction fails fast on unreadable or malformed key material
// so a bad deployment cannot silently admit requests.
type Verifier struct {
	alg string
	key any
}

// NewVerifier loads key material from cfg.SecretPath: raw bytes for HS256,
// a PEM public key for RS256/ES256.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	raw, err := os.ReadFile(cfg.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("read auth secret %s: %w", cfg.SecretPath, err)
	}

	v := &Verifier{alg: cfg.Algorithm}
	switch cfg.Algorithm {
	case "HS256":
		if len(raw) == 0 {
			return nil, fmt.Errorf("auth secret %s is empty", cfg.SecretPath)
		}
		v.key = raw
	case "RS256":
		pub, err := jwt.ParseRSAPublicKeyFromPEM(raw)
		if err != nil {
			return nil, fmt.Errorf("parse RSA public key %s: %w", cfg.SecretPath, err)
		}
		v.key = pub
	case "ES256":
		pub, err := jwt.ParseECPublicKeyFromPEM(raw)
		if err != nil {
			return nil, fmt.Errorf("parse EC public key %s: %w", cfg.SecretPath, err)
		}
		v.key = pub
	default:
		return nil, fmt.Errorf("unsupported auth algorithm %q", cfg.Algorithm)
	}
	return v, nil
}

// Verify parses and validates token, returning its claims. Signature,
// algorithm and expiry are all enforced.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{v.alg}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}
