package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"resultdb/pkg/config"
	"resultdb/pkg/utils"
)

func writeSecret(t *testing.T, name string, b []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	return path
}

func validClaims(sub string) *Claims {
	return &Claims{
		Roles: []string{"ci"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func pemPublicKey(t *testing.T, pub any) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func TestVerifierHS256(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	path := writeSecret(t, "hs256.key", secret)
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "HS256", SecretPath: path})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	claims, err := v.Verify(signToken(t, jwt.SigningMethodHS256, secret, validClaims("user1")))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user1" || len(claims.Roles) != 1 || claims.Roles[0] != "ci" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := v.Verify(signToken(t, jwt.SigningMethodHS256, []byte("wrong-secret-wrong-secret-wrong!"), validClaims("user1"))); err == nil {
		t.Fatalf("wrong signature accepted")
	}
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	path := writeSecret(t, "hs256.key", secret)
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "HS256", SecretPath: path})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	expired := validClaims("user1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	if _, err := v.Verify(signToken(t, jwt.SigningMethodHS256, secret, expired)); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestVerifierRejectsWrongAlgorithm(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	path := writeSecret(t, "hs256.key", secret)
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "HS256", SecretPath: path})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := v.Verify(signToken(t, jwt.SigningMethodHS384, secret, validClaims("user1"))); err == nil {
		t.Fatalf("HS384 token accepted by HS256 verifier")
	}
}

func TestVerifierRS256(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	path := writeSecret(t, "rs256.pem", pemPublicKey(t, &priv.PublicKey))
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "RS256", SecretPath: path})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	claims, err := v.Verify(signToken(t, jwt.SigningMethodRS256, priv, validClaims("svc")))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "svc" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestVerifierES256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ec key: %v", err)
	}
	path := writeSecret(t, "es256.pem", pemPublicKey(t, &priv.PublicKey))
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "ES256", SecretPath: path})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	if _, err := v.Verify(signToken(t, jwt.SigningMethodES256, priv, validClaims("svc"))); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestNewVerifierBadKeyMaterial(t *testing.T) {
	path := writeSecret(t, "garbage.pem", []byte("not a pem"))
	if _, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "RS256", SecretPath: path}); err == nil {
		t.Fatalf("garbage RSA key accepted")
	}
	if _, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "HS256", SecretPath: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("missing secret file accepted")
	}
}

func middlewareEnvelope(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorEnvelope {
	t.Helper()
	var env utils.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestMiddlewareRejections(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	path := writeSecret(t, "hs256.key", secret)
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "HS256", SecretPath: path})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Middleware(v)(next)

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "Missing Authorization header"},
		{"not bearer", "Token abc", "Invalid authorization header format"},
		{"too many parts", "Bearer a b", "Invalid authorization header format"},
		{"garbage token", "Bearer not.a.jwt", "Invalid or expired token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/executions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", rec.Code)
			}
			env := middlewareEnvelope(t, rec)
			if env.Error != utils.KindUnauthorized || env.Message != tc.message {
				t.Fatalf("envelope = %+v", env)
			}
		})
	}
}

func TestMiddlewareAdmitsAndExposesClaims(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	path := writeSecret(t, "hs256.key", secret)
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: "HS256", SecretPath: path})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	var gotSub string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := ClaimsFromContext(r.Context()); ok {
			gotSub = c.Subject
		}
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(v)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/executions", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, secret, validClaims("user1")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if gotSub != "user1" {
		t.Fatalf("claims subject = %q", gotSub)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimitMiddleware(config.RateLimitConfig{RPS: 1, Burst: 2})(next)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/executions", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/executions", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	env := middlewareEnvelope(t, rec)
	if env.Error != utils.KindTooManyRequests {
		t.Fatalf("envelope = %+v", env)
	}
}
