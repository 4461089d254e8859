package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestVerifierUsesJWKSForRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kty: "RSA",
			Kid: "kid-1",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v := NewVerifier("unused", NewJWKSClient(srv.URL, time.Minute))
	token, err := signRS256(Claims{Sub: "admin-1", Role: "admin"}, key, "kid-1")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Role != "admin" {
		t.Fatalf("unexpected role %q", claims.Role)
	}

	unknown, _ := signRS256(Claims{Sub: "admin-1", Role: "admin"}, key, "kid-unknown")
	if _, err := v.Verify(context.Background(), unknown); err == nil {
		t.Fatal("expected unknown kid to be rejected")
	}
}

func rsaJWK(t *testing.T, kid, use, alg string) (*rsa.PrivateKey, jwk) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	return key, jwk{
		Kty: "RSA",
		Kid: kid,
		Use: use,
		Alg: alg,
		N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}
}

func TestJWKSClientSkipsNonSigningKeys(t *testing.T) {
	_, sig := rsaJWK(t, "sig-1", "sig", "RS256")
	_, enc := rsaJWK(t, "enc-1", "enc", "RSA-OAEP")
	_, ps := rsaJWK(t, "ps-1", "", "PS256")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{sig, enc, ps}})
	}))
	defer srv.Close()

	c := NewJWKSClient(srv.URL, time.Minute)
	if _, err := c.Key(context.Background(), "sig-1"); err != nil {
		t.Fatalf("expected signing key, got %v", err)
	}
	for _, kid := range []string{"enc-1", "ps-1"} {
		if _, err := c.Key(context.Background(), kid); err != ErrKeyNotFound {
			t.Fatalf("kid %s: expected ErrKeyNotFound, got %v", kid, err)
		}
	}
}

func TestJWKSClientThrottlesUnknownKidRefresh(t *testing.T) {
	_, k := rsaJWK(t, "kid-1", "", "")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{k}})
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewJWKSClient(srv.URL, time.Hour)
	c.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_, _ = c.Key(context.Background(), "rotated")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 fetch within the refresh interval, got %d", got)
	}

	now = now.Add(minRefreshInterval)
	_, _ = c.Key(context.Background(), "rotated")
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected a refetch after the interval, got %d", got)
	}
	if _, err := c.Key(context.Background(), "kid-1"); err != nil {
		t.Fatalf("cached key lookup failed: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("cached key should not refetch, got %d fetches", got)
	}
}

func TestJWKSClientServesCachedKeyWhenEndpointFails(t *testing.T) {
	_, k := rsaJWK(t, "kid-1", "sig", "RS256")
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{k}})
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewJWKSClient(srv.URL, time.Minute)
	c.now = func() time.Time { return now }
	if _, err := c.Key(context.Background(), "kid-1"); err != nil {
		t.Fatalf("initial fetch failed: %v", err)
	}

	down.Store(true)
	now = now.Add(2 * time.Minute)
	if _, err := c.Key(context.Background(), "kid-1"); err != nil {
		t.Fatalf("expected stale key during outage, got %v", err)
	}
	if _, err := c.Key(context.Background(), "kid-2"); err == nil {
		t.Fatal("expected error for unknown kid during outage")
	}
}
