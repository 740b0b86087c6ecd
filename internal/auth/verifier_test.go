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
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://auth.example.com/"
	testAudience = "authenticated"
	testSecret   = "super-secret-signing-key"
)

func TestHMACVerifier(t *testing.T) {
	v, err := NewHMACVerifier(testSecret, testIssuer, testAudience)
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}

	claims, err := v.Verify(signHMAC(t, testSecret, jwt.MapClaims{
		"sub":   "user-123",
		"email": "a@example.com",
		"iss":   testIssuer,
		"aud":   testAudience,
		"exp":   time.Now().Add(10 * time.Minute).Unix(),
	}))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-123" || claims.Email != "a@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != testAudience {
		t.Fatalf("Audience = %v", claims.Audience)
	}
}

func TestHMACVerifierRejects(t *testing.T) {
	v, _ := NewHMACVerifier(testSecret, testIssuer, testAudience)
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "user-123",
			"iss": testIssuer,
			"aud": testAudience,
			"exp": time.Now().Add(10 * time.Minute).Unix(),
		}
	}

	tests := []struct {
		name   string
		secret string
		mutate func(jwt.MapClaims)
	}{
		{"wrong secret", "other-secret", func(jwt.MapClaims) {}},
		{"expired", testSecret, func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{"no expiry", testSecret, func(c jwt.MapClaims) { delete(c, "exp") }},
		{"wrong audience", testSecret, func(c jwt.MapClaims) { c["aud"] = "anon" }},
		{"wrong issuer", testSecret, func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com/" }},
		{"no subject", testSecret, func(c jwt.MapClaims) { delete(c, "sub") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := valid()
			tt.mutate(claims)
			if _, err := v.Verify(signHMAC(t, tt.secret, claims)); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestHMACVerifierRejectsNoneAlg(t *testing.T) {
	v, _ := NewHMACVerifier(testSecret, "", "")
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(s); err == nil {
		t.Fatalf("accepted an unsigned token")
	}
}

func TestJWKSVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(newJWKS(key, "test-key"))
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	v, err := NewJWKSVerifier(ctx, server.URL, testIssuer, testAudience)
	if err != nil {
		t.Fatalf("NewJWKSVerifier: %v", err)
	}

	claims, err := v.Verify(signRSA(t, key, "test-key"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Fatalf("Subject = %q", claims.Subject)
	}

	otherKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	if _, err := v.Verify(signRSA(t, otherKey, "test-key")); err == nil {
		t.Fatalf("accepted a token signed by an unknown key")
	}
}

func TestExtractBearerToken(t *testing.T) {
	token, ok := ExtractBearerToken("Bearer abc")
	if !ok || token != "abc" {
		t.Fatalf("expected token")
	}
	if _, ok := ExtractBearerToken("bearer  "); ok {
		t.Fatalf("expected empty token to be invalid")
	}
	if _, ok := ExtractBearerToken("Token abc"); ok {
		t.Fatalf("expected invalid scheme")
	}
	if _, ok := ExtractBearerToken(""); ok {
		t.Fatalf("expected empty header to be invalid")
	}
}

func signHMAC(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func signRSA(t *testing.T, key *rsa.PrivateKey, kid string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "user-123",
		"exp": now.Add(10 * time.Minute).Unix(),
		"iat": now.Unix(),
	})
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKS(key *rsa.PrivateKey, kid string) map[string][]jwk {
	return map[string][]jwk{"keys": {{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}}}
}
