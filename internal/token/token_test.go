package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/niallclarke-spec/couponpro-sub002/internal/token"
)

func TestFromRequestHeaderBeatsCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://x/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: "__session", Value: "cookie-token"})

	bearer, source, failure := token.FromRequest(req)
	require.Equal(t, "header-token", bearer)
	require.Equal(t, token.SourceAuthorization, source)
	require.Equal(t, token.FailureNone, failure)
}

func TestFromRequestCookieFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://x/", nil)
	req.AddCookie(&http.Cookie{Name: "__session", Value: "cookie-token"})

	bearer, source, failure := token.FromRequest(req)
	require.Equal(t, "cookie-token", bearer)
	require.Equal(t, token.SourceSessionCookie, source)
	require.Equal(t, token.FailureNone, failure)
}

func TestFromRequestMalformedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://x/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	bearer, source, failure := token.FromRequest(req)
	require.Empty(t, bearer)
	require.Equal(t, token.SourceAuthorization, source)
	require.Equal(t, token.FailureMalformed, failure)
}

func TestFromRequestMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://x/", nil)

	bearer, source, failure := token.FromRequest(req)
	require.Empty(t, bearer)
	require.Equal(t, token.SourceNone, source)
	require.Equal(t, token.FailureMissingHeader, failure)
}

type jwksFixture struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keySet := gojose.JSONWebKeySet{Keys: []gojose.JSONWebKey{{
		Key:       &key.PublicKey,
		KeyID:     "test-key",
		Algorithm: string(gojose.RS256),
		Use:       "sig",
	}}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keySet)
	}))
	t.Cleanup(server.Close)

	return &jwksFixture{key: key, server: server}
}

func (f *jwksFixture) sign(t *testing.T, std gojwt.Claims, custom map[string]any) string {
	t.Helper()
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.RS256, Key: f.key},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", "test-key"),
	)
	require.NoError(t, err)

	raw, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	require.NoError(t, err)
	return raw
}

func (f *jwksFixture) verifier(issuer string) *token.JWKSVerifier {
	return token.NewJWKSVerifier(token.JWKSConfig{
		URL:    f.server.URL,
		Issuer: issuer,
	}, zap.NewNop())
}

func stdClaims(issuer string) gojwt.Claims {
	now := time.Now()
	return gojwt.Claims{
		Subject:  "user_123",
		Issuer:   issuer,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func TestJWKSVerifierRoundTrip(t *testing.T) {
	f := newJWKSFixture(t)
	raw := f.sign(t, stdClaims("https://issuer.test"), map[string]any{
		"email": "owner@acme.com",
		"name":  "Acme Owner",
	})

	id, reason := f.verifier("https://issuer.test").Verify(context.Background(), raw)
	require.Equal(t, token.FailureNone, reason)
	require.NotNil(t, id)
	require.Equal(t, "user_123", id.Subject)
	require.Equal(t, "owner@acme.com", id.Email)
	require.Equal(t, "Acme Owner", id.Name)
}

func TestJWKSVerifierExpired(t *testing.T) {
	f := newJWKSFixture(t)
	std := stdClaims("https://issuer.test")
	std.Expiry = gojwt.NewNumericDate(time.Now().Add(-time.Hour))
	raw := f.sign(t, std, map[string]any{"email": "owner@acme.com"})

	id, reason := f.verifier("https://issuer.test").Verify(context.Background(), raw)
	require.Nil(t, id)
	require.Equal(t, token.FailureExpired, reason)
}

func TestJWKSVerifierBadIssuer(t *testing.T) {
	f := newJWKSFixture(t)
	raw := f.sign(t, stdClaims("https://evil.test"), map[string]any{"email": "owner@acme.com"})

	id, reason := f.verifier("https://issuer.test").Verify(context.Background(), raw)
	require.Nil(t, id)
	require.Equal(t, token.FailureBadIssuer, reason)
}

func TestJWKSVerifierMissingClaims(t *testing.T) {
	f := newJWKSFixture(t)
	raw := f.sign(t, stdClaims("https://issuer.test"), map[string]any{})

	id, reason := f.verifier("https://issuer.test").Verify(context.Background(), raw)
	require.Nil(t, id)
	require.Equal(t, token.FailureMissingClaims, reason)
}

func TestJWKSVerifierGarbageToken(t *testing.T) {
	f := newJWKSFixture(t)
	id, reason := f.verifier("https://issuer.test").Verify(context.Background(), "not-a-jwt")
	require.Nil(t, id)
	require.Equal(t, token.FailureMalformed, reason)
}

func TestJWKSVerifierNotConfigured(t *testing.T) {
	v := token.NewJWKSVerifier(token.JWKSConfig{}, zap.NewNop())
	id, reason := v.Verify(context.Background(), "anything")
	require.Nil(t, id)
	require.Equal(t, token.FailureNotConfigured, reason)
}

func TestJWKSVerifierForeignSignature(t *testing.T) {
	f := newJWKSFixture(t)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.RS256, Key: other},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", "test-key"),
	)
	require.NoError(t, err)
	raw, err := gojwt.Signed(signer).Claims(stdClaims("https://issuer.test")).Serialize()
	require.NoError(t, err)

	id, reason := f.verifier("https://issuer.test").Verify(context.Background(), raw)
	require.Nil(t, id)
	require.Equal(t, token.FailureBadSignature, reason)
}
