package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/zap"
)

// JWKSConfig configures the remote signing-key source.
type JWKSConfig struct {
	URL      string
	Issuer   string
	Audience string
	// RefreshInterval bounds how long a fetched key set is reused.
	RefreshInterval time.Duration
}

// JWKSVerifier validates RS256 session tokens against a remote JWKS,
// caching the key set between refreshes. Safe for concurrent use.
type JWKSVerifier struct {
	cfg    JWKSConfig
	client *http.Client
	logger *zap.Logger

	mu        sync.Mutex
	keySet    *gojose.JSONWebKeySet
	fetchedAt time.Time
}

var _ Verifier = (*JWKSVerifier)(nil)

// NewJWKSVerifier constructs a verifier. An empty URL yields a verifier that
// reports FailureNotConfigured for every credential.
func NewJWKSVerifier(cfg JWKSConfig, logger *zap.Logger) *JWKSVerifier {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Hour
	}
	if logger == nil {
		logger = zap.L()
	}
	return &JWKSVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type sessionClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Verify implements Verifier.
func (v *JWKSVerifier) Verify(ctx context.Context, bearer string) (*Identity, FailureReason) {
	if v.cfg.URL == "" {
		return nil, FailureNotConfigured
	}

	parsed, err := gojwt.ParseSigned(bearer, []gojose.SignatureAlgorithm{gojose.RS256})
	if err != nil {
		return nil, FailureMalformed
	}

	keySet, err := v.keys(ctx)
	if err != nil {
		v.logger.Warn("jwks fetch failed", zap.String("url", v.cfg.URL), zap.Error(err))
		return nil, FailureKeyFetch
	}

	var std gojwt.Claims
	var custom sessionClaims
	if err := claimsFromSet(parsed, keySet, &std, &custom); err != nil {
		return nil, FailureBadSignature
	}

	expected := gojwt.Expected{Time: time.Now()}
	if v.cfg.Issuer != "" {
		expected.Issuer = v.cfg.Issuer
	}
	if err := std.Validate(expected); err != nil {
		switch {
		case errors.Is(err, gojwt.ErrExpired), errors.Is(err, gojwt.ErrNotValidYet):
			return nil, FailureExpired
		case errors.Is(err, gojwt.ErrInvalidIssuer):
			return nil, FailureBadIssuer
		default:
			return nil, FailureUnknown
		}
	}
	if v.cfg.Audience != "" && !std.Audience.Contains(v.cfg.Audience) {
		return nil, FailureBadAudience
	}

	if std.Subject == "" || custom.Email == "" {
		return nil, FailureMissingClaims
	}

	return &Identity{
		Subject:   std.Subject,
		Email:     custom.Email,
		Name:      custom.Name,
		AvatarURL: custom.Picture,
	}, FailureNone
}

func claimsFromSet(parsed *gojwt.JSONWebToken, keySet *gojose.JSONWebKeySet, dests ...interface{}) error {
	for _, header := range parsed.Headers {
		if header.KeyID == "" {
			continue
		}
		for _, key := range keySet.Key(header.KeyID) {
			if err := parsed.Claims(key.Key, dests...); err == nil {
				return nil
			}
		}
	}
	// No kid match; try every key before giving up.
	for _, key := range keySet.Keys {
		if err := parsed.Claims(key.Key, dests...); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no key in set verifies the token")
}

func (v *JWKSVerifier) keys(ctx context.Context) (*gojose.JSONWebKeySet, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keySet != nil && time.Since(v.fetchedAt) < v.cfg.RefreshInterval {
		return v.keySet, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	res, err := v.client.Do(req)
	if err != nil {
		if v.keySet != nil {
			// Stale keys beat no keys while the source is unreachable.
			return v.keySet, nil
		}
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if v.keySet != nil {
			return v.keySet, nil
		}
		return nil, fmt.Errorf("fetch jwks: status %d", res.StatusCode)
	}

	var keySet gojose.JSONWebKeySet
	if err := json.NewDecoder(res.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	v.keySet = &keySet
	v.fetchedAt = time.Now()
	return v.keySet, nil
}
