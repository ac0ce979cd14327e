package token

import (
	"context"
	"net/http"
	"strings"
)

// Identity is a verified principal. Ephemeral, built per request.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// FailureReason is a closed enumeration of verification failures. It feeds
// diagnostics only; callers branch solely on "verified or not".
type FailureReason string

const (
	FailureNone          FailureReason = ""
	FailureMissingHeader FailureReason = "missing_header"
	FailureMalformed     FailureReason = "malformed_bearer"
	FailureNotConfigured FailureReason = "verifier_not_configured"
	FailureKeyFetch      FailureReason = "key_fetch_failed"
	FailureBadSignature  FailureReason = "bad_signature"
	FailureExpired       FailureReason = "expired"
	FailureBadIssuer     FailureReason = "bad_issuer"
	FailureBadAudience   FailureReason = "bad_audience"
	FailureMissingClaims FailureReason = "missing_claims"
	FailureCookieParse   FailureReason = "cookie_parse"
	FailureUnknown       FailureReason = "unknown"
)

// Verifier turns a bearer credential into a verified identity. Implementations
// must be side-effect-free from the caller's perspective and bound their own
// latency; key-set caching is expected.
type Verifier interface {
	Verify(ctx context.Context, bearer string) (*Identity, FailureReason)
}

// Source says where a credential was found on the request.
type Source string

const (
	SourceNone          Source = "none"
	SourceAuthorization Source = "authorization_header"
	SourceSessionCookie Source = "session_cookie"
)

const sessionCookieName = "__session"

// FromRequest extracts the raw bearer credential, preferring the
// Authorization header over the session cookie.
func FromRequest(r *http.Request) (string, Source, FailureReason) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", SourceAuthorization, FailureMalformed
		}
		return strings.TrimSpace(parts[1]), SourceAuthorization, FailureNone
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, SourceSessionCookie, FailureNone
	}

	return "", SourceNone, FailureMissingHeader
}
