package identity

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/niallclarke-spec/couponpro-sub002/internal/directory"
	"github.com/niallclarke-spec/couponpro-sub002/internal/token"
)

// OperatorTenant is the reserved tenant id for the platform operator.
// It is not a regular tenant and is exempt from tenant-tier feature gates.
const OperatorTenant = "entrylab"

// ImpersonateHeader names the tenant an operator admin acts within.
const ImpersonateHeader = "X-Impersonate-Tenant"

const legacyCookieName = "admin_session"

// Err classifies a resolution outcome beyond "no tenant".
type Err int

const (
	ErrNone Err = iota
	// ErrNoTenantMapping means the principal verified but has no tenant
	// record yet; onboarding routes are the only ones open to them.
	ErrNoTenantMapping
)

// Resolution is the authoritative per-request tenant context. It is built
// exactly once per request and attached to the request context so every gate
// and handler sees the same outcome.
type Resolution struct {
	// TenantID is empty when no tenant could be resolved.
	TenantID string
	Err      Err
	// Impersonating is true when an operator admin switched into another
	// tenant's context. ActingEmail stays the real admin's email for audit.
	Impersonating bool
	ActingEmail   string
	Principal     *token.Identity
	// Source and Failure are diagnostics describing where the credential
	// came from and why verification failed, if it did.
	Source  token.Source
	Failure token.FailureReason
}

// Authenticated reports whether any verified identity backs this resolution.
func (r Resolution) Authenticated() bool {
	return r.TenantID != "" || r.Principal != nil || r.ActingEmail != ""
}

// Resolver produces one Resolution per request from the token verifier, the
// tenant directory, and the legacy admin session store.
type Resolver struct {
	verifier    token.Verifier
	directory   directory.Directory
	sessions    LegacySessions
	adminEmails map[string]struct{}
	logger      *zap.Logger
}

// NewResolver constructs a Resolver. adminEmails is the operator admin set;
// comparison is case-insensitive.
func NewResolver(verifier token.Verifier, dir directory.Directory, sessions LegacySessions, adminEmails []string, logger *zap.Logger) *Resolver {
	set := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Resolver{
		verifier:    verifier,
		directory:   dir,
		sessions:    sessions,
		adminEmails: set,
		logger:      logger,
	}
}

// IsAdminEmail reports membership in the operator admin set.
func (r *Resolver) IsAdminEmail(email string) bool {
	_, ok := r.adminEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Resolve derives the tenant context for the request. It never fails: every
// outcome, including "fully unauthenticated", is a valid Resolution.
func (r *Resolver) Resolve(req *http.Request) Resolution {
	ctx := req.Context()

	bearer, source, failure := token.FromRequest(req)
	if bearer != "" {
		id, verifyFailure := r.verifier.Verify(ctx, bearer)
		if id != nil {
			return r.resolveVerified(req, id, source)
		}
		return Resolution{Source: source, Failure: verifyFailure}
	}

	// Pre-JWT fallback: the admin_session cookie predates the token
	// verifier and must keep working.
	if res, ok := r.resolveLegacy(req); ok {
		return res
	}

	return Resolution{Source: source, Failure: failure}
}

func (r *Resolver) resolveVerified(req *http.Request, id *token.Identity, source token.Source) Resolution {
	impersonated := strings.TrimSpace(req.Header.Get(ImpersonateHeader))

	if r.IsAdminEmail(id.Email) {
		if impersonated != "" {
			r.logger.Info("admin impersonating tenant",
				zap.String("admin_email", id.Email),
				zap.String("tenant_id", impersonated),
			)
			return Resolution{
				TenantID:      impersonated,
				Impersonating: true,
				ActingEmail:   id.Email,
				Principal:     id,
				Source:        source,
			}
		}
		return Resolution{
			TenantID:    OperatorTenant,
			ActingEmail: id.Email,
			Principal:   id,
			Source:      source,
		}
	}

	if impersonated != "" {
		// The header is never an implicit capability; drop it and log.
		r.logger.Warn("non-admin impersonation attempt ignored",
			zap.String("email", id.Email),
			zap.String("requested_tenant", impersonated),
		)
	}

	tenantID, err := r.directory.TenantForPrincipal(req.Context(), id.Subject)
	if err != nil {
		r.logger.Error("tenant directory lookup failed",
			zap.String("clerk_user_id", id.Subject),
			zap.Error(err),
		)
		return Resolution{Err: ErrNoTenantMapping, ActingEmail: id.Email, Principal: id, Source: source}
	}
	if tenantID == "" {
		return Resolution{Err: ErrNoTenantMapping, ActingEmail: id.Email, Principal: id, Source: source}
	}

	return Resolution{
		TenantID:    tenantID,
		ActingEmail: id.Email,
		Principal:   id,
		Source:      source,
	}
}

func (r *Resolver) resolveLegacy(req *http.Request) (Resolution, bool) {
	if r.sessions == nil {
		return Resolution{}, false
	}
	cookie, err := req.Cookie(legacyCookieName)
	if err != nil || cookie.Value == "" {
		return Resolution{}, false
	}

	email, err := r.sessions.EmailForSession(req.Context(), cookie.Value)
	if err != nil {
		r.logger.Warn("legacy session lookup failed", zap.Error(err))
		return Resolution{Source: token.SourceSessionCookie, Failure: token.FailureCookieParse}, true
	}
	if email == "" || !r.IsAdminEmail(email) {
		return Resolution{}, false
	}

	impersonated := strings.TrimSpace(req.Header.Get(ImpersonateHeader))
	if impersonated != "" {
		r.logger.Info("admin impersonating tenant via legacy session",
			zap.String("admin_email", email),
			zap.String("tenant_id", impersonated),
		)
		return Resolution{
			TenantID:      impersonated,
			Impersonating: true,
			ActingEmail:   email,
			Source:        token.SourceSessionCookie,
		}, true
	}

	return Resolution{
		TenantID:    OperatorTenant,
		ActingEmail: email,
		Source:      token.SourceSessionCookie,
	}, true
}
