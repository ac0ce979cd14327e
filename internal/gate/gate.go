package gate

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/niallclarke-spec/couponpro-sub002/internal/audit"
	"github.com/niallclarke-spec/couponpro-sub002/internal/directory"
	"github.com/niallclarke-spec/couponpro-sub002/internal/hostctx"
	"github.com/niallclarke-spec/couponpro-sub002/internal/identity"
	"github.com/niallclarke-spec/couponpro-sub002/internal/routes"
)

// Gate evaluates the ordered authorization checks for one matched route.
// Every denial writes exactly one JSON response; the dispatcher writes
// nothing after a false return.
type Gate struct {
	policy   *Policy
	resolver *identity.Resolver
	dir      directory.Directory
	ring     *audit.Ring
	logger   *zap.Logger
}

// New constructs a Gate.
func New(policy *Policy, resolver *identity.Resolver, dir directory.Directory, ring *audit.Ring, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.L()
	}
	return &Gate{policy: policy, resolver: resolver, dir: dir, ring: ring, logger: logger}
}

// Authorize runs the gate chain. The first failing check aborts the request
// with its specific status and body and returns false.
func (g *Gate) Authorize(c *gin.Context, route *routes.Route, host hostctx.Context, dbAvailable bool) bool {
	path := c.Request.URL.Path

	// Database gate.
	if route.DBRequired && !dbAvailable {
		g.deny(c, host, identity.Resolution{}, http.StatusServiceUnavailable, "database_unavailable", gin.H{
			"error": "service temporarily unavailable",
		})
		return false
	}

	// Static shell pages authenticate client-side; nothing to check here.
	if g.policy.Matches(KindPublic, path) {
		return true
	}

	// One resolution per request, attached before any branch reads it.
	res := g.resolver.Resolve(c.Request)
	identity.Attach(c, res)

	onboarding := g.policy.Matches(KindOnboarding, path)

	if res.Err == identity.ErrNoTenantMapping && !onboarding {
		body := gin.H{"error": "no tenant mapping"}
		if res.Principal != nil {
			body["clerk_user_id"] = res.Principal.Subject
		}
		g.deny(c, host, res, http.StatusForbidden, "no_tenant_mapping", body)
		return false
	}

	switch host.Type {
	case hostctx.TypeDash:
		if route.AuthRequired && res.TenantID == "" {
			// Fresh signups have no mapping yet; a verified credential
			// is enough on onboarding routes.
			if !(onboarding && res.Authenticated()) {
				g.deny(c, host, res, http.StatusUnauthorized, "not_authenticated", gin.H{
					"error": "authentication required",
				})
				return false
			}
		}
		if !route.AuthRequired && res.TenantID == "" {
			// Attach a usable tenant context for page personalization.
			res.TenantID = identity.OperatorTenant
			identity.Attach(c, res)
		}
	case hostctx.TypeAdmin, hostctx.TypeDefault:
		if route.AuthRequired {
			if res.TenantID == "" {
				g.deny(c, host, res, http.StatusUnauthorized, "not_authenticated", gin.H{
					"error": "authentication required",
				})
				return false
			}
			if !g.resolver.IsAdminEmail(res.ActingEmail) {
				g.deny(c, host, res, http.StatusForbidden, "admin_access_required", gin.H{
					"error":   "admin access required",
					"message": "this host requires an operator admin account",
				})
				return false
			}
		}
	}

	// Webhook callers never carry a session; everything below is
	// session-based gating and must not apply.
	if g.policy.Matches(KindWebhookExempt, path) {
		return true
	}

	if g.policy.Matches(KindOperatorOnly, path) && res.TenantID != identity.OperatorTenant {
		g.deny(c, host, res, http.StatusForbidden, "operator_only", gin.H{
			"error": "feature only available for operator",
		})
		return false
	}

	if g.policy.Matches(KindFeatureTier, path) && res.TenantID != "" && res.TenantID != identity.OperatorTenant {
		status, err := g.dir.SetupStatus(c.Request.Context(), res.TenantID)
		if err != nil {
			g.logger.Error("setup status lookup failed", zap.String("tenant_id", res.TenantID), zap.Error(err))
			g.deny(c, host, res, http.StatusServiceUnavailable, "setup_status_unavailable", gin.H{
				"error": "service temporarily unavailable",
			})
			return false
		}
		if !status.IsComplete {
			g.deny(c, host, res, http.StatusForbidden, "setup_incomplete", gin.H{
				"error":        "tenant setup incomplete",
				"setup_status": status,
			})
			return false
		}
	}

	return true
}

func (g *Gate) deny(c *gin.Context, host hostctx.Context, res identity.Resolution, status int, reason string, body gin.H) {
	if g.ring != nil {
		if reason == "not_authenticated" && res.Failure != "" {
			reason = reason + ":" + string(res.Failure)
		}
		g.ring.Record(audit.Entry{
			Method:      c.Request.Method,
			Path:        c.Request.URL.Path,
			HostType:    host.Type.String(),
			TokenSource: string(res.Source),
			Reason:      reason,
			TenantID:    res.TenantID,
			ActingEmail: res.ActingEmail,
		})
	}
	c.AbortWithStatusJSON(status, body)
}
