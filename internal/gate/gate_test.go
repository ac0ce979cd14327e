package gate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/niallclarke-spec/couponpro-sub002/internal/audit"
	"github.com/niallclarke-spec/couponpro-sub002/internal/directory"
	"github.com/niallclarke-spec/couponpro-sub002/internal/gate"
	"github.com/niallclarke-spec/couponpro-sub002/internal/hostctx"
	"github.com/niallclarke-spec/couponpro-sub002/internal/identity"
	"github.com/niallclarke-spec/couponpro-sub002/internal/routes"
	"github.com/niallclarke-spec/couponpro-sub002/internal/token"
)

type fakeVerifier struct {
	identities map[string]*token.Identity
}

func (f *fakeVerifier) Verify(ctx context.Context, bearer string) (*token.Identity, token.FailureReason) {
	if id, ok := f.identities[bearer]; ok {
		return id, token.FailureNone
	}
	return nil, token.FailureBadSignature
}

type fakeDirectory struct {
	mappings map[string]string
	statuses map[string]directory.SetupStatus
}

func (f *fakeDirectory) TenantForPrincipal(ctx context.Context, principalID string) (string, error) {
	return f.mappings[principalID], nil
}

func (f *fakeDirectory) SetupStatus(ctx context.Context, tenantID string) (directory.SetupStatus, error) {
	return f.statuses[tenantID], nil
}

type env struct {
	gate *gate.Gate
	ring *audit.Ring
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier := &fakeVerifier{identities: map[string]*token.Identity{
		"admin-token": {Subject: "user_admin", Email: "niall@entrylab.io"},
		"acme-token":  {Subject: "user_acme", Email: "owner@acme.com"},
		"ready-token": {Subject: "user_ready", Email: "owner@ready.com"},
		"new-token":   {Subject: "user_new", Email: "new@signup.com"},
	}}
	dir := &fakeDirectory{
		mappings: map[string]string{"user_acme": "acme", "user_ready": "ready"},
		statuses: map[string]directory.SetupStatus{
			"acme":  {IsComplete: false, RemainingSteps: []string{"connect-telegram"}},
			"ready": {IsComplete: true, CompletedSteps: []string{"connect-telegram"}},
		},
	}
	resolver := identity.NewResolver(verifier, dir, nil, []string{"niall@entrylab.io"}, zap.NewNop())
	ring := audit.NewRing(32, nil, zap.NewNop())
	return &env{
		gate: gate.New(gate.DefaultPolicy(), resolver, dir, ring, zap.NewNop()),
		ring: ring,
	}
}

type call struct {
	method  string
	path    string
	headers map[string]string
	route   routes.Route
	host    hostctx.Type
	dbUp    bool
}

func (e *env) authorize(t *testing.T, cl call) (bool, *httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(cl.method, "https://x"+cl.path, nil)
	for k, v := range cl.headers {
		c.Request.Header.Set(k, v)
	}
	ok := e.gate.Authorize(c, &cl.route, hostctx.Context{Type: cl.host}, cl.dbUp)
	return ok, w, c
}

func body(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestWebhookExemptPassesWithoutAnyHeaders(t *testing.T) {
	e := newEnv(t)
	ok, w, _ := e.authorize(t, call{
		method: http.MethodPost, path: "/api/telegram-webhook",
		route: routes.Route{Method: http.MethodPost, Path: "/api/telegram-webhook", Handler: "telegram_webhook", DBRequired: true},
		host:  hostctx.TypeDash, dbUp: true,
	})
	require.True(t, ok)
	require.Empty(t, w.Body.String())
}

func TestWebhookExemptPassesWithTenantCredential(t *testing.T) {
	e := newEnv(t)
	ok, _, _ := e.authorize(t, call{
		method: http.MethodPost, path: "/api/telegram-webhook",
		headers: map[string]string{"Authorization": "Bearer acme-token"},
		route:   routes.Route{Method: http.MethodPost, Path: "/api/telegram-webhook", Handler: "telegram_webhook", DBRequired: true},
		host:    hostctx.TypeAdmin, dbUp: true,
	})
	require.True(t, ok)
}

func TestDatabaseGateWins(t *testing.T) {
	e := newEnv(t)
	ok, w, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/campaigns",
		headers: map[string]string{"Authorization": "Bearer admin-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/campaigns", Handler: "campaigns_list", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDash, dbUp: false,
	})
	require.False(t, ok)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, body(t, w), "error")
}

func TestPublicPathBypassesEverything(t *testing.T) {
	e := newEnv(t)
	ok, _, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/login",
		route: routes.Route{Method: http.MethodGet, Path: "/login", Handler: "login_shell"},
		host:  hostctx.TypeDefault, dbUp: true,
	})
	require.True(t, ok)
}

func TestNoTenantMappingDenied(t *testing.T) {
	e := newEnv(t)
	ok, w, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/campaigns",
		headers: map[string]string{"Authorization": "Bearer new-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/campaigns", Handler: "campaigns_list", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDash, dbUp: true,
	})
	require.False(t, ok)
	require.Equal(t, http.StatusForbidden, w.Code)
	b := body(t, w)
	require.Equal(t, "no tenant mapping", b["error"])
	require.Equal(t, "user_new", b["clerk_user_id"])
}

func TestNoTenantMappingAllowedOnOnboarding(t *testing.T) {
	e := newEnv(t)
	ok, _, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/onboarding/status",
		headers: map[string]string{"Authorization": "Bearer new-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/onboarding/status", Handler: "onboarding_status", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDash, dbUp: true,
	})
	require.True(t, ok)
}

func TestDashUnauthenticatedIs401(t *testing.T) {
	e := newEnv(t)
	ok, w, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/campaigns",
		route: routes.Route{Method: http.MethodGet, Path: "/api/campaigns", Handler: "campaigns_list", AuthRequired: true, DBRequired: true},
		host:  hostctx.TypeDash, dbUp: true,
	})
	require.False(t, ok)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashPublicRouteGetsOperatorContext(t *testing.T) {
	e := newEnv(t)
	ok, _, c := e.authorize(t, call{
		method: http.MethodGet, path: "/api/coupons-preview",
		route: routes.Route{Method: http.MethodGet, Path: "/api/coupons-preview", Handler: "coupons_preview"},
		host:  hostctx.TypeDash, dbUp: true,
	})
	require.True(t, ok)
	res, found := identity.FromContext(c)
	require.True(t, found)
	require.Equal(t, identity.OperatorTenant, res.TenantID)
}

func TestAdminHostRequiresAdminEmail(t *testing.T) {
	e := newEnv(t)
	ok, w, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/campaigns",
		headers: map[string]string{"Authorization": "Bearer acme-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/campaigns", Handler: "campaigns_list", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeAdmin, dbUp: true,
	})
	require.False(t, ok)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "admin access required", body(t, w)["error"])
}

func TestDefaultHostMirrorsAdminHost(t *testing.T) {
	e := newEnv(t)
	ok, w, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/campaigns",
		headers: map[string]string{"Authorization": "Bearer acme-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/campaigns", Handler: "campaigns_list", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDefault, dbUp: true,
	})
	require.False(t, ok)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminHostAllowsAdmin(t *testing.T) {
	e := newEnv(t)
	ok, _, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/campaigns",
		headers: map[string]string{"Authorization": "Bearer admin-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/campaigns", Handler: "campaigns_list", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeAdmin, dbUp: true,
	})
	require.True(t, ok)
}

func TestOperatorOnlyRouteDeniesTenant(t *testing.T) {
	e := newEnv(t)
	ok, w, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/bot-stats",
		headers: map[string]string{"Authorization": "Bearer acme-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/bot-stats", Handler: "bot_stats", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDash, dbUp: true,
	})
	require.False(t, ok)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "feature only available for operator", body(t, w)["error"])
}

func TestOperatorOnlyRouteAllowsOperator(t *testing.T) {
	e := newEnv(t)
	ok, _, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/bot-stats",
		headers: map[string]string{"Authorization": "Bearer admin-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/bot-stats", Handler: "bot_stats", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDash, dbUp: true,
	})
	require.True(t, ok)
}

func TestFeatureTierIncompleteSetupDenied(t *testing.T) {
	e := newEnv(t)
	ok, w, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/forex-signals",
		headers: map[string]string{"Authorization": "Bearer acme-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/forex-signals", Handler: "forex_signals", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDash, dbUp: true,
	})
	require.False(t, ok)
	require.Equal(t, http.StatusForbidden, w.Code)
	b := body(t, w)
	status, isMap := b["setup_status"].(map[string]any)
	require.True(t, isMap)
	require.Equal(t, false, status["is_complete"])
}

func TestFeatureTierCompleteSetupAllowed(t *testing.T) {
	e := newEnv(t)
	ok, _, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/forex-signals",
		headers: map[string]string{"Authorization": "Bearer ready-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/forex-signals", Handler: "forex_signals", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDash, dbUp: true,
	})
	require.True(t, ok)
}

func TestFeatureTierExemptsOperator(t *testing.T) {
	e := newEnv(t)
	ok, _, _ := e.authorize(t, call{
		method: http.MethodGet, path: "/api/forex-signals",
		headers: map[string]string{"Authorization": "Bearer admin-token"},
		route:   routes.Route{Method: http.MethodGet, Path: "/api/forex-signals", Handler: "forex_signals", AuthRequired: true, DBRequired: true},
		host:    hostctx.TypeDash, dbUp: true,
	})
	require.True(t, ok)
}

func TestImpersonatingAdminSubjectToTenantGates(t *testing.T) {
	e := newEnv(t)
	ok, w, c := e.authorize(t, call{
		method: http.MethodGet, path: "/api/forex-signals",
		headers: map[string]string{
			"Authorization":        "Bearer admin-token",
			"X-Impersonate-Tenant": "acme",
		},
		route: routes.Route{Method: http.MethodGet, Path: "/api/forex-signals", Handler: "forex_signals", AuthRequired: true, DBRequired: true},
		host:  hostctx.TypeDash, dbUp: true,
	})
	// Full context switch: the admin sees exactly what acme would.
	require.False(t, ok)
	require.Equal(t, http.StatusForbidden, w.Code)

	res, found := identity.FromContext(c)
	require.True(t, found)
	require.Equal(t, "acme", res.TenantID)
	require.Equal(t, "niall@entrylab.io", res.ActingEmail)
}

func TestDenialsAreAudited(t *testing.T) {
	e := newEnv(t)
	_, _, _ = e.authorize(t, call{
		method: http.MethodGet, path: "/api/campaigns",
		route: routes.Route{Method: http.MethodGet, Path: "/api/campaigns", Handler: "campaigns_list", AuthRequired: true, DBRequired: true},
		host:  hostctx.TypeDash, dbUp: true,
	})

	entries := e.ring.Snapshot()
	require.Len(t, entries, 1)
	require.Equal(t, "/api/campaigns", entries[0].Path)
	require.Equal(t, "dash", entries[0].HostType)
	require.Contains(t, entries[0].Reason, "not_authenticated")
}
