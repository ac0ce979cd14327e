package routes

import "net/http"

// DefaultRoutes is the static production route table. Keep specific routes
// above the prefix routes that would otherwise swallow them.
func DefaultRoutes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/healthz", Handler: "health"},
		{Method: http.MethodGet, Path: "/api/public-config", Handler: "public_config"},

		// Shell pages; auth happens client-side against the API.
		{Method: http.MethodGet, Path: "/login", Handler: "login_shell"},
		{Method: http.MethodGet, Path: "/admin", Handler: "admin_shell"},
		{Method: http.MethodGet, Path: "/app", Handler: "app_shell"},
		{Method: http.MethodGet, Path: "/setup", Handler: "setup_shell"},
		{Method: http.MethodGet, Path: "/coupon", Handler: "coupon_shell"},
		{Method: http.MethodGet, Path: "/campaign/", Handler: "campaign_shell", IsPrefix: true},

		// Externally-triggered webhooks; no browser session is ever present.
		{Method: http.MethodPost, Path: "/api/telegram-webhook", Handler: "telegram_webhook", DBRequired: true},
		{Method: http.MethodPost, Path: "/api/stripe-webhook", Handler: "stripe_webhook", DBRequired: true},

		// Onboarding; newly signed-up principals have no tenant mapping yet.
		{Method: http.MethodGet, Path: "/api/onboarding/status", Handler: "onboarding_status", AuthRequired: true, DBRequired: true},
		{Method: http.MethodPost, Path: "/api/onboarding/complete-step", Handler: "onboarding_complete_step", AuthRequired: true, DBRequired: true},

		// Tenant dashboard API.
		{Method: http.MethodGet, Path: "/api/campaigns", Handler: "campaigns_list", AuthRequired: true, DBRequired: true},
		{Method: http.MethodPost, Path: "/api/campaigns", Handler: "campaigns_create", AuthRequired: true, DBRequired: true},
		{Method: http.MethodGet, Path: "/api/campaigns/", Handler: "campaigns_detail", AuthRequired: true, DBRequired: true, IsPrefix: true},
		{Method: http.MethodGet, Path: "/api/coupons", Handler: "coupons_list", AuthRequired: true, DBRequired: true},
		{Method: http.MethodGet, Path: "/api/forex-signals", Handler: "forex_signals", AuthRequired: true, DBRequired: true},
		{Method: http.MethodGet, Path: "/api/forex-signals/", Handler: "forex_signal_detail", AuthRequired: true, DBRequired: true, IsPrefix: true, Contains: "signal"},

		// Operator-only surface.
		{Method: http.MethodGet, Path: "/api/bot-stats", Handler: "bot_stats", AuthRequired: true, DBRequired: true},
		{Method: http.MethodGet, Path: "/api/admin/auth-diagnostics", Handler: "auth_diagnostics", AuthRequired: true},
	}
}
