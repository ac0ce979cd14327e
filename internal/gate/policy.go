package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Kind names the gate a pattern participates in. One table drives every
// path-membership check so a route can never be added to one list and
// forgotten in another.
type Kind string

const (
	// KindPublic paths skip all tenant/auth checks; they serve static
	// shells that do their own client-side auth.
	KindPublic Kind = "public"
	// KindWebhookExempt paths are called by external services with no
	// session; tier and operator gates never apply to them.
	KindWebhookExempt Kind = "webhook_exempt"
	// KindOperatorOnly paths are restricted to the operator tenant.
	KindOperatorOnly Kind = "operator_only"
	// KindFeatureTier paths require the tenant to have completed setup.
	KindFeatureTier Kind = "feature_tier"
	// KindOnboarding paths stay reachable for principals without a tenant
	// mapping; new signups have none by definition.
	KindOnboarding Kind = "onboarding"
)

// Pattern is one (path, kind) policy entry. Prefix entries match any path
// under Path; exact entries match the path alone.
type Pattern struct {
	Path   string `json:"path"`
	Prefix bool   `json:"prefix,omitempty"`
	Kind   Kind   `json:"kind"`
}

// Policy is the full gate pattern table. Read-only after construction.
type Policy struct {
	patterns []Pattern
}

// NewPolicy builds a policy from explicit patterns.
func NewPolicy(patterns []Pattern) *Policy {
	return &Policy{patterns: patterns}
}

// DefaultPolicy is the built-in production table.
func DefaultPolicy() *Policy {
	return NewPolicy([]Pattern{
		{Path: "/healthz", Kind: KindPublic},
		{Path: "/api/public-config", Kind: KindPublic},
		{Path: "/login", Kind: KindPublic},
		{Path: "/admin", Kind: KindPublic},
		{Path: "/app", Kind: KindPublic},
		{Path: "/setup", Kind: KindPublic},
		{Path: "/coupon", Kind: KindPublic},
		{Path: "/campaign/", Prefix: true, Kind: KindPublic},

		{Path: "/api/telegram-webhook", Kind: KindWebhookExempt},
		{Path: "/api/stripe-webhook", Kind: KindWebhookExempt},

		{Path: "/api/bot-stats", Kind: KindOperatorOnly},
		{Path: "/api/admin/", Prefix: true, Kind: KindOperatorOnly},

		{Path: "/api/forex-signals", Kind: KindFeatureTier},
		{Path: "/api/forex-signals/", Prefix: true, Kind: KindFeatureTier},

		{Path: "/api/onboarding/", Prefix: true, Kind: KindOnboarding},
	})
}

// LoadPolicy reads a pattern table from a JSON file so the lists stay
// editable without touching gate logic. An empty path returns the default.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gate policy: %w", err)
	}
	var patterns []Pattern
	if err := json.Unmarshal(raw, &patterns); err != nil {
		return nil, fmt.Errorf("parse gate policy: %w", err)
	}
	for _, p := range patterns {
		switch p.Kind {
		case KindPublic, KindWebhookExempt, KindOperatorOnly, KindFeatureTier, KindOnboarding:
		default:
			return nil, fmt.Errorf("gate policy: unknown kind %q for %q", p.Kind, p.Path)
		}
		if p.Path == "" {
			return nil, fmt.Errorf("gate policy: entry with empty path")
		}
	}
	return NewPolicy(patterns), nil
}

// Matches reports whether path belongs to the given gate kind. A trailing
// query string on the path never affects membership.
func (p *Policy) Matches(kind Kind, path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, entry := range p.patterns {
		if entry.Kind != kind {
			continue
		}
		if entry.Prefix {
			if strings.HasPrefix(path, entry.Path) {
				return true
			}
			continue
		}
		if entry.Path == path {
			return true
		}
	}
	return false
}
