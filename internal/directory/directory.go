package directory

import "context"

// SetupStatus reports how far a tenant has progressed through onboarding.
// RemainingSteps lets clients redirect the user to what is left.
type SetupStatus struct {
	IsComplete     bool     `json:"is_complete"`
	CompletedSteps []string `json:"completed_steps,omitempty"`
	RemainingSteps []string `json:"remaining_steps,omitempty"`
}

// Directory maps verified principals to tenants and reports per-tenant
// onboarding completion. The authorization layer depends on this interface
// only; persistence lives behind it.
type Directory interface {
	// TenantForPrincipal returns the tenant id the principal belongs to,
	// or "" when the principal has no mapping yet.
	TenantForPrincipal(ctx context.Context, principalID string) (string, error)
	// SetupStatus reports onboarding completion for the tenant.
	SetupStatus(ctx context.Context, tenantID string) (SetupStatus, error)
}
