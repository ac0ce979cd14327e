package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const setupStatusKeyPrefix = "setup_status:"

// CachedDirectory wraps a Directory with a short-TTL Redis cache on
// SetupStatus. Tenant membership lookups stay uncached; mapping changes must
// take effect on the next request.
type CachedDirectory struct {
	inner  Directory
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Directory = (*CachedDirectory)(nil)

// NewCachedDirectory wraps inner. A nil client disables caching.
func NewCachedDirectory(inner Directory, client redis.UniversalClient, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedDirectory{inner: inner, client: client, ttl: ttl}
}

func (d *CachedDirectory) TenantForPrincipal(ctx context.Context, principalID string) (string, error) {
	return d.inner.TenantForPrincipal(ctx, principalID)
}

func (d *CachedDirectory) SetupStatus(ctx context.Context, tenantID string) (SetupStatus, error) {
	if d.client == nil {
		return d.inner.SetupStatus(ctx, tenantID)
	}

	key := setupStatusKeyPrefix + tenantID
	if raw, err := d.client.Get(ctx, key).Bytes(); err == nil {
		var cached SetupStatus
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		zap.L().Warn("setup status cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}

	status, err := d.inner.SetupStatus(ctx, tenantID)
	if err != nil {
		return SetupStatus{}, err
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return status, nil
	}
	if err := d.client.Set(ctx, key, payload, d.ttl).Err(); err != nil {
		zap.L().Warn("setup status cache write failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return status, nil
}

// Invalidate drops the cached setup status for a tenant, for use after an
// onboarding step completes.
func (d *CachedDirectory) Invalidate(ctx context.Context, tenantID string) error {
	if d.client == nil {
		return nil
	}
	if err := d.client.Del(ctx, setupStatusKeyPrefix+tenantID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("invalidate setup status: %w", err)
	}
	return nil
}
