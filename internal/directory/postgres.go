package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory implements Directory against the tenant schema.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

var _ Directory = (*PostgresDirectory)(nil)

// NewPostgresDirectory creates a Postgres-backed tenant directory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) TenantForPrincipal(ctx context.Context, principalID string) (string, error) {
	const q = `SELECT tenant_id FROM tenant_members WHERE clerk_user_id = $1 LIMIT 1`

	var tenantID string
	err := d.pool.QueryRow(ctx, q, principalID).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tenant for principal: %w", err)
	}
	return tenantID, nil
}

func (d *PostgresDirectory) SetupStatus(ctx context.Context, tenantID string) (SetupStatus, error) {
	const q = `SELECT step, completed FROM tenant_setup_steps WHERE tenant_id = $1 ORDER BY position`

	rows, err := d.pool.Query(ctx, q, tenantID)
	if err != nil {
		return SetupStatus{}, fmt.Errorf("setup status: %w", err)
	}
	defer rows.Close()

	status := SetupStatus{IsComplete: true}
	for rows.Next() {
		var step string
		var completed bool
		if err := rows.Scan(&step, &completed); err != nil {
			return SetupStatus{}, fmt.Errorf("scan setup step: %w", err)
		}
		if completed {
			status.CompletedSteps = append(status.CompletedSteps, step)
		} else {
			status.IsComplete = false
			status.RemainingSteps = append(status.RemainingSteps, step)
		}
	}
	if err := rows.Err(); err != nil {
		return SetupStatus{}, fmt.Errorf("setup status rows: %w", err)
	}
	return status, nil
}
