package repository

import (
	"context"
	"fmt"

	"hourledger/database"
	"hourledger/models"
	"hourledger/service"
	"github.com/jackc/pgx/v5"
)

// TenantDefaults seeds the settings row created on first contact with a
// tenant. Deployment-level defaults come from config; per-tenant overrides
// live in the row itself.
type TenantDefaults struct {
	DailyThresholdMinutes int
	Timezone              string
}

func (d TenantDefaults) normalized() TenantDefaults {
	if d.DailyThresholdMinutes <= 0 {
		d.DailyThresholdMinutes = models.DefaultDailyThresholdMinutes
	}
	if d.Timezone == "" {
		d.Timezone = "UTC"
	}
	return d
}

// TenantSettingsRepository implements the TenantSettingsRepository interface
type TenantSettingsRepository struct {
	q        queryable
	tenantID int64
	defaults TenantDefaults
}

// NewTenantSettingsRepository creates a new tenant settings repository
func NewTenantSettingsRepository(db *database.DB, tenantID int64, defaults TenantDefaults) *TenantSettingsRepository {
	return &TenantSettingsRepository{q: db.Pool, tenantID: tenantID, defaults: defaults.normalized()}
}

// newTenantSettingsRepository creates a new tenant settings repository with a transaction and tenant scope
func newTenantSettingsRepository(tx queryable, tenantID int64, defaults TenantDefaults) service.TenantSettingsRepository {
	return &TenantSettingsRepository{q: tx, tenantID: tenantID, defaults: defaults.normalized()}
}

// GetOrCreate retrieves the tenant's settings or creates default ones
func (r *TenantSettingsRepository) GetOrCreate(ctx context.Context) (*models.TenantSettings, error) {
	query := `
		SELECT tenant_id, daily_threshold_minutes, timezone, created_at, updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`

	var settings models.TenantSettings
	err := r.q.QueryRow(ctx, query, r.tenantID).Scan(
		&settings.TenantID,
		&settings.DailyThresholdMinutes,
		&settings.Timezone,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)

	if err == nil {
		return &settings, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to get settings for tenant %d: %w", r.tenantID, err)
	}

	// ON CONFLICT guards against a concurrent first access
	insert := `
		INSERT INTO tenant_settings (tenant_id, daily_threshold_minutes, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET updated_at = tenant_settings.updated_at
		RETURNING tenant_id, daily_threshold_minutes, timezone, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, insert, r.tenantID, r.defaults.DailyThresholdMinutes, r.defaults.Timezone).Scan(
		&settings.TenantID,
		&settings.DailyThresholdMinutes,
		&settings.Timezone,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings for tenant %d: %w", r.tenantID, err)
	}

	return &settings, nil
}

// Update persists tenant settings changes
func (r *TenantSettingsRepository) Update(ctx context.Context, settings *models.TenantSettings) error {
	query := `
		UPDATE tenant_settings
		SET daily_threshold_minutes = $1, timezone = $2, updated_at = NOW()
		WHERE tenant_id = $3
	`

	result, err := r.q.Exec(ctx, query, settings.DailyThresholdMinutes, settings.Timezone, r.tenantID)
	if err != nil {
		return fmt.Errorf("failed to update settings for tenant %d: %w", r.tenantID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("settings for tenant %d not found", r.tenantID)
	}

	return nil
}
