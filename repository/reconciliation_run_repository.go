package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"hourledger/database"
	"hourledger/models"
	"hourledger/service"
	"github.com/jackc/pgx/v5"
)

// ReconciliationRunRepository implements the ReconciliationRunRepository interface
type ReconciliationRunRepository struct {
	q        queryable
	tenantID int64
}

// NewReconciliationRunRepository creates a new reconciliation run repository
func NewReconciliationRunRepository(db *database.DB, tenantID int64) *ReconciliationRunRepository {
	return &ReconciliationRunRepository{q: db.Pool, tenantID: tenantID}
}

// newReconciliationRunRepository creates a new reconciliation run repository with a transaction and tenant scope
func newReconciliationRunRepository(tx queryable, tenantID int64) service.ReconciliationRunRepository {
	return &ReconciliationRunRepository{q: tx, tenantID: tenantID}
}

// Create persists a completed run
func (r *ReconciliationRunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	query := `
		INSERT INTO reconciliation_runs
		(id, tenant_id, period_start, period_end, requested_by, balance_fixes_applied,
		 gaps_found, minutes_applied, users_flagged, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err = r.q.QueryRow(ctx, query,
		run.ID,
		r.tenantID,
		run.PeriodStart,
		run.PeriodEnd,
		run.RequestedBy,
		run.BalanceFixesApplied,
		run.GapsFound,
		run.MinutesApplied,
		run.UsersFlagged,
		summaryJSON,
	).Scan(&run.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create reconciliation run: %w", err)
	}

	run.TenantID = r.tenantID

	return nil
}

// GetLatest returns the most recent run for the tenant, or nil
func (r *ReconciliationRunRepository) GetLatest(ctx context.Context) (*models.ReconciliationRun, error) {
	query := `
		SELECT id, tenant_id, period_start, period_end, requested_by, balance_fixes_applied,
		       gaps_found, minutes_applied, users_flagged, summary, created_at
		FROM reconciliation_runs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var run models.ReconciliationRun
	var summaryJSON []byte

	err := r.q.QueryRow(ctx, query, r.tenantID).Scan(
		&run.ID,
		&run.TenantID,
		&run.PeriodStart,
		&run.PeriodEnd,
		&run.RequestedBy,
		&run.BalanceFixesApplied,
		&run.GapsFound,
		&run.MinutesApplied,
		&run.UsersFlagged,
		&summaryJSON,
		&run.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reconciliation run: %w", err)
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
		}
	}

	return &run, nil
}
