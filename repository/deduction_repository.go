package repository

import (
	"context"
	"fmt"
	"time"

	"hourledger/database"
	"hourledger/models"
	"hourledger/service"
	"github.com/jackc/pgx/v5"
)

const deductionColumns = `id, debt_id, work_record_id, minutes_deducted, excess_minutes,
	       deducted_at, deleted_at, delete_reason`

// DeductionRepository implements the DeductionRepository interface.
// Tenant scoping flows through the owning debt.
type DeductionRepository struct {
	q        queryable
	tenantID int64
}

// NewDeductionRepository creates a new deduction repository
func NewDeductionRepository(db *database.DB, tenantID int64) *DeductionRepository {
	return &DeductionRepository{q: db.Pool, tenantID: tenantID}
}

// newDeductionRepository creates a new deduction repository with a transaction and tenant scope
func newDeductionRepository(tx queryable, tenantID int64) service.DeductionRepository {
	return &DeductionRepository{q: tx, tenantID: tenantID}
}

func collectDeductions(rows pgx.Rows) ([]*models.Deduction, error) {
	defer rows.Close()

	var deductions []*models.Deduction
	for rows.Next() {
		var d models.Deduction
		err := rows.Scan(
			&d.ID,
			&d.DebtID,
			&d.WorkRecordID,
			&d.MinutesDeducted,
			&d.ExcessMinutes,
			&d.DeductedAt,
			&d.DeletedAt,
			&d.DeleteReason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deduction: %w", err)
		}
		deductions = append(deductions, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deductions: %w", err)
	}

	return deductions, nil
}

// Upsert inserts a deduction or increments the active row for the same
// (debt, work record) pair. The increment form keeps re-application of the
// same excess idempotent under retried operations.
func (r *DeductionRepository) Upsert(ctx context.Context, deduction *models.Deduction) error {
	query := `
		INSERT INTO deductions (debt_id, work_record_id, minutes_deducted, excess_minutes, deducted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (debt_id, work_record_id) WHERE deleted_at IS NULL
		DO UPDATE SET
			minutes_deducted = deductions.minutes_deducted + EXCLUDED.minutes_deducted,
			excess_minutes = deductions.excess_minutes + EXCLUDED.excess_minutes,
			deducted_at = EXCLUDED.deducted_at
		RETURNING id, minutes_deducted, excess_minutes, deducted_at
	`

	err := r.q.QueryRow(ctx, query,
		deduction.DebtID,
		deduction.WorkRecordID,
		deduction.MinutesDeducted,
		deduction.ExcessMinutes,
		deduction.DeductedAt,
	).Scan(
		&deduction.ID,
		&deduction.MinutesDeducted,
		&deduction.ExcessMinutes,
		&deduction.DeductedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert deduction for debt %d, work record %d: %w",
			deduction.DebtID, deduction.WorkRecordID, err)
	}

	return nil
}

// GetActiveByWorkRecord returns the active deductions tied to a work record
func (r *DeductionRepository) GetActiveByWorkRecord(ctx context.Context, workRecordID int64) ([]*models.Deduction, error) {
	query := `
		SELECT ` + deductionColumns + `
		FROM deductions d
		WHERE d.work_record_id = $1
		  AND d.deleted_at IS NULL
		  AND EXISTS (SELECT 1 FROM debts WHERE debts.id = d.debt_id AND debts.tenant_id = $2)
		ORDER BY d.id ASC
	`

	rows, err := r.q.Query(ctx, query, workRecordID, r.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deductions for work record %d: %w", workRecordID, err)
	}

	return collectDeductions(rows)
}

// SoftDeleteByWorkRecord soft-deletes all active deductions for a work record
func (r *DeductionRepository) SoftDeleteByWorkRecord(ctx context.Context, workRecordID int64, reason models.RollbackReason) (int, error) {
	query := `
		UPDATE deductions d
		SET deleted_at = NOW(), delete_reason = $1
		WHERE d.work_record_id = $2
		  AND d.deleted_at IS NULL
		  AND EXISTS (SELECT 1 FROM debts WHERE debts.id = d.debt_id AND debts.tenant_id = $3)
	`

	result, err := r.q.Exec(ctx, query, string(reason), workRecordID, r.tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete deductions for work record %d: %w", workRecordID, err)
	}

	return int(result.RowsAffected()), nil
}

// GetByDebt returns a debt's deductions, optionally including reversed ones
func (r *DeductionRepository) GetByDebt(ctx context.Context, debtID int64, includeDeleted bool) ([]*models.Deduction, error) {
	query := `
		SELECT ` + deductionColumns + `
		FROM deductions d
		WHERE d.debt_id = $1
		  AND EXISTS (SELECT 1 FROM debts WHERE debts.id = d.debt_id AND debts.tenant_id = $2)
	`
	if !includeDeleted {
		query += " AND d.deleted_at IS NULL"
	}
	query += " ORDER BY d.deducted_at ASC, d.id ASC"

	rows, err := r.q.Query(ctx, query, debtID, r.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deductions for debt %d: %w", debtID, err)
	}

	return collectDeductions(rows)
}

// SumActiveByDebt returns the total active minutes deducted from a debt
func (r *DeductionRepository) SumActiveByDebt(ctx context.Context, debtID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(minutes_deducted), 0)
		FROM deductions
		WHERE debt_id = $1 AND deleted_at IS NULL
	`

	var total int
	if err := r.q.QueryRow(ctx, query, debtID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum deductions for debt %d: %w", debtID, err)
	}

	return total, nil
}

// SumActiveByDebtIDs returns active deducted minutes grouped by debt id.
// Debts with no active deductions are absent from the map.
func (r *DeductionRepository) SumActiveByDebtIDs(ctx context.Context, debtIDs []int64) (map[int64]int, error) {
	sums := make(map[int64]int)
	if len(debtIDs) == 0 {
		return sums, nil
	}

	query := `
		SELECT debt_id, COALESCE(SUM(minutes_deducted), 0)
		FROM deductions
		WHERE debt_id = ANY($1) AND deleted_at IS NULL
		GROUP BY debt_id
	`

	rows, err := r.q.Query(ctx, query, debtIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to sum deductions by debt ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var debtID int64
		var total int
		if err := rows.Scan(&debtID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan deduction sum: %w", err)
		}
		sums[debtID] = total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deduction sums: %w", err)
	}

	return sums, nil
}

// SumDeductedByUserDay returns active deducted minutes grouped by user and
// work day, attributed via the originating work record
func (r *DeductionRepository) SumDeductedByUserDay(ctx context.Context, from, to time.Time) ([]*models.UserDayTotal, error) {
	query := `
		SELECT w.user_id, w.work_date, COALESCE(SUM(d.minutes_deducted), 0)
		FROM deductions d
		JOIN work_records w ON w.id = d.work_record_id
		WHERE d.deleted_at IS NULL
		  AND w.tenant_id = $1
		  AND w.work_date >= $2 AND w.work_date <= $3
		GROUP BY w.user_id, w.work_date
		ORDER BY w.user_id ASC, w.work_date ASC
	`

	rows, err := r.q.Query(ctx, query, r.tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to sum deductions by user and day: %w", err)
	}
	defer rows.Close()

	var totals []*models.UserDayTotal
	for rows.Next() {
		var t models.UserDayTotal
		if err := rows.Scan(&t.UserID, &t.Day, &t.Minutes); err != nil {
			return nil, fmt.Errorf("failed to scan deduction day total: %w", err)
		}
		totals = append(totals, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deduction day totals: %w", err)
	}

	return totals, nil
}

// SumDeductedForDay returns the active minutes deducted for one user and
// work day, attributed via the originating work record
func (r *DeductionRepository) SumDeductedForDay(ctx context.Context, userID int64, day time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(d.minutes_deducted), 0)
		FROM deductions d
		JOIN work_records w ON w.id = d.work_record_id
		WHERE d.deleted_at IS NULL
		  AND w.tenant_id = $1
		  AND w.user_id = $2
		  AND w.work_date = $3
	`

	var total int
	if err := r.q.QueryRow(ctx, query, r.tenantID, userID, day).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum deductions for user %d on %s: %w", userID, day.Format("2006-01-02"), err)
	}

	return total, nil
}

// SumDeductedSince returns the total active minutes deducted since a time
func (r *DeductionRepository) SumDeductedSince(ctx context.Context, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(d.minutes_deducted), 0)
		FROM deductions d
		JOIN debts ON debts.id = d.debt_id
		WHERE debts.tenant_id = $1
		  AND d.deleted_at IS NULL
		  AND d.deducted_at >= $2
	`

	var total int64
	if err := r.q.QueryRow(ctx, query, r.tenantID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum deductions since %s: %w", since.Format("2006-01-02"), err)
	}

	return total, nil
}
