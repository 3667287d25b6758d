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

// WorkRecordRepository implements the read-only WorkRecordRepository view over
// the time tracking collaborator's table. This service never writes it.
type WorkRecordRepository struct {
	q        queryable
	tenantID int64
}

// NewWorkRecordRepository creates a new work record repository
func NewWorkRecordRepository(db *database.DB, tenantID int64) *WorkRecordRepository {
	return &WorkRecordRepository{q: db.Pool, tenantID: tenantID}
}

// newWorkRecordRepository creates a new work record repository with a transaction and tenant scope
func newWorkRecordRepository(tx queryable, tenantID int64) service.WorkRecordRepository {
	return &WorkRecordRepository{q: tx, tenantID: tenantID}
}

// GetByID retrieves a work record within the tenant scope
func (r *WorkRecordRepository) GetByID(ctx context.Context, id int64) (*models.WorkRecord, error) {
	query := `
		SELECT id, tenant_id, user_id, work_date, minutes, status, created_at
		FROM work_records
		WHERE id = $1 AND tenant_id = $2
	`

	var record models.WorkRecord
	err := r.q.QueryRow(ctx, query, id, r.tenantID).Scan(
		&record.ID,
		&record.TenantID,
		&record.UserID,
		&record.WorkDate,
		&record.Minutes,
		&record.Status,
		&record.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work record %d: %w", id, err)
	}

	return &record, nil
}

// ApprovedMinutesForDay sums approved minutes for a user on a business day,
// optionally excluding one record
func (r *WorkRecordRepository) ApprovedMinutesForDay(ctx context.Context, userID int64, day time.Time, excludeRecordID *int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(minutes), 0)
		FROM work_records
		WHERE tenant_id = $1
		  AND user_id = $2
		  AND work_date = $3
		  AND status = 'approved'
		  AND ($4::bigint IS NULL OR id <> $4)
	`

	var total int
	if err := r.q.QueryRow(ctx, query, r.tenantID, userID, day, excludeRecordID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum approved minutes for user %d on %s: %w",
			userID, day.Format("2006-01-02"), err)
	}

	return total, nil
}

// ApprovedTotalsByUserDay returns approved minutes grouped by user and day
func (r *WorkRecordRepository) ApprovedTotalsByUserDay(ctx context.Context, from, to time.Time) ([]*models.UserDayTotal, error) {
	query := `
		SELECT user_id, work_date, COALESCE(SUM(minutes), 0)
		FROM work_records
		WHERE tenant_id = $1
		  AND work_date >= $2 AND work_date <= $3
		  AND status = 'approved'
		GROUP BY user_id, work_date
		ORDER BY user_id ASC, work_date ASC
	`

	rows, err := r.q.Query(ctx, query, r.tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get approved totals by user and day: %w", err)
	}
	defer rows.Close()

	var totals []*models.UserDayTotal
	for rows.Next() {
		var t models.UserDayTotal
		if err := rows.Scan(&t.UserID, &t.Day, &t.Minutes); err != nil {
			return nil, fmt.Errorf("failed to scan approved day total: %w", err)
		}
		totals = append(totals, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approved day totals: %w", err)
	}

	return totals, nil
}

// LastApprovedRecordOfDay returns the most recent approved record for a user
// and day, or nil when the day has none
func (r *WorkRecordRepository) LastApprovedRecordOfDay(ctx context.Context, userID int64, day time.Time) (*models.WorkRecord, error) {
	query := `
		SELECT id, tenant_id, user_id, work_date, minutes, status, created_at
		FROM work_records
		WHERE tenant_id = $1
		  AND user_id = $2
		  AND work_date = $3
		  AND status = 'approved'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var record models.WorkRecord
	err := r.q.QueryRow(ctx, query, r.tenantID, userID, day).Scan(
		&record.ID,
		&record.TenantID,
		&record.UserID,
		&record.WorkDate,
		&record.Minutes,
		&record.Status,
		&record.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last approved record for user %d on %s: %w",
			userID, day.Format("2006-01-02"), err)
	}

	return &record, nil
}
