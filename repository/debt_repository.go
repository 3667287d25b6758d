package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hourledger/database"
	"hourledger/models"
	"hourledger/service"
	"github.com/jackc/pgx/v5"
)

const debtColumns = `id, tenant_id, user_id, date, owed_minutes, remaining_minutes,
	       status, reason, created_by, created_at, updated_by, updated_at, deleted_by, deleted_at`

// DebtRepository implements the DebtRepository interface
type DebtRepository struct {
	q        queryable
	tenantID int64
}

// NewDebtRepository creates a new debt repository
func NewDebtRepository(db *database.DB, tenantID int64) *DebtRepository {
	return &DebtRepository{q: db.Pool, tenantID: tenantID}
}

// newDebtRepository creates a new debt repository with a transaction and tenant scope
func newDebtRepository(tx queryable, tenantID int64) service.DebtRepository {
	return &DebtRepository{q: tx, tenantID: tenantID}
}

func scanDebt(row pgx.Row) (*models.Debt, error) {
	var debt models.Debt
	err := row.Scan(
		&debt.ID,
		&debt.TenantID,
		&debt.UserID,
		&debt.Date,
		&debt.OwedMinutes,
		&debt.RemainingMinutes,
		&debt.Status,
		&debt.Reason,
		&debt.CreatedBy,
		&debt.CreatedAt,
		&debt.UpdatedBy,
		&debt.UpdatedAt,
		&debt.DeletedBy,
		&debt.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &debt, nil
}

func collectDebts(rows pgx.Rows) ([]*models.Debt, error) {
	defer rows.Close()

	var debts []*models.Debt
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debt: %w", err)
		}
		debts = append(debts, debt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debts: %w", err)
	}

	return debts, nil
}

// Create persists a new debt and fills in id and timestamps
func (r *DebtRepository) Create(ctx context.Context, debt *models.Debt) error {
	query := `
		INSERT INTO debts (tenant_id, user_id, date, owed_minutes, remaining_minutes, status, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		r.tenantID,
		debt.UserID,
		debt.Date,
		debt.OwedMinutes,
		debt.RemainingMinutes,
		debt.Status,
		debt.Reason,
		debt.CreatedBy,
	).Scan(&debt.ID, &debt.CreatedAt, &debt.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create debt for user %d: %w", debt.UserID, err)
	}

	debt.TenantID = r.tenantID

	return nil
}

// GetByID retrieves a debt by id within the tenant scope
func (r *DebtRepository) GetByID(ctx context.Context, id int64) (*models.Debt, error) {
	query := `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE id = $1 AND tenant_id = $2
	`

	debt, err := scanDebt(r.q.QueryRow(ctx, query, id, r.tenantID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debt %d: %w", id, err)
	}

	return debt, nil
}

// List returns debts matching the filter, newest date first
func (r *DebtRepository) List(ctx context.Context, filter service.DebtFilter) ([]*models.Debt, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{r.tenantID}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}
	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	query := `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY date DESC, id DESC
	`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}

	return collectDebts(rows)
}

// GetActiveForUpdate locks and returns the user's eligible debts in FIFO order.
// A debt incurred after the work day is excluded: work cannot retroactively
// pay a debt that did not exist yet.
func (r *DebtRepository) GetActiveForUpdate(ctx context.Context, userID int64, onOrBefore time.Time) ([]*models.Debt, error) {
	query := `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE tenant_id = $1
		  AND user_id = $2
		  AND status = 'active'
		  AND remaining_minutes > 0
		  AND deleted_at IS NULL
		  AND date <= $3
		ORDER BY date ASC, id ASC
		FOR UPDATE
	`

	rows, err := r.q.Query(ctx, query, r.tenantID, userID, onOrBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to lock active debts for user %d: %w", userID, err)
	}

	return collectDebts(rows)
}

// GetForUpdateByIDs locks and returns the given debts regardless of status.
// Rows are locked in the same (date, id) order GetActiveForUpdate uses so a
// concurrent allocation and rollback for one user cannot deadlock each other.
func (r *DebtRepository) GetForUpdateByIDs(ctx context.Context, ids []int64) ([]*models.Debt, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE id = ANY($1) AND tenant_id = $2
		ORDER BY date ASC, id ASC
		FOR UPDATE
	`

	rows, err := r.q.Query(ctx, query, ids, r.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock debts by ids: %w", err)
	}

	return collectDebts(rows)
}

// GetAllActive returns every active, non-deleted debt for the tenant
func (r *DebtRepository) GetAllActive(ctx context.Context) ([]*models.Debt, error) {
	query := `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE tenant_id = $1 AND status = 'active' AND deleted_at IS NULL
		ORDER BY user_id ASC, date ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query, r.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active debts: %w", err)
	}

	return collectDebts(rows)
}

// UpdateBalance sets a debt's remaining minutes and status
func (r *DebtRepository) UpdateBalance(ctx context.Context, debtID int64, remaining int, status models.DebtStatus) error {
	query := `
		UPDATE debts
		SET remaining_minutes = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4
	`

	result, err := r.q.Exec(ctx, query, remaining, status, debtID, r.tenantID)
	if err != nil {
		return fmt.Errorf("failed to update balance for debt %d: %w", debtID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("debt %d not found", debtID)
	}

	return nil
}

// Update persists administrative edits
func (r *DebtRepository) Update(ctx context.Context, debt *models.Debt) error {
	query := `
		UPDATE debts
		SET date = $1, owed_minutes = $2, remaining_minutes = $3, status = $4,
		    reason = $5, updated_by = $6, updated_at = NOW()
		WHERE id = $7 AND tenant_id = $8
	`

	result, err := r.q.Exec(ctx, query,
		debt.Date,
		debt.OwedMinutes,
		debt.RemainingMinutes,
		debt.Status,
		debt.Reason,
		debt.UpdatedBy,
		debt.ID,
		r.tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update debt %d: %w", debt.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("debt %d not found", debt.ID)
	}

	return nil
}

// Cancel marks a debt cancelled without deleting it
func (r *DebtRepository) Cancel(ctx context.Context, debtID int64, cancelledBy int64) error {
	query := `
		UPDATE debts
		SET status = 'cancelled', updated_by = $1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, cancelledBy, debtID, r.tenantID)
	if err != nil {
		return fmt.Errorf("failed to cancel debt %d: %w", debtID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("debt %d not found", debtID)
	}

	return nil
}

// SoftDelete cancels and soft-deletes a debt. Deduction history stays intact.
func (r *DebtRepository) SoftDelete(ctx context.Context, debtID int64, deletedBy int64) error {
	query := `
		UPDATE debts
		SET status = 'cancelled', deleted_by = $1, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, deletedBy, debtID, r.tenantID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete debt %d: %w", debtID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("debt %d not found", debtID)
	}

	return nil
}

// EarliestDebtDates returns, per user, the earliest non-cancelled debt date
func (r *DebtRepository) EarliestDebtDates(ctx context.Context) (map[int64]time.Time, error) {
	query := `
		SELECT user_id, MIN(date)
		FROM debts
		WHERE tenant_id = $1 AND status <> 'cancelled' AND deleted_at IS NULL
		GROUP BY user_id
	`

	rows, err := r.q.Query(ctx, query, r.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get earliest debt dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[int64]time.Time)
	for rows.Next() {
		var userID int64
		var date time.Time
		if err := rows.Scan(&userID, &date); err != nil {
			return nil, fmt.Errorf("failed to scan earliest debt date: %w", err)
		}
		dates[userID] = date
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate earliest debt dates: %w", err)
	}

	return dates, nil
}

// GetUserBalance aggregates the user's active debt position
func (r *DebtRepository) GetUserBalance(ctx context.Context, userID int64) (*models.UserBalance, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'active'),
		       COALESCE(SUM(owed_minutes) FILTER (WHERE status = 'active'), 0),
		       COALESCE(SUM(remaining_minutes) FILTER (WHERE status = 'active'), 0)
		FROM debts
		WHERE tenant_id = $1 AND user_id = $2 AND deleted_at IS NULL
	`

	balance := models.UserBalance{UserID: userID}
	err := r.q.QueryRow(ctx, query, r.tenantID, userID).Scan(
		&balance.ActiveDebts,
		&balance.OwedMinutes,
		&balance.RemainingMinutes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for user %d: %w", userID, err)
	}

	return &balance, nil
}

// GetTenantDebtStats aggregates active debt counts and totals for the tenant
func (r *DebtRepository) GetTenantDebtStats(ctx context.Context) (*models.TenantDebtStats, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'active'),
		       COUNT(DISTINCT user_id) FILTER (WHERE status = 'active' AND remaining_minutes > 0),
		       COALESCE(SUM(remaining_minutes) FILTER (WHERE status = 'active'), 0),
		       COALESCE(SUM(owed_minutes) FILTER (WHERE status = 'active'), 0)
		FROM debts
		WHERE tenant_id = $1 AND deleted_at IS NULL
	`

	stats := models.TenantDebtStats{TenantID: r.tenantID}
	err := r.q.QueryRow(ctx, query, r.tenantID).Scan(
		&stats.ActiveDebts,
		&stats.UsersWithDebt,
		&stats.TotalRemainingMinutes,
		&stats.TotalOwedMinutes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant debt stats: %w", err)
	}

	return &stats, nil
}
