package service

import (
	"context"
	"time"

	"hourledger/events"
	"hourledger/models"
)

// DebtFilter narrows debt listings. Nil fields are ignored.
type DebtFilter struct {
	UserID         *int64
	Status         *models.DebtStatus
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
	Limit          int
}

// Actor identifies who performs an administrative mutation, plus the request
// metadata stamped onto the audit trail.
type Actor struct {
	UserID int64
	Meta   models.RequestMeta
}

// DebtRepository defines the interface for debt data access.
// Implementations are scoped to a single tenant via the unit of work.
type DebtRepository interface {
	// Create persists a new debt and fills in id and timestamps
	Create(ctx context.Context, debt *models.Debt) error

	// GetByID retrieves a debt by id within the tenant scope
	GetByID(ctx context.Context, id int64) (*models.Debt, error)

	// List returns debts matching the filter, newest date first
	List(ctx context.Context, filter DebtFilter) ([]*models.Debt, error)

	// GetActiveForUpdate locks and returns the user's eligible debts in FIFO
	// order (oldest date first, id ascending): active, positive balance, not
	// soft-deleted, incurred on or before the given day
	GetActiveForUpdate(ctx context.Context, userID int64, onOrBefore time.Time) ([]*models.Debt, error)

	// GetForUpdateByIDs locks and returns the given debts regardless of status
	GetForUpdateByIDs(ctx context.Context, ids []int64) ([]*models.Debt, error)

	// GetAllActive returns every active, non-deleted debt for the tenant
	GetAllActive(ctx context.Context) ([]*models.Debt, error)

	// UpdateBalance sets a debt's remaining minutes and status
	UpdateBalance(ctx context.Context, debtID int64, remaining int, status models.DebtStatus) error

	// Update persists administrative edits (date, owed, remaining, reason, status)
	Update(ctx context.Context, debt *models.Debt) error

	// Cancel marks a debt cancelled without deleting it
	Cancel(ctx context.Context, debtID int64, cancelledBy int64) error

	// SoftDelete cancels and soft-deletes a debt
	SoftDelete(ctx context.Context, debtID int64, deletedBy int64) error

	// EarliestDebtDates returns, per user, the earliest debt date in the tenant
	EarliestDebtDates(ctx context.Context) (map[int64]time.Time, error)

	// GetUserBalance aggregates the user's active debt position
	GetUserBalance(ctx context.Context, userID int64) (*models.UserBalance, error)

	// GetTenantDebtStats aggregates active debt counts and totals for the tenant
	GetTenantDebtStats(ctx context.Context) (*models.TenantDebtStats, error)
}

// DeductionRepository defines the interface for deduction data access
type DeductionRepository interface {
	// Upsert inserts a deduction or, when an active row for the same
	// (debt, work record) pair exists, increments it in place
	Upsert(ctx context.Context, deduction *models.Deduction) error

	// GetActiveByWorkRecord returns the active deductions tied to a work record
	GetActiveByWorkRecord(ctx context.Context, workRecordID int64) ([]*models.Deduction, error)

	// SoftDeleteByWorkRecord soft-deletes all active deductions for a work
	// record, stamping the reason. Returns the number of rows affected
	SoftDeleteByWorkRecord(ctx context.Context, workRecordID int64, reason models.RollbackReason) (int, error)

	// GetByDebt returns a debt's deductions, optionally including reversed ones
	GetByDebt(ctx context.Context, debtID int64, includeDeleted bool) ([]*models.Deduction, error)

	// SumActiveByDebt returns the total active minutes deducted from a debt
	SumActiveByDebt(ctx context.Context, debtID int64) (int, error)

	// SumActiveByDebtIDs returns active deducted minutes grouped by debt id
	SumActiveByDebtIDs(ctx context.Context, debtIDs []int64) (map[int64]int, error)

	// SumDeductedByUserDay returns active deducted minutes grouped by user and
	// work day for the period, attributed via the originating work record
	SumDeductedByUserDay(ctx context.Context, from, to time.Time) ([]*models.UserDayTotal, error)

	// SumDeductedForDay returns the active minutes deducted for one user and
	// work day, attributed via the originating work record
	SumDeductedForDay(ctx context.Context, userID int64, day time.Time) (int, error)

	// SumDeductedSince returns the total active minutes deducted since a time
	SumDeductedSince(ctx context.Context, since time.Time) (int64, error)
}

// AuditLogRepository defines the interface for the append-only debt audit trail
type AuditLogRepository interface {
	// Record appends one audit entry
	Record(ctx context.Context, entry *models.DebtAuditLog) error

	// GetByDebt returns a debt's audit entries, newest first
	GetByDebt(ctx context.Context, debtID int64, limit int) ([]*models.DebtAuditLog, error)
}

// WorkRecordRepository is the read-only view of the external time tracking
// collaborator's approved work records
type WorkRecordRepository interface {
	// GetByID retrieves a work record within the tenant scope
	GetByID(ctx context.Context, id int64) (*models.WorkRecord, error)

	// ApprovedMinutesForDay sums approved minutes for a user on a business
	// day, optionally excluding one record (used when recomputing after edits)
	ApprovedMinutesForDay(ctx context.Context, userID int64, day time.Time, excludeRecordID *int64) (int, error)

	// ApprovedTotalsByUserDay returns approved minutes grouped by user and day
	ApprovedTotalsByUserDay(ctx context.Context, from, to time.Time) ([]*models.UserDayTotal, error)

	// LastApprovedRecordOfDay returns the most recent approved record for a
	// user and day, used to anchor reconciliation deductions
	LastApprovedRecordOfDay(ctx context.Context, userID int64, day time.Time) (*models.WorkRecord, error)
}

// TenantSettingsRepository defines the interface for tenant configuration
type TenantSettingsRepository interface {
	// GetOrCreate retrieves the tenant's settings or creates default ones
	GetOrCreate(ctx context.Context) (*models.TenantSettings, error)

	// Update persists tenant settings changes
	Update(ctx context.Context, settings *models.TenantSettings) error
}

// ReconciliationRunRepository persists completed review runs
type ReconciliationRunRepository interface {
	// Create persists a completed run
	Create(ctx context.Context, run *models.ReconciliationRun) error

	// GetLatest returns the most recent run for the tenant, or nil
	GetLatest(ctx context.Context) (*models.ReconciliationRun, error)
}

// LedgerService applies approved work against a user's hour debts
type LedgerService interface {
	// ApplyApprovedWork computes the incremental excess introduced by the
	// approved record and pays down eligible debts oldest first. Bookkeeping
	// failures are logged and swallowed so the triggering approval never
	// fails; a nil result indicates such a failure.
	ApplyApprovedWork(ctx context.Context, tenantID, userID, workRecordID int64, workDate time.Time, approvedMinutes int) *models.AllocationResult
}

// RollbackService undoes the deductions tied to a reversed work record
type RollbackService interface {
	// Rollback soft-deletes the record's active deductions and recomputes the
	// affected debt balances from scratch
	Rollback(ctx context.Context, tenantID, workRecordID int64, reason models.RollbackReason) (*models.RollbackResult, error)
}

// ReconciliationService performs whole-period consistency passes
type ReconciliationService interface {
	// RunMonthlyReview audits balances, detects and fills deduction gaps for
	// the current month to date, and reports per-user discrepancies
	RunMonthlyReview(ctx context.Context, tenantID, requestedBy int64) (*models.ReconciliationReport, error)

	// GetLatestRun returns the tenant's most recent persisted run, or nil
	GetLatestRun(ctx context.Context, tenantID int64) (*models.ReconciliationRun, error)
}

// CreateDebtParams carries the fields for an administrative debt creation
type CreateDebtParams struct {
	TenantID    int64
	UserID      int64
	Date        time.Time
	OwedMinutes int
	Reason      string
}

// UpdateDebtParams carries administrative edits; nil fields are unchanged
type UpdateDebtParams struct {
	TenantID    int64
	DebtID      int64
	Date        *time.Time
	OwedMinutes *int
	Reason      *string
}

// DebtService defines administrative debt lifecycle operations
type DebtService interface {
	// CreateDebt validates and records a new debt, with an audit entry
	CreateDebt(ctx context.Context, params CreateDebtParams, actor Actor) (*models.Debt, error)

	// UpdateDebt applies administrative edits, recomputing the remaining
	// balance when the owed amount changes
	UpdateDebt(ctx context.Context, params UpdateDebtParams, actor Actor) (*models.Debt, error)

	// CancelDebt marks a debt cancelled; deduction history is preserved
	CancelDebt(ctx context.Context, tenantID, debtID int64, actor Actor, reason string) error

	// DeleteDebt soft-deletes a debt
	DeleteDebt(ctx context.Context, tenantID, debtID int64, actor Actor, reason string) error

	// GetDebt retrieves one debt
	GetDebt(ctx context.Context, tenantID, debtID int64) (*models.Debt, error)

	// ListDebts returns the tenant's debts matching the filter
	ListDebts(ctx context.Context, tenantID int64, filter DebtFilter) ([]*models.Debt, error)

	// GetUserBalance returns the user's aggregate debt position
	GetUserBalance(ctx context.Context, tenantID, userID int64) (*models.UserBalance, error)

	// GetDeductions returns a debt's deduction history
	GetDeductions(ctx context.Context, tenantID, debtID int64, includeDeleted bool) ([]*models.Deduction, error)

	// GetAuditLog returns a debt's audit trail, newest first
	GetAuditLog(ctx context.Context, tenantID, debtID int64, limit int) ([]*models.DebtAuditLog, error)
}

// SettingsService manages per-tenant ledger configuration
type SettingsService interface {
	// GetSettings returns the tenant's settings, creating defaults on first use
	GetSettings(ctx context.Context, tenantID int64) (*models.TenantSettings, error)

	// UpdateSettings changes the tenant's daily threshold and timezone
	UpdateSettings(ctx context.Context, tenantID int64, thresholdMinutes int, timezone string) (*models.TenantSettings, error)
}

// StatsService exposes aggregate business statistics
type StatsService interface {
	// GetTenantStats returns tenant-wide debt totals including minutes paid
	// in the current month
	GetTenantStats(ctx context.Context, tenantID int64) (*models.TenantDebtStats, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	DebtRepository() DebtRepository
	DeductionRepository() DeductionRepository
	AuditLogRepository() AuditLogRepository
	WorkRecordRepository() WorkRecordRepository
	TenantSettingsRepository() TenantSettingsRepository
	ReconciliationRunRepository() ReconciliationRunRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// CreateForTenant creates a new UnitOfWork instance scoped to a tenant
	CreateForTenant(tenantID int64) UnitOfWork
}
