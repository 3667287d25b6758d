package models

import (
	"time"

	"github.com/google/uuid"
)

// BalanceFix records one corrected drift found by the balance audit.
type BalanceFix struct {
	DebtID     int64 `json:"debt_id"`
	UserID     int64 `json:"user_id"`
	OldBalance int   `json:"old_balance"`
	NewBalance int   `json:"new_balance"`
}

// UserReconciliation is the per-user outcome of a review period. A positive
// Gap after auto-apply means excess minutes that could not be matched to any
// eligible debt and should be reviewed manually.
type UserReconciliation struct {
	UserID          int64 `json:"user_id"`
	ExpectedExcess  int   `json:"expected_excess"`
	DeductedMinutes int   `json:"deducted_minutes"`
	Gap             int   `json:"gap"`
	Flagged         bool  `json:"flagged"`
}

// ReconciliationReport summarizes one whole-period review run.
type ReconciliationReport struct {
	RunID               uuid.UUID            `json:"run_id"`
	TenantID            int64                `json:"tenant_id"`
	PeriodStart         time.Time            `json:"period_start"`
	PeriodEnd           time.Time            `json:"period_end"`
	RequestedBy         int64                `json:"requested_by"`
	BalanceFixesApplied int                  `json:"balance_fixes_applied"`
	BalanceFixes        []BalanceFix         `json:"balance_fixes"`
	GapsFound           int                  `json:"gaps_found"`
	MinutesApplied      int                  `json:"minutes_applied"`
	UsersFlagged        int                  `json:"users_flagged"`
	Users               []UserReconciliation `json:"users"`
	CompletedAt         time.Time            `json:"completed_at"`
}

// ReconciliationRun is the persisted record of one review run.
type ReconciliationRun struct {
	ID                  uuid.UUID      `db:"id"`
	TenantID            int64          `db:"tenant_id"`
	PeriodStart         time.Time      `db:"period_start"`
	PeriodEnd           time.Time      `db:"period_end"`
	RequestedBy         int64          `db:"requested_by"`
	BalanceFixesApplied int            `db:"balance_fixes_applied"`
	GapsFound           int            `db:"gaps_found"`
	MinutesApplied      int            `db:"minutes_applied"`
	UsersFlagged        int            `db:"users_flagged"`
	Summary             map[string]any `db:"summary"`
	CreatedAt           time.Time      `db:"created_at"`
}
