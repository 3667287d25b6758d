package models

import (
	"time"
)

// DebtStatus represents the lifecycle state of a debt
type DebtStatus string

const (
	DebtStatusActive    DebtStatus = "active"
	DebtStatusFullyPaid DebtStatus = "fully_paid"
	DebtStatusCancelled DebtStatus = "cancelled"
)

// Permitted range for the original owed amount, in minutes.
const (
	MinOwedMinutes = 1
	MaxOwedMinutes = 960
)

// BalanceToleranceMinutes is the allowed drift between a debt's stored
// remaining balance and the balance recomputed from its active deductions.
// Absorbs historical rounding; anything larger is corrected by the
// reconciliation balance audit.
const BalanceToleranceMinutes = 1

// Debt represents minutes owed by one user for one calendar day.
// Date is normalized to midnight in the tenant's business timezone.
type Debt struct {
	ID               int64      `db:"id"`
	TenantID         int64      `db:"tenant_id"`
	UserID           int64      `db:"user_id"`
	Date             time.Time  `db:"date"`
	OwedMinutes      int        `db:"owed_minutes"`
	RemainingMinutes int        `db:"remaining_minutes"`
	Status           DebtStatus `db:"status"`
	Reason           string     `db:"reason"`
	CreatedBy        int64      `db:"created_by"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedBy        *int64     `db:"updated_by"`
	UpdatedAt        time.Time  `db:"updated_at"`
	DeletedBy        *int64     `db:"deleted_by"`
	DeletedAt        *time.Time `db:"deleted_at"`
}
