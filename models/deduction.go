package models

import (
	"time"
)

// RollbackReason identifies why a deduction was reversed
type RollbackReason string

const (
	RollbackReasonRecordRejected RollbackReason = "record_rejected"
	RollbackReasonRecordDeleted  RollbackReason = "record_deleted"
	RollbackReasonRecordEdited   RollbackReason = "record_edited"
)

// Deduction represents one slice of excess minutes applied from an approved
// work record against a debt. At most one active deduction exists per
// (debt, work record) pair; re-application increments the existing row.
// Deductions are never hard-deleted.
type Deduction struct {
	ID              int64      `db:"id"`
	DebtID          int64      `db:"debt_id"`
	WorkRecordID    int64      `db:"work_record_id"`
	MinutesDeducted int        `db:"minutes_deducted"`
	// ExcessMinutes equals MinutesDeducted today; kept as a separate column
	// so the two can diverge without a schema change.
	ExcessMinutes int        `db:"excess_minutes"`
	DeductedAt    time.Time  `db:"deducted_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
	DeleteReason  *string    `db:"delete_reason"`
}
