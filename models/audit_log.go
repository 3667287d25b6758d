package models

import (
	"time"
)

// AuditAction represents the kind of debt mutation being recorded
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionCancel AuditAction = "cancel"
)

// DebtSnapshot is the audited before/after state of a debt. Stored as JSONB.
type DebtSnapshot struct {
	Date             time.Time  `json:"date"`
	OwedMinutes      int        `json:"owed_minutes"`
	RemainingMinutes int        `json:"remaining_minutes"`
	Status           DebtStatus `json:"status"`
	Reason           string     `json:"reason"`
}

// SnapshotOf captures the audited fields of a debt.
func SnapshotOf(d *Debt) *DebtSnapshot {
	if d == nil {
		return nil
	}
	return &DebtSnapshot{
		Date:             d.Date,
		OwedMinutes:      d.OwedMinutes,
		RemainingMinutes: d.RemainingMinutes,
		Status:           d.Status,
		Reason:           d.Reason,
	}
}

// RequestMeta carries request-level metadata stamped onto audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// DebtAuditLog is one immutable record of a debt mutation. One entry per
// mutating operation on a debt; routine pay-down deductions are not audited.
type DebtAuditLog struct {
	ID            int64         `db:"id"`
	DebtID        int64         `db:"debt_id"`
	Action        AuditAction   `db:"action"`
	BeforeState   *DebtSnapshot `db:"before_state"`
	AfterState    *DebtSnapshot `db:"after_state"`
	ChangedFields []string      `db:"changed_fields"`
	Reason        *string       `db:"reason"`
	PerformedBy   int64         `db:"performed_by"`
	IPAddress     string        `db:"ip_address"`
	UserAgent     string        `db:"user_agent"`
	CreatedAt     time.Time     `db:"created_at"`
}
