package models

import (
	"time"
)

// WorkRecordStatus mirrors the approval state maintained by the external
// time tracking collaborator. Only approved records produce excess.
type WorkRecordStatus string

const (
	WorkRecordStatusPending  WorkRecordStatus = "pending"
	WorkRecordStatusApproved WorkRecordStatus = "approved"
	WorkRecordStatusRejected WorkRecordStatus = "rejected"
)

// WorkRecord is a read-only view of an approved work entry. The record's
// lifecycle belongs to the time tracking collaborator; this service only
// reads it to derive daily totals and anchor deductions.
type WorkRecord struct {
	ID        int64            `db:"id"`
	TenantID  int64            `db:"tenant_id"`
	UserID    int64            `db:"user_id"`
	WorkDate  time.Time        `db:"work_date"`
	Minutes   int              `db:"minutes"`
	Status    WorkRecordStatus `db:"status"`
	CreatedAt time.Time        `db:"created_at"`
}

// UserDayTotal is the total approved minutes for one user on one business day.
type UserDayTotal struct {
	UserID  int64     `db:"user_id"`
	Day     time.Time `db:"day"`
	Minutes int       `db:"minutes"`
}
