package models

// UserBalance is the aggregate debt position for one user.
type UserBalance struct {
	UserID           int64 `db:"user_id"`
	ActiveDebts      int   `db:"active_debts"`
	OwedMinutes      int64 `db:"owed_minutes"`
	RemainingMinutes int64 `db:"remaining_minutes"`
}

// TenantDebtStats is the tenant-wide summary exposed to administrative UIs.
type TenantDebtStats struct {
	TenantID              int64 `db:"tenant_id"`
	ActiveDebts           int   `db:"active_debts"`
	UsersWithDebt         int   `db:"users_with_debt"`
	TotalRemainingMinutes int64 `db:"total_remaining_minutes"`
	TotalOwedMinutes      int64 `db:"total_owed_minutes"`
	MinutesPaidThisMonth  int64 `db:"minutes_paid_this_month"`
}
