package models

import (
	"time"
)

// DefaultDailyThresholdMinutes is the daily threshold applied when a tenant
// has no explicit configuration (8 hours).
const DefaultDailyThresholdMinutes = 480

// TenantSettings holds the per-tenant ledger configuration.
type TenantSettings struct {
	TenantID               int64     `db:"tenant_id"`
	DailyThresholdMinutes  int       `db:"daily_threshold_minutes"`
	Timezone               string    `db:"timezone"`
	CreatedAt              time.Time `db:"created_at"`
	UpdatedAt              time.Time `db:"updated_at"`
}
