package testutil

import (
	"context"
	"testing"
	"time"

	"hourledger/database"
	"hourledger/models"

	"github.com/jackc/pgx/v5"
)

// CreateTestDebt creates a test debt with default values
func CreateTestDebt(tenantID, userID int64, date time.Time, owedMinutes int) *models.Debt {
	return &models.Debt{
		TenantID:         tenantID,
		UserID:           userID,
		Date:             date,
		OwedMinutes:      owedMinutes,
		RemainingMinutes: owedMinutes,
		Status:           models.DebtStatusActive,
		Reason:           "test debt",
		CreatedBy:        1,
	}
}

// CreateTestDeduction creates a test deduction with default values
func CreateTestDeduction(debtID, workRecordID int64, minutes int) *models.Deduction {
	return &models.Deduction{
		DebtID:          debtID,
		WorkRecordID:    workRecordID,
		MinutesDeducted: minutes,
		ExcessMinutes:   minutes,
		DeductedAt:      time.Now(),
	}
}

// CreateTestWorkRecord creates an approved test work record
func CreateTestWorkRecord(tenantID, userID int64, workDate time.Time, minutes int) *models.WorkRecord {
	return &models.WorkRecord{
		TenantID: tenantID,
		UserID:   userID,
		WorkDate: workDate,
		Minutes:  minutes,
		Status:   models.WorkRecordStatusApproved,
	}
}

// InsertWorkRecord seeds a work record row. The work_records table belongs to
// the time tracking collaborator in production, so there is no write
// repository for it; tests insert directly.
func InsertWorkRecord(t *testing.T, db *database.DB, record *models.WorkRecord) {
	t.Helper()

	err := db.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		return tx.QueryRow(context.Background(), `
			INSERT INTO work_records (tenant_id, user_id, work_date, minutes, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, record.TenantID, record.UserID, record.WorkDate, record.Minutes, record.Status).
			Scan(&record.ID, &record.CreatedAt)
	})
	if err != nil {
		t.Fatalf("failed to insert work record: %v", err)
	}
}

// CreateTestTenantSettings creates tenant settings with default values
func CreateTestTenantSettings(tenantID int64) *models.TenantSettings {
	return &models.TenantSettings{
		TenantID:              tenantID,
		DailyThresholdMinutes: models.DefaultDailyThresholdMinutes,
		Timezone:              "UTC",
	}
}
