package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hourledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newLedgerMocks(tenantID int64) (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockDebtRepository, *MockDeductionRepository, *MockWorkRecordRepository, *MockTenantSettingsRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockDebtRepo := new(MockDebtRepository)
	mockDeductionRepo := new(MockDeductionRepository)
	mockWorkRecordRepo := new(MockWorkRecordRepository)
	mockSettingsRepo := new(MockTenantSettingsRepository)

	mockUoW.SetRepositories(mockDebtRepo, mockDeductionRepo, nil, mockWorkRecordRepo, mockSettingsRepo, nil)
	mockFactory.On("CreateForTenant", tenantID).Return(mockUoW)

	return mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockWorkRecordRepo, mockSettingsRepo
}

func defaultSettings(tenantID int64) *models.TenantSettings {
	return &models.TenantSettings{
		TenantID:              tenantID,
		DailyThresholdMinutes: 480,
		Timezone:              "UTC",
	}
}

func TestLedgerService_ApplyApprovedWork_PaysDownOldestFirst(t *testing.T) {
	ctx := context.Background()
	workDay := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockWorkRecordRepo, mockSettingsRepo := newLedgerMocks(1)

	service := NewLedgerService(mockFactory)

	olderDebt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        workDay.AddDate(0, 0, -5),
		OwedMinutes: 100, RemainingMinutes: 100,
		Status: models.DebtStatusActive,
	}
	newerDebt := &models.Debt{
		ID: 11, TenantID: 1, UserID: 42,
		Date:        workDay.AddDate(0, 0, -2),
		OwedMinutes: 50, RemainingMinutes: 50,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	// No other approved work that day, so the whole margin over 480 is excess.
	mockWorkRecordRepo.On("ApprovedMinutesForDay", ctx, int64(42), workDay, mock.MatchedBy(func(id *int64) bool {
		return id != nil && *id == 7
	})).Return(0, nil)

	mockDebtRepo.On("GetActiveForUpdate", ctx, int64(42), workDay).Return([]*models.Debt{olderDebt, newerDebt}, nil)

	// 120 excess: 100 settles the older debt, 20 dents the newer one.
	mockDeductionRepo.On("Upsert", ctx, mock.MatchedBy(func(d *models.Deduction) bool {
		return d.DebtID == 10 && d.WorkRecordID == 7 && d.MinutesDeducted == 100
	})).Return(nil)
	mockDeductionRepo.On("Upsert", ctx, mock.MatchedBy(func(d *models.Deduction) bool {
		return d.DebtID == 11 && d.WorkRecordID == 7 && d.MinutesDeducted == 20
	})).Return(nil)

	mockDebtRepo.On("UpdateBalance", ctx, int64(10), 0, models.DebtStatusFullyPaid).Return(nil)
	mockDebtRepo.On("UpdateBalance", ctx, int64(11), 30, models.DebtStatusActive).Return(nil)

	result := service.ApplyApprovedWork(ctx, 1, 42, 7, workDay, 600)

	assert.NotNil(t, result)
	assert.Equal(t, 120, result.IncrementalExcess)
	assert.Equal(t, 120, result.MinutesApplied)
	assert.Equal(t, 2, result.DebtsTouched)
	assert.Equal(t, 1, result.DebtsSettled)
	assert.Equal(t, 0, result.LeftoverMinutes)

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockDebtRepo.AssertExpectations(t)
	mockDeductionRepo.AssertExpectations(t)
	mockWorkRecordRepo.AssertExpectations(t)
}

func TestLedgerService_ApplyApprovedWork_UnderThreshold(t *testing.T) {
	ctx := context.Background()
	workDay := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, _, mockWorkRecordRepo, mockSettingsRepo := newLedgerMocks(1)

	service := NewLedgerService(mockFactory)

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)
	mockWorkRecordRepo.On("ApprovedMinutesForDay", ctx, int64(42), workDay, mock.Anything).Return(0, nil)

	result := service.ApplyApprovedWork(ctx, 1, 42, 7, workDay, 400)

	assert.NotNil(t, result)
	assert.Equal(t, 0, result.IncrementalExcess)
	assert.Equal(t, 0, result.MinutesApplied)

	// The ledger was never touched.
	mockDebtRepo.AssertNotCalled(t, "GetActiveForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedgerService_ApplyApprovedWork_MarginalExcessOnly(t *testing.T) {
	ctx := context.Background()
	workDay := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockWorkRecordRepo, mockSettingsRepo := newLedgerMocks(1)

	service := NewLedgerService(mockFactory)

	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        workDay.AddDate(0, 0, -5),
		OwedMinutes: 200, RemainingMinutes: 80,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	// The day already held 600 approved minutes, so only the new record's
	// 100 minutes are marginal excess, and only 80 find a debt to pay.
	mockWorkRecordRepo.On("ApprovedMinutesForDay", ctx, int64(42), workDay, mock.Anything).Return(600, nil)
	mockDebtRepo.On("GetActiveForUpdate", ctx, int64(42), workDay).Return([]*models.Debt{debt}, nil)

	mockDeductionRepo.On("Upsert", ctx, mock.MatchedBy(func(d *models.Deduction) bool {
		return d.DebtID == 10 && d.WorkRecordID == 8 && d.MinutesDeducted == 80
	})).Return(nil)
	mockDebtRepo.On("UpdateBalance", ctx, int64(10), 0, models.DebtStatusFullyPaid).Return(nil)

	result := service.ApplyApprovedWork(ctx, 1, 42, 8, workDay, 100)

	assert.NotNil(t, result)
	assert.Equal(t, 100, result.IncrementalExcess)
	assert.Equal(t, 80, result.MinutesApplied)
	assert.Equal(t, 20, result.LeftoverMinutes)
	assert.Equal(t, 1, result.DebtsSettled)

	mockDebtRepo.AssertExpectations(t)
	mockDeductionRepo.AssertExpectations(t)
}

func TestLedgerService_ApplyApprovedWork_NoEligibleDebts(t *testing.T) {
	ctx := context.Background()
	workDay := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockWorkRecordRepo, mockSettingsRepo := newLedgerMocks(1)

	service := NewLedgerService(mockFactory)

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)
	mockWorkRecordRepo.On("ApprovedMinutesForDay", ctx, int64(42), workDay, mock.Anything).Return(0, nil)
	mockDebtRepo.On("GetActiveForUpdate", ctx, int64(42), workDay).Return([]*models.Debt{}, nil)

	result := service.ApplyApprovedWork(ctx, 1, 42, 7, workDay, 600)

	assert.NotNil(t, result)
	assert.Equal(t, 120, result.IncrementalExcess)
	assert.Equal(t, 0, result.MinutesApplied)
	assert.Equal(t, 120, result.LeftoverMinutes)

	mockDeductionRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestLedgerService_ApplyApprovedWork_SwallowsFailures(t *testing.T) {
	ctx := context.Background()
	workDay := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, _, _, _, _ := newLedgerMocks(1)

	service := NewLedgerService(mockFactory)

	mockUoW.On("Begin", ctx).Return(errors.New("connection refused"))
	mockUoW.On("Rollback").Return(nil)

	// The approval flow must not see the failure; it surfaces only as a nil result.
	result := service.ApplyApprovedWork(ctx, 1, 42, 7, workDay, 600)

	assert.Nil(t, result)
}
