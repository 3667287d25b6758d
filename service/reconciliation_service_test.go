package service

import (
	"context"
	"testing"
	"time"

	"hourledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newReconciliationMocks(tenantID int64) (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockDebtRepository, *MockDeductionRepository, *MockAuditLogRepository, *MockWorkRecordRepository, *MockTenantSettingsRepository, *MockReconciliationRunRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockDebtRepo := new(MockDebtRepository)
	mockDeductionRepo := new(MockDeductionRepository)
	mockAuditRepo := new(MockAuditLogRepository)
	mockWorkRecordRepo := new(MockWorkRecordRepository)
	mockSettingsRepo := new(MockTenantSettingsRepository)
	mockRunRepo := new(MockReconciliationRunRepository)

	mockUoW.SetRepositories(mockDebtRepo, mockDeductionRepo, mockAuditRepo, mockWorkRecordRepo, mockSettingsRepo, mockRunRepo)
	mockFactory.On("CreateForTenant", tenantID).Return(mockUoW)

	return mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockAuditRepo, mockWorkRecordRepo, mockSettingsRepo, mockRunRepo
}

func TestReconciliationService_RunMonthlyReview_FillsGap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	workDay := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, _, mockWorkRecordRepo, mockSettingsRepo, mockRunRepo := newReconciliationMocks(1)

	svc := NewReconciliationService(mockFactory).(*reconciliationService)
	svc.now = func() time.Time { return now }

	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		OwedMinutes: 200, RemainingMinutes: 200,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	// Both audit passes see a consistent ledger; the same debt pointer
	// reflects the gap fill by the second pass.
	mockDebtRepo.On("GetAllActive", ctx).Return([]*models.Debt{debt}, nil)
	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil)
	mockDeductionRepo.On("SumActiveByDebtIDs", ctx, []int64{10}).Return(map[int64]int{10: 0}, nil).Once()
	mockDeductionRepo.On("SumActiveByDebtIDs", ctx, []int64{10}).Return(map[int64]int{10: 120}, nil).Once()

	mockDebtRepo.On("EarliestDebtDates", ctx).Return(map[int64]time.Time{42: debt.Date}, nil)

	// One day with 600 approved minutes but nothing deducted: a 120 minute gap.
	mockWorkRecordRepo.On("ApprovedTotalsByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{
		{UserID: 42, Day: workDay, Minutes: 600},
	}, nil)
	mockDeductionRepo.On("SumDeductedByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{}, nil)
	mockDeductionRepo.On("SumDeductedForDay", ctx, int64(42), workDay).Return(0, nil)

	anchor := &models.WorkRecord{ID: 7, TenantID: 1, UserID: 42, WorkDate: workDay, Minutes: 600}
	mockWorkRecordRepo.On("LastApprovedRecordOfDay", ctx, int64(42), workDay).Return(anchor, nil)

	mockDebtRepo.On("GetActiveForUpdate", ctx, int64(42), workDay).Return([]*models.Debt{debt}, nil)
	mockDeductionRepo.On("Upsert", ctx, mock.MatchedBy(func(d *models.Deduction) bool {
		return d.DebtID == 10 && d.WorkRecordID == 7 && d.MinutesDeducted == 120
	})).Return(nil)
	mockDebtRepo.On("UpdateBalance", ctx, int64(10), 80, models.DebtStatusActive).Return(nil)

	mockRunRepo.On("Create", ctx, mock.MatchedBy(func(r *models.ReconciliationRun) bool {
		return r.TenantID == 1 && r.GapsFound == 1 && r.MinutesApplied == 120 && r.UsersFlagged == 0
	})).Return(nil)

	report, err := svc.RunMonthlyReview(ctx, 1, 9)

	require.NoError(t, err)
	assert.Equal(t, 0, report.BalanceFixesApplied)
	assert.Equal(t, 1, report.GapsFound)
	assert.Equal(t, 120, report.MinutesApplied)
	assert.Equal(t, 0, report.UsersFlagged)

	require.Len(t, report.Users, 1)
	assert.Equal(t, int64(42), report.Users[0].UserID)
	assert.Equal(t, 120, report.Users[0].ExpectedExcess)
	assert.Equal(t, 120, report.Users[0].DeductedMinutes)
	assert.Equal(t, 0, report.Users[0].Gap)
	assert.False(t, report.Users[0].Flagged)

	mockUoW.AssertExpectations(t)
	mockDebtRepo.AssertExpectations(t)
	mockDeductionRepo.AssertExpectations(t)
	mockWorkRecordRepo.AssertExpectations(t)
	mockRunRepo.AssertExpectations(t)
}

// The period-wide deducted survey is read without locks, so an approval
// committing mid-review can pay a day the survey still shows as open. The
// locked re-read must see those minutes and apply nothing on top of them.
func TestReconciliationService_RunMonthlyReview_SkipsConcurrentlyPaidDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	workDay := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, _, mockWorkRecordRepo, mockSettingsRepo, mockRunRepo := newReconciliationMocks(1)

	svc := NewReconciliationService(mockFactory).(*reconciliationService)
	svc.now = func() time.Time { return now }

	// A concurrent approval already deducted 120 for the day; the debt's
	// committed balance reflects it.
	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		OwedMinutes: 200, RemainingMinutes: 80,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	mockDebtRepo.On("GetAllActive", ctx).Return([]*models.Debt{debt}, nil)
	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil)
	mockDeductionRepo.On("SumActiveByDebtIDs", ctx, []int64{10}).Return(map[int64]int{10: 120}, nil)

	mockDebtRepo.On("EarliestDebtDates", ctx).Return(map[int64]time.Time{42: debt.Date}, nil)
	mockWorkRecordRepo.On("ApprovedTotalsByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{
		{UserID: 42, Day: workDay, Minutes: 600},
	}, nil)

	// The unlocked survey predates the approval and shows nothing deducted.
	mockDeductionRepo.On("SumDeductedByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{}, nil)

	// After locking the day's debts the re-read sees the 120 already applied.
	mockDebtRepo.On("GetActiveForUpdate", ctx, int64(42), workDay).Return([]*models.Debt{debt}, nil)
	mockDeductionRepo.On("SumDeductedForDay", ctx, int64(42), workDay).Return(120, nil)

	mockRunRepo.On("Create", ctx, mock.MatchedBy(func(r *models.ReconciliationRun) bool {
		return r.GapsFound == 0 && r.MinutesApplied == 0 && r.UsersFlagged == 0
	})).Return(nil)

	report, err := svc.RunMonthlyReview(ctx, 1, 9)

	require.NoError(t, err)
	assert.Equal(t, 0, report.BalanceFixesApplied)
	assert.Equal(t, 0, report.GapsFound)
	assert.Equal(t, 0, report.MinutesApplied)

	require.Len(t, report.Users, 1)
	assert.Equal(t, 120, report.Users[0].ExpectedExcess)
	assert.Equal(t, 120, report.Users[0].DeductedMinutes)
	assert.Equal(t, 0, report.Users[0].Gap)
	assert.False(t, report.Users[0].Flagged)

	mockDeductionRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	mockWorkRecordRepo.AssertNotCalled(t, "LastApprovedRecordOfDay", mock.Anything, mock.Anything, mock.Anything)
	mockDebtRepo.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciliationService_RunMonthlyReview_CorrectsDrift(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockAuditRepo, mockWorkRecordRepo, mockSettingsRepo, mockRunRepo := newReconciliationMocks(1)

	svc := NewReconciliationService(mockFactory).(*reconciliationService)
	svc.now = func() time.Time { return now }

	// Stored balance says 150 but only 120 of the 200 owed were ever
	// deducted: true remaining is 80, a drift of 70.
	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		OwedMinutes: 200, RemainingMinutes: 150,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	mockDebtRepo.On("GetAllActive", ctx).Return([]*models.Debt{debt}, nil)
	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil)
	mockDeductionRepo.On("SumActiveByDebtIDs", ctx, []int64{10}).Return(map[int64]int{10: 120}, nil)

	mockDebtRepo.On("UpdateBalance", ctx, int64(10), 80, models.DebtStatusActive).Return(nil).Once()

	mockAuditRepo.On("Record", ctx, mock.MatchedBy(func(e *models.DebtAuditLog) bool {
		return e.DebtID == 10 &&
			e.Action == models.AuditActionUpdate &&
			e.BeforeState.RemainingMinutes == 150 &&
			e.AfterState.RemainingMinutes == 80 &&
			e.PerformedBy == 9
	})).Return(nil).Once()

	mockDebtRepo.On("EarliestDebtDates", ctx).Return(map[int64]time.Time{42: debt.Date}, nil)
	mockWorkRecordRepo.On("ApprovedTotalsByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{}, nil)
	mockDeductionRepo.On("SumDeductedByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{}, nil)

	mockRunRepo.On("Create", ctx, mock.MatchedBy(func(r *models.ReconciliationRun) bool {
		return r.BalanceFixesApplied == 1 && r.GapsFound == 0
	})).Return(nil)

	report, err := svc.RunMonthlyReview(ctx, 1, 9)

	require.NoError(t, err)
	assert.Equal(t, 1, report.BalanceFixesApplied)
	require.Len(t, report.BalanceFixes, 1)
	assert.Equal(t, int64(10), report.BalanceFixes[0].DebtID)
	assert.Equal(t, 150, report.BalanceFixes[0].OldBalance)
	assert.Equal(t, 80, report.BalanceFixes[0].NewBalance)
	assert.Empty(t, report.Users)

	mockDebtRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

func TestReconciliationService_RunMonthlyReview_FlagsUnresolvableGap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	workDay := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, _, mockWorkRecordRepo, mockSettingsRepo, mockRunRepo := newReconciliationMocks(1)

	svc := NewReconciliationService(mockFactory).(*reconciliationService)
	svc.now = func() time.Time { return now }

	// The user's only debt is smaller than the gap: part of the excess has
	// nowhere to go and the user stays flagged.
	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		OwedMinutes: 50, RemainingMinutes: 50,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	mockDebtRepo.On("GetAllActive", ctx).Return([]*models.Debt{debt}, nil).Once()
	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil).Once()
	mockDeductionRepo.On("SumActiveByDebtIDs", ctx, []int64{10}).Return(map[int64]int{10: 0}, nil).Once()

	mockDebtRepo.On("EarliestDebtDates", ctx).Return(map[int64]time.Time{42: debt.Date}, nil)
	mockWorkRecordRepo.On("ApprovedTotalsByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{
		{UserID: 42, Day: workDay, Minutes: 600},
	}, nil)
	mockDeductionRepo.On("SumDeductedByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{}, nil)
	mockDeductionRepo.On("SumDeductedForDay", ctx, int64(42), workDay).Return(0, nil)

	anchor := &models.WorkRecord{ID: 7, TenantID: 1, UserID: 42, WorkDate: workDay, Minutes: 600}
	mockWorkRecordRepo.On("LastApprovedRecordOfDay", ctx, int64(42), workDay).Return(anchor, nil)

	mockDebtRepo.On("GetActiveForUpdate", ctx, int64(42), workDay).Return([]*models.Debt{debt}, nil)
	mockDeductionRepo.On("Upsert", ctx, mock.MatchedBy(func(d *models.Deduction) bool {
		return d.DebtID == 10 && d.MinutesDeducted == 50
	})).Return(nil)
	mockDebtRepo.On("UpdateBalance", ctx, int64(10), 0, models.DebtStatusFullyPaid).Return(nil)

	// The debt settled, so the second audit pass sees no active debts.
	mockDebtRepo.On("GetAllActive", ctx).Return([]*models.Debt{}, nil).Once()

	mockRunRepo.On("Create", ctx, mock.Anything).Return(nil)

	report, err := svc.RunMonthlyReview(ctx, 1, 9)

	require.NoError(t, err)
	assert.Equal(t, 1, report.GapsFound)
	assert.Equal(t, 50, report.MinutesApplied)
	assert.Equal(t, 1, report.UsersFlagged)

	require.Len(t, report.Users, 1)
	assert.Equal(t, 120, report.Users[0].ExpectedExcess)
	assert.Equal(t, 50, report.Users[0].DeductedMinutes)
	assert.Equal(t, 70, report.Users[0].Gap)
	assert.True(t, report.Users[0].Flagged)
}

func TestReconciliationService_RunMonthlyReview_SkipsWorkBeforeFirstDebt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, _, mockWorkRecordRepo, mockSettingsRepo, mockRunRepo := newReconciliationMocks(1)

	svc := NewReconciliationService(mockFactory).(*reconciliationService)
	svc.now = func() time.Time { return now }

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	mockDebtRepo.On("GetAllActive", ctx).Return([]*models.Debt{}, nil)
	mockDebtRepo.On("EarliestDebtDates", ctx).Return(map[int64]time.Time{
		42: time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
	}, nil)

	// Overtime worked before the user's first debt existed is not a gap.
	mockWorkRecordRepo.On("ApprovedTotalsByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{
		{UserID: 42, Day: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), Minutes: 600},
		{UserID: 77, Day: time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), Minutes: 700},
	}, nil)
	mockDeductionRepo.On("SumDeductedByUserDay", ctx, periodStart, periodEnd).Return([]*models.UserDayTotal{}, nil)

	mockRunRepo.On("Create", ctx, mock.Anything).Return(nil)

	report, err := svc.RunMonthlyReview(ctx, 1, 9)

	require.NoError(t, err)
	assert.Equal(t, 0, report.GapsFound)
	assert.Equal(t, 0, report.MinutesApplied)
	assert.Empty(t, report.Users)

	mockWorkRecordRepo.AssertNotCalled(t, "LastApprovedRecordOfDay", mock.Anything, mock.Anything, mock.Anything)
}
