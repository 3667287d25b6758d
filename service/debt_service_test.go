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

func newDebtServiceMocks(tenantID int64) (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockDebtRepository, *MockDeductionRepository, *MockAuditLogRepository, *MockTenantSettingsRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockDebtRepo := new(MockDebtRepository)
	mockDeductionRepo := new(MockDeductionRepository)
	mockAuditRepo := new(MockAuditLogRepository)
	mockSettingsRepo := new(MockTenantSettingsRepository)

	mockUoW.SetRepositories(mockDebtRepo, mockDeductionRepo, mockAuditRepo, nil, mockSettingsRepo, nil)
	mockFactory.On("CreateForTenant", tenantID).Return(mockUoW)

	return mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockAuditRepo, mockSettingsRepo
}

func TestDebtService_CreateDebt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, _, mockAuditRepo, mockSettingsRepo := newDebtServiceMocks(1)

	svc := NewDebtService(mockFactory).(*debtService)
	svc.now = func() time.Time { return now }

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	mockDebtRepo.On("Create", ctx, mock.MatchedBy(func(d *models.Debt) bool {
		return d.UserID == 42 &&
			d.OwedMinutes == 200 &&
			d.RemainingMinutes == 200 &&
			d.Status == models.DebtStatusActive &&
			d.CreatedBy == 9
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Debt).ID = 10
	})

	mockAuditRepo.On("Record", ctx, mock.MatchedBy(func(e *models.DebtAuditLog) bool {
		return e.DebtID == 10 &&
			e.Action == models.AuditActionCreate &&
			e.BeforeState == nil &&
			e.AfterState != nil &&
			e.AfterState.OwedMinutes == 200 &&
			e.PerformedBy == 9 &&
			e.IPAddress == "10.0.0.1"
	})).Return(nil)

	actor := Actor{UserID: 9, Meta: models.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"}}
	debt, err := svc.CreateDebt(ctx, CreateDebtParams{
		TenantID:    1,
		UserID:      42,
		Date:        time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC),
		OwedMinutes: 200,
		Reason:      "missed shift",
	}, actor)

	require.NoError(t, err)
	assert.Equal(t, int64(10), debt.ID)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), debt.Date)

	mockUoW.AssertExpectations(t)
	mockDebtRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

func TestDebtService_CreateDebt_ValidatesOwedRange(t *testing.T) {
	ctx := context.Background()

	mockFactory := new(MockUnitOfWorkFactory)
	svc := NewDebtService(mockFactory)

	actor := Actor{UserID: 9}

	_, err := svc.CreateDebt(ctx, CreateDebtParams{TenantID: 1, UserID: 42, Date: time.Now(), OwedMinutes: 0, Reason: "x"}, actor)
	assert.True(t, IsValidation(err))

	_, err = svc.CreateDebt(ctx, CreateDebtParams{TenantID: 1, UserID: 42, Date: time.Now(), OwedMinutes: 961, Reason: "x"}, actor)
	assert.True(t, IsValidation(err))

	_, err = svc.CreateDebt(ctx, CreateDebtParams{TenantID: 1, UserID: 42, Date: time.Now(), OwedMinutes: 100, Reason: "  "}, actor)
	assert.True(t, IsValidation(err))

	mockFactory.AssertNotCalled(t, "CreateForTenant", mock.Anything)
}

func TestDebtService_CreateDebt_RejectsFutureDate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, _, _, _, mockSettingsRepo := newDebtServiceMocks(1)

	svc := NewDebtService(mockFactory).(*debtService)
	svc.now = func() time.Time { return now }

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)

	_, err := svc.CreateDebt(ctx, CreateDebtParams{
		TenantID:    1,
		UserID:      42,
		Date:        now.AddDate(0, 0, 1),
		OwedMinutes: 100,
		Reason:      "x",
	}, Actor{UserID: 9})

	assert.True(t, IsValidation(err))
}

func TestDebtService_UpdateDebt_RecomputesBalanceOnOwedChange(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockAuditRepo, _ := newDebtServiceMocks(1)

	svc := NewDebtService(mockFactory).(*debtService)
	svc.now = func() time.Time { return now }

	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		OwedMinutes: 200, RemainingMinutes: 150,
		Status: models.DebtStatusActive,
		Reason: "missed shift",
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil)

	// 50 minutes already deducted: shrinking the owed amount to 120 leaves 70.
	mockDeductionRepo.On("SumActiveByDebt", ctx, int64(10)).Return(50, nil)

	mockDebtRepo.On("Update", ctx, mock.MatchedBy(func(d *models.Debt) bool {
		return d.ID == 10 &&
			d.OwedMinutes == 120 &&
			d.RemainingMinutes == 70 &&
			d.Status == models.DebtStatusActive
	})).Return(nil)

	mockAuditRepo.On("Record", ctx, mock.MatchedBy(func(e *models.DebtAuditLog) bool {
		return e.Action == models.AuditActionUpdate &&
			e.BeforeState.OwedMinutes == 200 &&
			e.AfterState.OwedMinutes == 120
	})).Return(nil)

	newOwed := 120
	updated, err := svc.UpdateDebt(ctx, UpdateDebtParams{TenantID: 1, DebtID: 10, OwedMinutes: &newOwed}, Actor{UserID: 9})

	require.NoError(t, err)
	assert.Equal(t, 120, updated.OwedMinutes)
	assert.Equal(t, 70, updated.RemainingMinutes)

	mockDebtRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

func TestDebtService_UpdateDebt_OwedBelowDeductedSettles(t *testing.T) {
	ctx := context.Background()

	mockUoW, mockFactory, mockDebtRepo, mockDeductionRepo, mockAuditRepo, _ := newDebtServiceMocks(1)

	svc := NewDebtService(mockFactory)

	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		OwedMinutes: 200, RemainingMinutes: 120,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil)
	mockDeductionRepo.On("SumActiveByDebt", ctx, int64(10)).Return(80, nil)

	// New owed amount is below what was already deducted; the balance clamps
	// to zero and the debt settles rather than going negative.
	mockDebtRepo.On("Update", ctx, mock.MatchedBy(func(d *models.Debt) bool {
		return d.RemainingMinutes == 0 && d.Status == models.DebtStatusFullyPaid
	})).Return(nil)
	mockAuditRepo.On("Record", ctx, mock.Anything).Return(nil)

	newOwed := 60
	updated, err := svc.UpdateDebt(ctx, UpdateDebtParams{TenantID: 1, DebtID: 10, OwedMinutes: &newOwed}, Actor{UserID: 9})

	require.NoError(t, err)
	assert.Equal(t, 0, updated.RemainingMinutes)
	assert.Equal(t, models.DebtStatusFullyPaid, updated.Status)
}

// A new date that lands on the debt's existing business day is not a change,
// even when the raw instants differ.
func TestDebtService_UpdateDebt_SameDayDateIsNoChange(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mockUoW, mockFactory, mockDebtRepo, _, mockAuditRepo, mockSettingsRepo := newDebtServiceMocks(1)

	svc := NewDebtService(mockFactory).(*debtService)
	svc.now = func() time.Time { return now }

	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		OwedMinutes: 200, RemainingMinutes: 150,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockSettingsRepo.On("GetOrCreate", ctx).Return(defaultSettings(1), nil)
	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil)

	newDate := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	updated, err := svc.UpdateDebt(ctx, UpdateDebtParams{TenantID: 1, DebtID: 10, Date: &newDate}, Actor{UserID: 9})

	require.NoError(t, err)
	assert.Equal(t, debt.Date, updated.Date)

	mockDebtRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	mockAuditRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestDebtService_UpdateDebt_CancelledRejected(t *testing.T) {
	ctx := context.Background()

	mockUoW, mockFactory, mockDebtRepo, _, _, _ := newDebtServiceMocks(1)

	svc := NewDebtService(mockFactory)

	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		Status: models.DebtStatusCancelled,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil)

	newOwed := 100
	_, err := svc.UpdateDebt(ctx, UpdateDebtParams{TenantID: 1, DebtID: 10, OwedMinutes: &newOwed}, Actor{UserID: 9})

	assert.True(t, IsValidation(err))
}

func TestDebtService_CancelDebt(t *testing.T) {
	ctx := context.Background()

	mockUoW, mockFactory, mockDebtRepo, _, mockAuditRepo, _ := newDebtServiceMocks(1)

	svc := NewDebtService(mockFactory)

	debt := &models.Debt{
		ID: 10, TenantID: 1, UserID: 42,
		OwedMinutes: 200, RemainingMinutes: 150,
		Status: models.DebtStatusActive,
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockDebtRepo.On("GetForUpdateByIDs", ctx, []int64{10}).Return([]*models.Debt{debt}, nil)
	mockDebtRepo.On("Cancel", ctx, int64(10), int64(9)).Return(nil)

	mockAuditRepo.On("Record", ctx, mock.MatchedBy(func(e *models.DebtAuditLog) bool {
		return e.Action == models.AuditActionCancel &&
			e.BeforeState.Status == models.DebtStatusActive &&
			e.AfterState.Status == models.DebtStatusCancelled &&
			e.Reason != nil && *e.Reason == "entered by mistake"
	})).Return(nil)

	err := svc.CancelDebt(ctx, 1, 10, Actor{UserID: 9}, "entered by mistake")

	require.NoError(t, err)
	mockDebtRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

func TestDebtService_GetDebt_NotFound(t *testing.T) {
	ctx := context.Background()

	mockUoW, mockFactory, mockDebtRepo, _, _, _ := newDebtServiceMocks(1)

	svc := NewDebtService(mockFactory)

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockDebtRepo.On("GetByID", ctx, int64(99)).Return(nil, nil)

	_, err := svc.GetDebt(ctx, 1, 99)

	assert.ErrorIs(t, err, ErrNotFound)
}
