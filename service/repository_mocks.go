package service

import (
	"context"
	"time"

	"hourledger/events"
	"hourledger/models"

	"github.com/stretchr/testify/mock"
)

// MockDebtRepository is a mock implementation of DebtRepository
type MockDebtRepository struct {
	mock.Mock
}

func (m *MockDebtRepository) Create(ctx context.Context, debt *models.Debt) error {
	args := m.Called(ctx, debt)
	return args.Error(0)
}

func (m *MockDebtRepository) GetByID(ctx context.Context, id int64) (*models.Debt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Debt), args.Error(1)
}

func (m *MockDebtRepository) List(ctx context.Context, filter DebtFilter) ([]*models.Debt, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Debt), args.Error(1)
}

func (m *MockDebtRepository) GetActiveForUpdate(ctx context.Context, userID int64, onOrBefore time.Time) ([]*models.Debt, error) {
	args := m.Called(ctx, userID, onOrBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Debt), args.Error(1)
}

func (m *MockDebtRepository) GetForUpdateByIDs(ctx context.Context, ids []int64) ([]*models.Debt, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Debt), args.Error(1)
}

func (m *MockDebtRepository) GetAllActive(ctx context.Context) ([]*models.Debt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Debt), args.Error(1)
}

func (m *MockDebtRepository) UpdateBalance(ctx context.Context, debtID int64, remaining int, status models.DebtStatus) error {
	args := m.Called(ctx, debtID, remaining, status)
	return args.Error(0)
}

func (m *MockDebtRepository) Update(ctx context.Context, debt *models.Debt) error {
	args := m.Called(ctx, debt)
	return args.Error(0)
}

func (m *MockDebtRepository) Cancel(ctx context.Context, debtID int64, cancelledBy int64) error {
	args := m.Called(ctx, debtID, cancelledBy)
	return args.Error(0)
}

func (m *MockDebtRepository) SoftDelete(ctx context.Context, debtID int64, deletedBy int64) error {
	args := m.Called(ctx, debtID, deletedBy)
	return args.Error(0)
}

func (m *MockDebtRepository) EarliestDebtDates(ctx context.Context) (map[int64]time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]time.Time), args.Error(1)
}

func (m *MockDebtRepository) GetUserBalance(ctx context.Context, userID int64) (*models.UserBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserBalance), args.Error(1)
}

func (m *MockDebtRepository) GetTenantDebtStats(ctx context.Context) (*models.TenantDebtStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TenantDebtStats), args.Error(1)
}

// MockDeductionRepository is a mock implementation of DeductionRepository
type MockDeductionRepository struct {
	mock.Mock
}

func (m *MockDeductionRepository) Upsert(ctx context.Context, deduction *models.Deduction) error {
	args := m.Called(ctx, deduction)
	return args.Error(0)
}

func (m *MockDeductionRepository) GetActiveByWorkRecord(ctx context.Context, workRecordID int64) ([]*models.Deduction, error) {
	args := m.Called(ctx, workRecordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deduction), args.Error(1)
}

func (m *MockDeductionRepository) SoftDeleteByWorkRecord(ctx context.Context, workRecordID int64, reason models.RollbackReason) (int, error) {
	args := m.Called(ctx, workRecordID, reason)
	return args.Int(0), args.Error(1)
}

func (m *MockDeductionRepository) GetByDebt(ctx context.Context, debtID int64, includeDeleted bool) ([]*models.Deduction, error) {
	args := m.Called(ctx, debtID, includeDeleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deduction), args.Error(1)
}

func (m *MockDeductionRepository) SumActiveByDebt(ctx context.Context, debtID int64) (int, error) {
	args := m.Called(ctx, debtID)
	return args.Int(0), args.Error(1)
}

func (m *MockDeductionRepository) SumActiveByDebtIDs(ctx context.Context, debtIDs []int64) (map[int64]int, error) {
	args := m.Called(ctx, debtIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int), args.Error(1)
}

func (m *MockDeductionRepository) SumDeductedByUserDay(ctx context.Context, from, to time.Time) ([]*models.UserDayTotal, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserDayTotal), args.Error(1)
}

func (m *MockDeductionRepository) SumDeductedForDay(ctx context.Context, userID int64, day time.Time) (int, error) {
	args := m.Called(ctx, userID, day)
	return args.Int(0), args.Error(1)
}

func (m *MockDeductionRepository) SumDeductedSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditLogRepository is a mock implementation of AuditLogRepository
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Record(ctx context.Context, entry *models.DebtAuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) GetByDebt(ctx context.Context, debtID int64, limit int) ([]*models.DebtAuditLog, error) {
	args := m.Called(ctx, debtID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DebtAuditLog), args.Error(1)
}

// MockWorkRecordRepository is a mock implementation of WorkRecordRepository
type MockWorkRecordRepository struct {
	mock.Mock
}

func (m *MockWorkRecordRepository) GetByID(ctx context.Context, id int64) (*models.WorkRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkRecord), args.Error(1)
}

func (m *MockWorkRecordRepository) ApprovedMinutesForDay(ctx context.Context, userID int64, day time.Time, excludeRecordID *int64) (int, error) {
	args := m.Called(ctx, userID, day, excludeRecordID)
	return args.Int(0), args.Error(1)
}

func (m *MockWorkRecordRepository) ApprovedTotalsByUserDay(ctx context.Context, from, to time.Time) ([]*models.UserDayTotal, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserDayTotal), args.Error(1)
}

func (m *MockWorkRecordRepository) LastApprovedRecordOfDay(ctx context.Context, userID int64, day time.Time) (*models.WorkRecord, error) {
	args := m.Called(ctx, userID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkRecord), args.Error(1)
}

// MockTenantSettingsRepository is a mock implementation of TenantSettingsRepository
type MockTenantSettingsRepository struct {
	mock.Mock
}

func (m *MockTenantSettingsRepository) GetOrCreate(ctx context.Context) (*models.TenantSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TenantSettings), args.Error(1)
}

func (m *MockTenantSettingsRepository) Update(ctx context.Context, settings *models.TenantSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockReconciliationRunRepository is a mock implementation of ReconciliationRunRepository
type MockReconciliationRunRepository struct {
	mock.Mock
}

func (m *MockReconciliationRunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockReconciliationRunRepository) GetLatest(ctx context.Context) (*models.ReconciliationRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReconciliationRun), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// recordingPublisher collects published events without asserting on them.
// Handy when a test cares about the ledger outcome, not the notifications.
type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) {
	p.published = append(p.published, event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return the instances wired via SetRepositories rather than going through
// testify, so tests only assert on the calls they care about.
type MockUnitOfWork struct {
	mock.Mock

	debtRepo       DebtRepository
	deductionRepo  DeductionRepository
	auditRepo      AuditLogRepository
	workRecordRepo WorkRecordRepository
	settingsRepo   TenantSettingsRepository
	reconRepo      ReconciliationRunRepository
	eventBus       EventPublisher
}

// SetRepositories wires the repository mocks this unit of work hands out.
// Nil entries are allowed for repositories the test never touches.
func (m *MockUnitOfWork) SetRepositories(
	debtRepo DebtRepository,
	deductionRepo DeductionRepository,
	auditRepo AuditLogRepository,
	workRecordRepo WorkRecordRepository,
	settingsRepo TenantSettingsRepository,
	reconRepo ReconciliationRunRepository,
) {
	m.debtRepo = debtRepo
	m.deductionRepo = deductionRepo
	m.auditRepo = auditRepo
	m.workRecordRepo = workRecordRepo
	m.settingsRepo = settingsRepo
	m.reconRepo = reconRepo
}

// SetEventBus wires the event publisher; defaults to a silent recorder.
func (m *MockUnitOfWork) SetEventBus(bus EventPublisher) {
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) DebtRepository() DebtRepository {
	return m.debtRepo
}

func (m *MockUnitOfWork) DeductionRepository() DeductionRepository {
	return m.deductionRepo
}

func (m *MockUnitOfWork) AuditLogRepository() AuditLogRepository {
	return m.auditRepo
}

func (m *MockUnitOfWork) WorkRecordRepository() WorkRecordRepository {
	return m.workRecordRepo
}

func (m *MockUnitOfWork) TenantSettingsRepository() TenantSettingsRepository {
	return m.settingsRepo
}

func (m *MockUnitOfWork) ReconciliationRunRepository() ReconciliationRunRepository {
	return m.reconRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.eventBus == nil {
		m.eventBus = &recordingPublisher{}
	}
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) CreateForTenant(tenantID int64) UnitOfWork {
	args := m.Called(tenantID)
	return args.Get(0).(UnitOfWork)
}
