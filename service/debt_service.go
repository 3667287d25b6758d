package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hourledger/events"
	"hourledger/models"
)

type debtService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewDebtService creates a new debt service
func NewDebtService(uowFactory UnitOfWorkFactory) DebtService {
	return &debtService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

func validateOwedMinutes(owed int) error {
	if owed < models.MinOwedMinutes || owed > models.MaxOwedMinutes {
		return &ValidationError{
			Field:   "owed_minutes",
			Message: fmt.Sprintf("must be between %d and %d", models.MinOwedMinutes, models.MaxOwedMinutes),
		}
	}
	return nil
}

// CreateDebt validates and records a new debt, with an audit entry
func (s *debtService) CreateDebt(ctx context.Context, params CreateDebtParams, actor Actor) (*models.Debt, error) {
	if err := validateOwedMinutes(params.OwedMinutes); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "is required"}
	}

	uow := s.uowFactory.CreateForTenant(params.TenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	settings, err := uow.TenantSettingsRepository().GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	loc := LoadBusinessLocation(settings.Timezone)

	day := BusinessDay(params.Date, loc)
	if day.After(BusinessDay(s.now(), loc)) {
		return nil, &ValidationError{Field: "date", Message: "cannot be in the future"}
	}

	debt := &models.Debt{
		TenantID:         params.TenantID,
		UserID:           params.UserID,
		Date:             day,
		OwedMinutes:      params.OwedMinutes,
		RemainingMinutes: params.OwedMinutes,
		Status:           models.DebtStatusActive,
		Reason:           params.Reason,
		CreatedBy:        actor.UserID,
	}
	if err := uow.DebtRepository().Create(ctx, debt); err != nil {
		return nil, err
	}

	if err := recordDebtChange(ctx, uow, debt.ID, models.AuditActionCreate, nil, models.SnapshotOf(debt), nil, &params.Reason, actor); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.DebtCreatedEvent{
		DebtID:      debt.ID,
		TenantID:    debt.TenantID,
		UserID:      debt.UserID,
		OwedMinutes: debt.OwedMinutes,
		CreatedBy:   actor.UserID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return debt, nil
}

// UpdateDebt applies administrative edits. Changing the owed amount recomputes
// the remaining balance from the debt's active deductions so paid minutes are
// never forgotten or double counted.
func (s *debtService) UpdateDebt(ctx context.Context, params UpdateDebtParams, actor Actor) (*models.Debt, error) {
	if params.OwedMinutes != nil {
		if err := validateOwedMinutes(*params.OwedMinutes); err != nil {
			return nil, err
		}
	}
	if params.Reason != nil && strings.TrimSpace(*params.Reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "cannot be blank"}
	}

	uow := s.uowFactory.CreateForTenant(params.TenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	debt, err := s.getDebtLocked(ctx, uow, params.DebtID)
	if err != nil {
		return nil, err
	}
	if debt.Status == models.DebtStatusCancelled {
		return nil, &ValidationError{Field: "status", Message: "cancelled debts cannot be edited"}
	}

	before := models.SnapshotOf(debt)
	var changed []string

	if params.Date != nil {
		settings, err := uow.TenantSettingsRepository().GetOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		loc := LoadBusinessLocation(settings.Timezone)
		day := BusinessDay(*params.Date, loc)
		if day.After(BusinessDay(s.now(), loc)) {
			return nil, &ValidationError{Field: "date", Message: "cannot be in the future"}
		}
		if !SameBusinessDay(day, debt.Date, loc) {
			debt.Date = day
			changed = append(changed, "date")
		}
	}

	if params.OwedMinutes != nil && *params.OwedMinutes != debt.OwedMinutes {
		deducted, err := uow.DeductionRepository().SumActiveByDebt(ctx, debt.ID)
		if err != nil {
			return nil, err
		}
		debt.OwedMinutes = *params.OwedMinutes
		remaining := debt.OwedMinutes - deducted
		if remaining < 0 {
			remaining = 0
		}
		debt.RemainingMinutes = remaining
		if remaining == 0 {
			debt.Status = models.DebtStatusFullyPaid
		} else {
			debt.Status = models.DebtStatusActive
		}
		changed = append(changed, "owed_minutes", "remaining_minutes", "status")
	}

	if params.Reason != nil && *params.Reason != debt.Reason {
		debt.Reason = *params.Reason
		changed = append(changed, "reason")
	}

	if len(changed) == 0 {
		// Nothing to persist or audit.
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return debt, nil
	}

	debt.UpdatedBy = &actor.UserID
	if err := uow.DebtRepository().Update(ctx, debt); err != nil {
		return nil, err
	}

	if err := recordDebtChange(ctx, uow, debt.ID, models.AuditActionUpdate, before, models.SnapshotOf(debt), changed, nil, actor); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.DebtUpdatedEvent{
		DebtID:        debt.ID,
		TenantID:      debt.TenantID,
		UserID:        debt.UserID,
		ChangedFields: changed,
		UpdatedBy:     actor.UserID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return debt, nil
}

// CancelDebt marks a debt cancelled. The deduction history stays intact so
// past pay-downs remain explainable.
func (s *debtService) CancelDebt(ctx context.Context, tenantID, debtID int64, actor Actor, reason string) error {
	return s.retire(ctx, tenantID, debtID, actor, reason, models.AuditActionCancel)
}

// DeleteDebt soft-deletes a debt
func (s *debtService) DeleteDebt(ctx context.Context, tenantID, debtID int64, actor Actor, reason string) error {
	return s.retire(ctx, tenantID, debtID, actor, reason, models.AuditActionDelete)
}

func (s *debtService) retire(ctx context.Context, tenantID, debtID int64, actor Actor, reason string, action models.AuditAction) error {
	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	debt, err := s.getDebtLocked(ctx, uow, debtID)
	if err != nil {
		return err
	}
	if action == models.AuditActionCancel && debt.Status == models.DebtStatusCancelled {
		return &ValidationError{Field: "status", Message: "debt is already cancelled"}
	}

	before := models.SnapshotOf(debt)

	if action == models.AuditActionCancel {
		err = uow.DebtRepository().Cancel(ctx, debtID, actor.UserID)
	} else {
		err = uow.DebtRepository().SoftDelete(ctx, debtID, actor.UserID)
	}
	if err != nil {
		return err
	}
	debt.Status = models.DebtStatusCancelled

	var reasonPtr *string
	if strings.TrimSpace(reason) != "" {
		reasonPtr = &reason
	}
	if err := recordDebtChange(ctx, uow, debtID, action, before, models.SnapshotOf(debt), []string{"status"}, reasonPtr, actor); err != nil {
		return err
	}

	uow.EventBus().Publish(events.DebtCancelledEvent{
		DebtID:      debtID,
		TenantID:    tenantID,
		UserID:      debt.UserID,
		CancelledBy: actor.UserID,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetDebt retrieves one debt
func (s *debtService) GetDebt(ctx context.Context, tenantID, debtID int64) (*models.Debt, error) {
	var debt *models.Debt
	err := s.readOnly(ctx, tenantID, func(uow UnitOfWork) error {
		var err error
		debt, err = uow.DebtRepository().GetByID(ctx, debtID)
		if err != nil {
			return err
		}
		if debt == nil {
			return &NotFoundError{Entity: "debt", ID: debtID}
		}
		return nil
	})
	return debt, err
}

// ListDebts returns the tenant's debts matching the filter
func (s *debtService) ListDebts(ctx context.Context, tenantID int64, filter DebtFilter) ([]*models.Debt, error) {
	var debts []*models.Debt
	err := s.readOnly(ctx, tenantID, func(uow UnitOfWork) error {
		var err error
		debts, err = uow.DebtRepository().List(ctx, filter)
		return err
	})
	return debts, err
}

// GetUserBalance returns the user's aggregate debt position
func (s *debtService) GetUserBalance(ctx context.Context, tenantID, userID int64) (*models.UserBalance, error) {
	var balance *models.UserBalance
	err := s.readOnly(ctx, tenantID, func(uow UnitOfWork) error {
		var err error
		balance, err = uow.DebtRepository().GetUserBalance(ctx, userID)
		return err
	})
	return balance, err
}

// GetDeductions returns a debt's deduction history
func (s *debtService) GetDeductions(ctx context.Context, tenantID, debtID int64, includeDeleted bool) ([]*models.Deduction, error) {
	var deductions []*models.Deduction
	err := s.readOnly(ctx, tenantID, func(uow UnitOfWork) error {
		debt, err := uow.DebtRepository().GetByID(ctx, debtID)
		if err != nil {
			return err
		}
		if debt == nil {
			return &NotFoundError{Entity: "debt", ID: debtID}
		}
		deductions, err = uow.DeductionRepository().GetByDebt(ctx, debtID, includeDeleted)
		return err
	})
	return deductions, err
}

// GetAuditLog returns a debt's audit trail, newest first
func (s *debtService) GetAuditLog(ctx context.Context, tenantID, debtID int64, limit int) ([]*models.DebtAuditLog, error) {
	var entries []*models.DebtAuditLog
	err := s.readOnly(ctx, tenantID, func(uow UnitOfWork) error {
		debt, err := uow.DebtRepository().GetByID(ctx, debtID)
		if err != nil {
			return err
		}
		if debt == nil {
			return &NotFoundError{Entity: "debt", ID: debtID}
		}
		entries, err = uow.AuditLogRepository().GetByDebt(ctx, debtID, limit)
		return err
	})
	return entries, err
}

func (s *debtService) getDebtLocked(ctx context.Context, uow UnitOfWork, debtID int64) (*models.Debt, error) {
	debts, err := uow.DebtRepository().GetForUpdateByIDs(ctx, []int64{debtID})
	if err != nil {
		return nil, classifyTimeout(err)
	}
	if len(debts) == 0 || debts[0].DeletedAt != nil {
		return nil, &NotFoundError{Entity: "debt", ID: debtID}
	}
	return debts[0], nil
}

func (s *debtService) readOnly(ctx context.Context, tenantID int64, fn func(uow UnitOfWork) error) error {
	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
