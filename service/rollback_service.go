package service

import (
	"context"
	"fmt"

	"hourledger/events"
	"hourledger/models"
)

type rollbackService struct {
	uowFactory UnitOfWorkFactory
}

// NewRollbackService creates a new rollback service
func NewRollbackService(uowFactory UnitOfWorkFactory) RollbackService {
	return &rollbackService{
		uowFactory: uowFactory,
	}
}

// Rollback undoes every active deduction tied to the reversed work record and
// restores the affected debt balances. Balances are recomputed from scratch
// rather than incremented: the forward path is incremental to avoid double
// counting within a day, but a reversal removes a specific slice and must be
// exact.
func (s *rollbackService) Rollback(ctx context.Context, tenantID, workRecordID int64, reason models.RollbackReason) (*models.RollbackResult, error) {
	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	record, err := uow.WorkRecordRepository().GetByID(ctx, workRecordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &NotFoundError{Entity: "work record", ID: workRecordID}
	}

	deductions, err := uow.DeductionRepository().GetActiveByWorkRecord(ctx, workRecordID)
	if err != nil {
		return nil, classifyTimeout(err)
	}
	if len(deductions) == 0 {
		// Record never produced deductions; nothing to undo.
		return &models.RollbackResult{}, nil
	}

	debtIDs := make([]int64, 0, len(deductions))
	seen := make(map[int64]bool)
	minutesRestored := 0
	for _, d := range deductions {
		minutesRestored += d.MinutesDeducted
		if !seen[d.DebtID] {
			seen[d.DebtID] = true
			debtIDs = append(debtIDs, d.DebtID)
		}
	}

	// Lock the debts before touching their deductions so a concurrent
	// allocation for the same user cannot interleave.
	debts, err := uow.DebtRepository().GetForUpdateByIDs(ctx, debtIDs)
	if err != nil {
		return nil, classifyTimeout(err)
	}

	reversed, err := uow.DeductionRepository().SoftDeleteByWorkRecord(ctx, workRecordID, reason)
	if err != nil {
		return nil, err
	}

	for _, debt := range debts {
		if _, err := recomputeDebtBalance(ctx, uow, debt); err != nil {
			return nil, err
		}
	}

	uow.EventBus().Publish(events.DeductionsRolledBackEvent{
		TenantID:        tenantID,
		WorkRecordID:    workRecordID,
		Reason:          reason,
		MinutesRestored: minutesRestored,
		DebtsTouched:    len(debts),
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.RollbackResult{
		DeductionsReversed: reversed,
		MinutesRestored:    minutesRestored,
		DebtsTouched:       len(debts),
	}, nil
}
