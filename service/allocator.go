package service

import (
	"context"
	"fmt"
	"time"

	"hourledger/events"
	"hourledger/models"
)

// allocateExcess consumes incremental excess minutes against the user's
// eligible debts, oldest date first. It must run inside an already-begun unit
// of work: the FOR UPDATE read serializes concurrent approvals for the same
// user for the remainder of the transaction.
//
// Leftover excess beyond all eligible balances is reported, not persisted.
func allocateExcess(ctx context.Context, uow UnitOfWork, userID int64, workDay time.Time, workRecordID int64, excessMinutes int, now time.Time) (*models.AllocationResult, error) {
	result := &models.AllocationResult{IncrementalExcess: excessMinutes}
	if excessMinutes <= 0 {
		return result, nil
	}

	debts, err := uow.DebtRepository().GetActiveForUpdate(ctx, userID, workDay)
	if err != nil {
		return nil, classifyTimeout(err)
	}

	remaining := excessMinutes
	for _, debt := range debts {
		if remaining <= 0 {
			break
		}

		take := remaining
		if debt.RemainingMinutes < take {
			take = debt.RemainingMinutes
		}
		if take <= 0 {
			continue
		}

		deduction := &models.Deduction{
			DebtID:          debt.ID,
			WorkRecordID:    workRecordID,
			MinutesDeducted: take,
			ExcessMinutes:   take,
			DeductedAt:      now,
		}
		if err := uow.DeductionRepository().Upsert(ctx, deduction); err != nil {
			return nil, err
		}

		debt.RemainingMinutes -= take
		status := models.DebtStatusActive
		if debt.RemainingMinutes == 0 {
			status = models.DebtStatusFullyPaid
		}
		if err := uow.DebtRepository().UpdateBalance(ctx, debt.ID, debt.RemainingMinutes, status); err != nil {
			return nil, err
		}

		if status == models.DebtStatusFullyPaid {
			result.DebtsSettled++
			uow.EventBus().Publish(events.DebtSettledEvent{
				DebtID:   debt.ID,
				TenantID: debt.TenantID,
				UserID:   debt.UserID,
			})
		}

		remaining -= take
		result.MinutesApplied += take
		result.DebtsTouched++
	}

	result.LeftoverMinutes = remaining

	return result, nil
}

// recomputeDebtBalance restores a debt's balance from the sum of its active
// deductions. Used by rollback and the balance audit, where an incremental
// adjustment would be wrong because an arbitrary subset of deductions may
// have been removed.
func recomputeDebtBalance(ctx context.Context, uow UnitOfWork, debt *models.Debt) (int, error) {
	deducted, err := uow.DeductionRepository().SumActiveByDebt(ctx, debt.ID)
	if err != nil {
		return 0, err
	}

	remaining := debt.OwedMinutes - deducted
	if remaining < 0 {
		remaining = 0
	}

	status := debt.Status
	if status != models.DebtStatusCancelled {
		if remaining == 0 {
			status = models.DebtStatusFullyPaid
		} else {
			status = models.DebtStatusActive
		}
	}

	if remaining == debt.RemainingMinutes && status == debt.Status {
		return remaining, nil
	}

	if err := uow.DebtRepository().UpdateBalance(ctx, debt.ID, remaining, status); err != nil {
		return 0, fmt.Errorf("failed to restore balance for debt %d: %w", debt.ID, err)
	}

	debt.RemainingMinutes = remaining
	debt.Status = status

	return remaining, nil
}
