package service

import (
	"context"

	"hourledger/models"
)

// recordDebtChange is the single entry point for appending to a debt's audit
// trail. Every administrative mutation and every out-of-band balance
// correction goes through here so the trail stays complete.
func recordDebtChange(ctx context.Context, uow UnitOfWork, debtID int64, action models.AuditAction, before, after *models.DebtSnapshot, changedFields []string, reason *string, actor Actor) error {
	entry := &models.DebtAuditLog{
		DebtID:        debtID,
		Action:        action,
		BeforeState:   before,
		AfterState:    after,
		ChangedFields: changedFields,
		Reason:        reason,
		PerformedBy:   actor.UserID,
		IPAddress:     actor.Meta.IPAddress,
		UserAgent:     actor.Meta.UserAgent,
	}
	return uow.AuditLogRepository().Record(ctx, entry)
}
