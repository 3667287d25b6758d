package service

import (
	"context"
	"time"

	"hourledger/events"
	"hourledger/models"
	log "github.com/sirupsen/logrus"
)

type ledgerService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory) LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

// ApplyApprovedWork pays down the user's debts with the marginal excess
// introduced by the newly approved record. Bookkeeping failures must not
// abort the triggering approval: they are logged and swallowed, and the
// monthly review closes any resulting gap later. A nil result signals such
// a failure.
func (s *ledgerService) ApplyApprovedWork(ctx context.Context, tenantID, userID, workRecordID int64, workDate time.Time, approvedMinutes int) *models.AllocationResult {
	result, err := s.apply(ctx, tenantID, userID, workRecordID, workDate, approvedMinutes)
	if err != nil {
		log.WithFields(log.Fields{
			"tenantID":     tenantID,
			"userID":       userID,
			"workRecordID": workRecordID,
			"workDate":     workDate.Format("2006-01-02"),
			"error":        err,
		}).Error("Failed to apply approved work to hour debts")
		return nil
	}
	return result
}

func (s *ledgerService) apply(ctx context.Context, tenantID, userID, workRecordID int64, workDate time.Time, approvedMinutes int) (*models.AllocationResult, error) {
	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback() // No-op if already committed

	settings, err := uow.TenantSettingsRepository().GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	loc := LoadBusinessLocation(settings.Timezone)
	workDay := BusinessDay(workDate, loc)

	// The triggering record is excluded from the previous total whether or
	// not the collaborator already persisted it as approved.
	excess, err := computeIncrementalExcess(ctx, uow, userID, workDay, approvedMinutes, &workRecordID, settings.DailyThresholdMinutes)
	if err != nil {
		return nil, err
	}

	if excess <= 0 {
		// Nothing over the threshold; commit to keep any settings row
		// GetOrCreate just made, but leave the ledger untouched.
		if err := uow.Commit(); err != nil {
			return nil, err
		}
		return &models.AllocationResult{IncrementalExcess: excess}, nil
	}

	result, err := allocateExcess(ctx, uow, userID, workDay, workRecordID, excess, s.now())
	if err != nil {
		return nil, err
	}

	if result.MinutesApplied > 0 {
		uow.EventBus().Publish(events.DeductionAppliedEvent{
			TenantID:       tenantID,
			UserID:         userID,
			WorkRecordID:   workRecordID,
			MinutesApplied: result.MinutesApplied,
			DebtsTouched:   result.DebtsTouched,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return result, nil
}
