package service

import (
	"context"
	"fmt"
	"time"

	"hourledger/models"
)

type statsService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(uowFactory UnitOfWorkFactory) StatsService {
	return &statsService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

// GetTenantStats returns tenant-wide debt totals plus the minutes paid down
// so far this month.
func (s *statsService) GetTenantStats(ctx context.Context, tenantID int64) (*models.TenantDebtStats, error) {
	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.TenantSettingsRepository().GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := uow.DebtRepository().GetTenantDebtStats(ctx)
	if err != nil {
		return nil, err
	}

	loc := LoadBusinessLocation(settings.Timezone)
	monthStart, _ := MonthPeriod(s.now(), loc)

	paid, err := uow.DeductionRepository().SumDeductedSince(ctx, monthStart)
	if err != nil {
		return nil, err
	}
	stats.MinutesPaidThisMonth = paid

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return stats, nil
}
