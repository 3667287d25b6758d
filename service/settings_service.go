package service

import (
	"context"
	"fmt"
	"time"

	"hourledger/models"

	log "github.com/sirupsen/logrus"
)

type settingsService struct {
	uowFactory UnitOfWorkFactory
}

// NewSettingsService creates a new settings service
func NewSettingsService(uowFactory UnitOfWorkFactory) SettingsService {
	return &settingsService{uowFactory: uowFactory}
}

// GetSettings returns the tenant's settings, creating defaults on first use
func (s *settingsService) GetSettings(ctx context.Context, tenantID int64) (*models.TenantSettings, error) {
	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.TenantSettingsRepository().GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return settings, nil
}

// UpdateSettings changes the tenant's daily threshold and timezone
func (s *settingsService) UpdateSettings(ctx context.Context, tenantID int64, thresholdMinutes int, timezone string) (*models.TenantSettings, error) {
	if thresholdMinutes < 1 || thresholdMinutes > 24*60 {
		return nil, &ValidationError{
			Field:   "daily_threshold_minutes",
			Message: "must be between 1 and 1440",
		}
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, &ValidationError{Field: "timezone", Message: "unknown timezone name"}
		}
	}

	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	settings, err := uow.TenantSettingsRepository().GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	settings.DailyThresholdMinutes = thresholdMinutes
	if timezone != "" {
		settings.Timezone = timezone
	}

	if err := uow.TenantSettingsRepository().Update(ctx, settings); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"tenantID":         tenantID,
		"thresholdMinutes": thresholdMinutes,
		"timezone":         settings.Timezone,
	}).Info("Tenant settings updated")

	return settings, nil
}
