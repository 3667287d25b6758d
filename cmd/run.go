package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hourledger/api"
	"hourledger/config"
	"hourledger/database"
	"hourledger/events"
	"hourledger/repository"
	"hourledger/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.Info("Starting hour ledger service...")

	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established")

	eventBus := events.NewBus()
	api.RegisterEventMetrics(eventBus)

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus, repository.TenantDefaults{
		DailyThresholdMinutes: service.HoursToMinutes(float64(cfg.DefaultDailyThresholdHours)),
		Timezone:              cfg.DefaultBusinessTimezone,
	})

	ledgerService := service.NewLedgerService(uowFactory)
	rollbackService := service.NewRollbackService(uowFactory)
	reconciliationService := service.NewReconciliationService(uowFactory)
	debtService := service.NewDebtService(uowFactory)
	settingsService := service.NewSettingsService(uowFactory)
	statsService := service.NewStatsService(uowFactory)

	server := api.NewServer(debtService, ledgerService, rollbackService, reconciliationService, settingsService, statsService)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":        cfg.ListenAddr,
			"environment": cfg.Environment,
		}).Info("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		db.Close()
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	log.Info("Closing database connection...")
	db.Close()

	log.Info("Shutdown completed")
	return nil
}
