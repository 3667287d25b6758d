package repository

import (
	"context"
	"fmt"

	"hourledger/database"
	"hourledger/events"
	"hourledger/service"
	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	tenantID         int64
	defaults         TenantDefaults
	transactionalBus *events.TransactionalBus

	debtRepo              service.DebtRepository
	deductionRepo         service.DeductionRepository
	auditLogRepo          service.AuditLogRepository
	workRecordRepo        service.WorkRecordRepository
	tenantSettingsRepo    service.TenantSettingsRepository
	reconciliationRunRepo service.ReconciliationRunRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. The defaults seed
// settings rows for tenants seen for the first time; a zero value falls back
// to the model defaults.
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus, defaults TenantDefaults) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
		defaults: defaults.normalized(),
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
	defaults TenantDefaults
}

func (f *unitOfWorkFactory) CreateForTenant(tenantID int64) service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		tenantID:         tenantID,
		defaults:         f.defaults,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Bound lock waits and statement runtime so a stuck ledger operation
	// fails instead of queueing behind a long-lived lock holder.
	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '3s'"); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	if _, err := tx.Exec(ctx, "SET LOCAL statement_timeout = '30s'"); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to set statement timeout: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction, scoped to the tenant
	u.debtRepo = newDebtRepository(tx, u.tenantID)
	u.deductionRepo = newDeductionRepository(tx, u.tenantID)
	u.auditLogRepo = newAuditLogRepository(tx, u.tenantID)
	u.workRecordRepo = newWorkRecordRepository(tx, u.tenantID)
	u.tenantSettingsRepo = newTenantSettingsRepository(tx, u.tenantID, u.defaults)
	u.reconciliationRunRepo = newReconciliationRunRepository(tx, u.tenantID)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// DebtRepository returns the debt repository for this unit of work
func (u *unitOfWork) DebtRepository() service.DebtRepository {
	if u.debtRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.debtRepo
}

// DeductionRepository returns the deduction repository for this unit of work
func (u *unitOfWork) DeductionRepository() service.DeductionRepository {
	if u.deductionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.deductionRepo
}

// AuditLogRepository returns the audit log repository for this unit of work
func (u *unitOfWork) AuditLogRepository() service.AuditLogRepository {
	if u.auditLogRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.auditLogRepo
}

// WorkRecordRepository returns the work record repository for this unit of work
func (u *unitOfWork) WorkRecordRepository() service.WorkRecordRepository {
	if u.workRecordRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.workRecordRepo
}

// TenantSettingsRepository returns the tenant settings repository for this unit of work
func (u *unitOfWork) TenantSettingsRepository() service.TenantSettingsRepository {
	if u.tenantSettingsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.tenantSettingsRepo
}

// ReconciliationRunRepository returns the reconciliation run repository for this unit of work
func (u *unitOfWork) ReconciliationRunRepository() service.ReconciliationRunRepository {
	if u.reconciliationRunRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.reconciliationRunRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
