package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hourledger/events"
	"hourledger/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const balanceAuditReason = "balance audit"

type reconciliationService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time

	// One review at a time per tenant, so a run never races itself or a
	// concurrently triggered duplicate.
	mu          sync.Mutex
	tenantLocks map[int64]*sync.Mutex
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(uowFactory UnitOfWorkFactory) ReconciliationService {
	return &reconciliationService{
		uowFactory:  uowFactory,
		now:         time.Now,
		tenantLocks: make(map[int64]*sync.Mutex),
	}
}

func (s *reconciliationService) lockTenant(tenantID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.tenantLocks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.tenantLocks[tenantID] = lock
	}
	return lock
}

// RunMonthlyReview performs a whole-period consistency pass for the current
// month to date: balance audit, gap detection with auto-apply through the
// same FIFO allocation used on the forward path, and a per-user report.
// Running it twice with no new approvals in between yields zero new fixes.
// Unlike the forward allocation path, failures here propagate to the caller.
func (s *reconciliationService) RunMonthlyReview(ctx context.Context, tenantID, requestedBy int64) (*models.ReconciliationReport, error) {
	lock := s.lockTenant(tenantID)
	lock.Lock()
	defer lock.Unlock()

	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	settings, err := uow.TenantSettingsRepository().GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	loc := LoadBusinessLocation(settings.Timezone)
	now := s.now()
	periodStart, periodEnd := MonthPeriod(now, loc)

	report := &models.ReconciliationReport{
		RunID:       uuid.New(),
		TenantID:    tenantID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		RequestedBy: requestedBy,
	}

	// Balance audit before gap filling, so the fix count reflects drift
	// independent of what the gap pass is about to apply.
	preFixes, err := s.auditBalances(ctx, uow, requestedBy)
	if err != nil {
		return nil, err
	}
	report.BalanceFixes = append(report.BalanceFixes, preFixes...)

	users, gapsFound, minutesApplied, err := s.fillGaps(ctx, uow, settings.DailyThresholdMinutes, periodStart, periodEnd, now)
	if err != nil {
		return nil, err
	}
	report.GapsFound = gapsFound
	report.MinutesApplied = minutesApplied

	// Second audit pass verifies the gap fill left balances consistent.
	postFixes, err := s.auditBalances(ctx, uow, requestedBy)
	if err != nil {
		return nil, err
	}
	report.BalanceFixes = append(report.BalanceFixes, postFixes...)
	report.BalanceFixesApplied = len(report.BalanceFixes)

	sort.Slice(users, func(i, j int) bool {
		gi, gj := users[i].Gap, users[j].Gap
		if gi < 0 {
			gi = -gi
		}
		if gj < 0 {
			gj = -gj
		}
		if gi != gj {
			return gi > gj
		}
		return users[i].UserID < users[j].UserID
	})
	report.Users = users
	for _, u := range users {
		if u.Flagged {
			report.UsersFlagged++
		}
	}
	report.CompletedAt = now

	run := &models.ReconciliationRun{
		ID:                  report.RunID,
		TenantID:            tenantID,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		RequestedBy:         requestedBy,
		BalanceFixesApplied: report.BalanceFixesApplied,
		GapsFound:           report.GapsFound,
		MinutesApplied:      report.MinutesApplied,
		UsersFlagged:        report.UsersFlagged,
		Summary: map[string]any{
			"users_reviewed": len(users),
			"balance_fixes":  report.BalanceFixesApplied,
			"gaps_found":     report.GapsFound,
		},
	}
	if err := uow.ReconciliationRunRepository().Create(ctx, run); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.ReconciliationCompleteEvent{
		TenantID:       tenantID,
		BalanceFixes:   report.BalanceFixesApplied,
		GapsFound:      report.GapsFound,
		MinutesApplied: report.MinutesApplied,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"tenantID":       tenantID,
		"runID":          report.RunID,
		"balanceFixes":   report.BalanceFixesApplied,
		"gapsFound":      report.GapsFound,
		"minutesApplied": report.MinutesApplied,
		"usersFlagged":   report.UsersFlagged,
	}).Info("Monthly hour-debt review completed")

	return report, nil
}

// auditBalances recomputes every active debt's balance from its active
// deductions and corrects drift beyond the tolerance. Corrections are audited
// since they change a balance outside the normal allocation path.
func (s *reconciliationService) auditBalances(ctx context.Context, uow UnitOfWork, requestedBy int64) ([]models.BalanceFix, error) {
	survey, err := uow.DebtRepository().GetAllActive(ctx)
	if err != nil {
		return nil, classifyTimeout(err)
	}
	if len(survey) == 0 {
		return nil, nil
	}

	debtIDs := make([]int64, len(survey))
	for i, d := range survey {
		debtIDs[i] = d.ID
	}

	// Lock the surveyed debts and work from the locked rows: a concurrent
	// allocation may have moved a balance between the survey and here, and
	// correcting against the stale copy would undo its deduction.
	debts, err := uow.DebtRepository().GetForUpdateByIDs(ctx, debtIDs)
	if err != nil {
		return nil, classifyTimeout(err)
	}

	sums, err := uow.DeductionRepository().SumActiveByDebtIDs(ctx, debtIDs)
	if err != nil {
		return nil, err
	}

	var fixes []models.BalanceFix
	for _, debt := range debts {
		// The debt may have been retired since the survey.
		if debt.Status != models.DebtStatusActive || debt.DeletedAt != nil {
			continue
		}
		expected := debt.OwedMinutes - sums[debt.ID]
		if expected < 0 {
			expected = 0
		}

		drift := debt.RemainingMinutes - expected
		if drift < 0 {
			drift = -drift
		}
		if drift <= models.BalanceToleranceMinutes {
			continue
		}

		before := models.SnapshotOf(debt)
		oldBalance := debt.RemainingMinutes

		status := models.DebtStatusActive
		if expected == 0 {
			status = models.DebtStatusFullyPaid
		}
		if err := uow.DebtRepository().UpdateBalance(ctx, debt.ID, expected, status); err != nil {
			return nil, err
		}
		debt.RemainingMinutes = expected
		debt.Status = status

		reason := balanceAuditReason
		actor := Actor{UserID: requestedBy}
		if err := recordDebtChange(ctx, uow, debt.ID, models.AuditActionUpdate, before, models.SnapshotOf(debt), []string{"remaining_minutes", "status"}, &reason, actor); err != nil {
			return nil, err
		}

		fixes = append(fixes, models.BalanceFix{
			DebtID:     debt.ID,
			UserID:     debt.UserID,
			OldBalance: oldBalance,
			NewBalance: expected,
		})
	}

	return fixes, nil
}

// fillGaps compares expected daily excess against minutes actually deducted
// for each user and day in the period, and pays down eligible debts with any
// shortfall through the regular FIFO allocation, anchored to the day's last
// approved work record.
func (s *reconciliationService) fillGaps(ctx context.Context, uow UnitOfWork, thresholdMinutes int, periodStart, periodEnd, now time.Time) ([]models.UserReconciliation, int, int, error) {
	earliest, err := uow.DebtRepository().EarliestDebtDates(ctx)
	if err != nil {
		return nil, 0, 0, err
	}

	approved, err := uow.WorkRecordRepository().ApprovedTotalsByUserDay(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, 0, 0, err
	}

	deducted, err := uow.DeductionRepository().SumDeductedByUserDay(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, 0, 0, err
	}

	type dayKey struct {
		userID int64
		day    string
	}
	deductedByDay := make(map[dayKey]int, len(deducted))
	for _, t := range deducted {
		deductedByDay[dayKey{t.UserID, t.Day.Format("2006-01-02")}] = t.Minutes
	}

	perUser := make(map[int64]*models.UserReconciliation)
	gapsFound := 0
	minutesApplied := 0

	for _, total := range approved {
		firstDebtDate, hasDebt := earliest[total.UserID]
		if !hasDebt {
			// Nothing to pay down, ever.
			continue
		}
		// Work that predates the user's first debt cannot pay anything.
		if total.Day.Before(firstDebtDate) {
			continue
		}

		expected := total.Minutes - thresholdMinutes
		if expected <= 0 {
			continue
		}

		user := perUser[total.UserID]
		if user == nil {
			user = &models.UserReconciliation{UserID: total.UserID}
			perUser[total.UserID] = user
		}

		dayDeducted := deductedByDay[dayKey{total.UserID, total.Day.Format("2006-01-02")}]
		user.ExpectedExcess += expected
		user.DeductedMinutes += dayDeducted

		gap := expected - dayDeducted
		if gap <= 0 {
			continue
		}

		// The period-wide deducted totals were read without locks, so an
		// approval committing in between may already have paid this day.
		// Lock the user's eligible debts, then re-read the day's deducted
		// sum and shrink the gap before applying anything.
		if _, err := uow.DebtRepository().GetActiveForUpdate(ctx, total.UserID, total.Day); err != nil {
			return nil, 0, 0, classifyTimeout(err)
		}
		lockedDeducted, err := uow.DeductionRepository().SumDeductedForDay(ctx, total.UserID, total.Day)
		if err != nil {
			return nil, 0, 0, err
		}
		if lockedDeducted > dayDeducted {
			user.DeductedMinutes += lockedDeducted - dayDeducted
			gap = expected - lockedDeducted
			if gap <= 0 {
				continue
			}
		}
		gapsFound++

		anchor, err := uow.WorkRecordRepository().LastApprovedRecordOfDay(ctx, total.UserID, total.Day)
		if err != nil {
			return nil, 0, 0, err
		}
		if anchor == nil {
			// Totals said the day had approved work; treat a missing anchor
			// as an unresolvable gap and leave it flagged.
			continue
		}

		result, err := allocateExcess(ctx, uow, total.UserID, total.Day, anchor.ID, gap, now)
		if err != nil {
			return nil, 0, 0, err
		}
		user.DeductedMinutes += result.MinutesApplied
		minutesApplied += result.MinutesApplied
	}

	users := make([]models.UserReconciliation, 0, len(perUser))
	for _, user := range perUser {
		user.Gap = user.ExpectedExcess - user.DeductedMinutes
		user.Flagged = user.Gap > 0
		users = append(users, *user)
	}

	return users, gapsFound, minutesApplied, nil
}

// GetLatestRun returns the tenant's most recent persisted run, or nil
func (s *reconciliationService) GetLatestRun(ctx context.Context, tenantID int64) (*models.ReconciliationRun, error) {
	uow := s.uowFactory.CreateForTenant(tenantID)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	run, err := uow.ReconciliationRunRepository().GetLatest(ctx)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return run, nil
}
