package api

import (
	"context"
	"strconv"

	"hourledger/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	debtsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hourledger_debts_created_total",
		Help: "Debts recorded, by tenant.",
	}, []string{"tenant"})

	debtsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hourledger_debts_settled_total",
		Help: "Debts paid down to zero, by tenant.",
	}, []string{"tenant"})

	minutesDeducted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hourledger_minutes_deducted_total",
		Help: "Excess minutes applied against debts, by tenant.",
	}, []string{"tenant"})

	minutesRestored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hourledger_minutes_restored_total",
		Help: "Minutes restored to debts by work record reversals, by tenant.",
	}, []string{"tenant"})

	reconciliationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hourledger_reconciliation_runs_total",
		Help: "Completed monthly review runs, by tenant.",
	}, []string{"tenant"})

	reconciliationFixes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hourledger_reconciliation_fixes_total",
		Help: "Balance corrections applied by monthly reviews, by tenant.",
	}, []string{"tenant"})
)

// RegisterEventMetrics wires the ledger's domain events into the Prometheus
// counters served on /metrics. Events fire only after their transaction
// commits, so the counters never count rolled-back work.
func RegisterEventMetrics(bus *events.Bus) {
	bus.Subscribe(events.EventTypeDebtCreated, func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.DebtCreatedEvent); ok {
			debtsCreated.WithLabelValues(tenantLabel(ev.TenantID)).Inc()
		}
	})

	bus.Subscribe(events.EventTypeDebtSettled, func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.DebtSettledEvent); ok {
			debtsSettled.WithLabelValues(tenantLabel(ev.TenantID)).Inc()
		}
	})

	bus.Subscribe(events.EventTypeDeductionApplied, func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.DeductionAppliedEvent); ok {
			minutesDeducted.WithLabelValues(tenantLabel(ev.TenantID)).Add(float64(ev.MinutesApplied))
		}
	})

	bus.Subscribe(events.EventTypeDeductionsRolledBack, func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.DeductionsRolledBackEvent); ok {
			minutesRestored.WithLabelValues(tenantLabel(ev.TenantID)).Add(float64(ev.MinutesRestored))
		}
	})

	bus.Subscribe(events.EventTypeReconciliationComplete, func(_ context.Context, e events.Event) {
		if ev, ok := e.(events.ReconciliationCompleteEvent); ok {
			label := tenantLabel(ev.TenantID)
			reconciliationRuns.WithLabelValues(label).Inc()
			reconciliationFixes.WithLabelValues(label).Add(float64(ev.BalanceFixes))
		}
	})
}

func tenantLabel(tenantID int64) string {
	return strconv.FormatInt(tenantID, 10)
}
