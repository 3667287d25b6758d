package api

import (
	"encoding/json"
	"net/http"
	"time"

	"hourledger/models"
)

type workApprovedRequest struct {
	TenantID int64  `json:"tenant_id"`
	UserID   int64  `json:"user_id"`
	WorkDate string `json:"work_date"`
	Minutes  int    `json:"minutes"`
}

// POST /v1/work-records/{id}/approved
//
// Invoked by the time tracking collaborator after it approves a record. The
// ledger swallows its own bookkeeping failures so approval never bounces; a
// 202 with applied=false tells the caller the pay-down will be picked up by
// the next monthly review instead.
func (s *Server) handleWorkRecordApproved(w http.ResponseWriter, r *http.Request) {
	recordID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req workApprovedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID <= 0 || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "tenant_id and user_id are required")
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}
	workDate, err := parseDay(req.WorkDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "work_date must be YYYY-MM-DD")
		return
	}

	result := s.ledger.ApplyApprovedWork(r.Context(), req.TenantID, req.UserID, recordID, workDate, req.Minutes)
	if result == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{"applied": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"applied":            true,
		"incremental_excess": result.IncrementalExcess,
		"minutes_applied":    result.MinutesApplied,
		"debts_touched":      result.DebtsTouched,
		"debts_settled":      result.DebtsSettled,
		"leftover_minutes":   result.LeftoverMinutes,
	})
}

type workReversedRequest struct {
	TenantID int64                 `json:"tenant_id"`
	Reason   models.RollbackReason `json:"reason"`
}

// POST /v1/work-records/{id}/reversed
func (s *Server) handleWorkRecordReversed(w http.ResponseWriter, r *http.Request) {
	recordID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req workReversedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID <= 0 {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	switch req.Reason {
	case models.RollbackReasonRecordRejected,
		models.RollbackReasonRecordDeleted,
		models.RollbackReasonRecordEdited:
	case "":
		req.Reason = models.RollbackReasonRecordRejected
	default:
		writeError(w, http.StatusBadRequest, "unknown reason")
		return
	}

	result, err := s.rollback.Rollback(r.Context(), req.TenantID, recordID, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deductions_reversed": result.DeductionsReversed,
		"minutes_restored":    result.MinutesRestored,
		"debts_touched":       result.DebtsTouched,
	})
}

// POST /v1/tenants/{tenantID}/reviews
func (s *Server) handleRunReview(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.reconciliation.RunMonthlyReview(r.Context(), tenantID, actor.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// GET /v1/tenants/{tenantID}/reviews/latest
func (s *Server) handleLatestReview(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.reconciliation.GetLatestRun(r.Context(), tenantID)
	if err != nil {
		respondError(w, err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no reviews have run for this tenant")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":                run.ID,
		"tenant_id":             run.TenantID,
		"period_start":          run.PeriodStart.Format(time.DateOnly),
		"period_end":            run.PeriodEnd.Format(time.DateOnly),
		"requested_by":          run.RequestedBy,
		"balance_fixes_applied": run.BalanceFixesApplied,
		"gaps_found":            run.GapsFound,
		"minutes_applied":       run.MinutesApplied,
		"users_flagged":         run.UsersFlagged,
		"summary":               run.Summary,
		"created_at":            run.CreatedAt,
	})
}

// GET /v1/tenants/{tenantID}/stats
func (s *Server) handleTenantStats(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := s.stats.GetTenantStats(r.Context(), tenantID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":               stats.TenantID,
		"active_debts":            stats.ActiveDebts,
		"users_with_debt":         stats.UsersWithDebt,
		"total_owed_minutes":      stats.TotalOwedMinutes,
		"total_remaining_minutes": stats.TotalRemainingMinutes,
		"minutes_paid_this_month": stats.MinutesPaidThisMonth,
	})
}
