package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"hourledger/models"
	"hourledger/service"
)

type debtResponse struct {
	ID               int64             `json:"id"`
	TenantID         int64             `json:"tenant_id"`
	UserID           int64             `json:"user_id"`
	Date             string            `json:"date"`
	OwedMinutes      int               `json:"owed_minutes"`
	RemainingMinutes int               `json:"remaining_minutes"`
	Status           models.DebtStatus `json:"status"`
	Reason           string            `json:"reason"`
	CreatedBy        int64             `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	DeletedAt        *time.Time        `json:"deleted_at,omitempty"`
}

func toDebtResponse(d *models.Debt) debtResponse {
	return debtResponse{
		ID:               d.ID,
		TenantID:         d.TenantID,
		UserID:           d.UserID,
		Date:             d.Date.Format(time.DateOnly),
		OwedMinutes:      d.OwedMinutes,
		RemainingMinutes: d.RemainingMinutes,
		Status:           d.Status,
		Reason:           d.Reason,
		CreatedBy:        d.CreatedBy,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		DeletedAt:        d.DeletedAt,
	}
}

func toDebtResponses(debts []*models.Debt) []debtResponse {
	out := make([]debtResponse, 0, len(debts))
	for _, d := range debts {
		out = append(out, toDebtResponse(d))
	}
	return out
}

type createDebtRequest struct {
	UserID      int64  `json:"user_id"`
	Date        string `json:"date"`
	OwedMinutes int    `json:"owed_minutes"`
	Reason      string `json:"reason"`
}

// POST /v1/tenants/{tenantID}/debts
func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
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

	var req createDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := parseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	debt, err := s.debts.CreateDebt(r.Context(), service.CreateDebtParams{
		TenantID:    tenantID,
		UserID:      req.UserID,
		Date:        date,
		OwedMinutes: req.OwedMinutes,
		Reason:      req.Reason,
	}, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDebtResponse(debt))
}

// GET /v1/tenants/{tenantID}/debts?user_id=&status=&from=&to=&include_deleted=&limit=
func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var filter service.DebtFilter
	q := r.URL.Query()

	if v := q.Get("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		filter.UserID = &userID
	}
	if v := q.Get("status"); v != "" {
		status := models.DebtStatus(v)
		switch status {
		case models.DebtStatusActive, models.DebtStatusFullyPaid, models.DebtStatusCancelled:
			filter.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	if v := q.Get("from"); v != "" {
		from, err := parseDay(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		filter.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := parseDay(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		filter.To = &to
	}
	filter.IncludeDeleted = q.Get("include_deleted") == "true"
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	debts, err := s.debts.ListDebts(r.Context(), tenantID, filter)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"debts": toDebtResponses(debts)})
}

// GET /v1/debts/{id}
func (s *Server) handleGetDebt(w http.ResponseWriter, r *http.Request) {
	tenantID, debtID, ok := s.debtScope(w, r)
	if !ok {
		return
	}

	debt, err := s.debts.GetDebt(r.Context(), tenantID, debtID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDebtResponse(debt))
}

type updateDebtRequest struct {
	Date        *string `json:"date"`
	OwedMinutes *int    `json:"owed_minutes"`
	Reason      *string `json:"reason"`
}

// PUT /v1/debts/{id}
func (s *Server) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	tenantID, debtID, ok := s.debtScope(w, r)
	if !ok {
		return
	}
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := service.UpdateDebtParams{
		TenantID:    tenantID,
		DebtID:      debtID,
		OwedMinutes: req.OwedMinutes,
		Reason:      req.Reason,
	}
	if req.Date != nil {
		date, err := parseDay(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		params.Date = &date
	}

	debt, err := s.debts.UpdateDebt(r.Context(), params, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDebtResponse(debt))
}

type retireDebtRequest struct {
	Reason string `json:"reason"`
}

// POST /v1/debts/{id}/cancel
func (s *Server) handleCancelDebt(w http.ResponseWriter, r *http.Request) {
	s.retireDebt(w, r, s.debts.CancelDebt)
}

// DELETE /v1/debts/{id}
func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	s.retireDebt(w, r, s.debts.DeleteDebt)
}

func (s *Server) retireDebt(
	w http.ResponseWriter,
	r *http.Request,
	retire func(ctx context.Context, tenantID, debtID int64, actor service.Actor, reason string) error,
) {
	tenantID, debtID, ok := s.debtScope(w, r)
	if !ok {
		return
	}
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A body is optional for both cancel and delete.
	var req retireDebtRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := retire(r.Context(), tenantID, debtID, actor, req.Reason); err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /v1/tenants/{tenantID}/users/{userID}/balance
func (s *Server) handleUserBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := s.debts.GetUserBalance(r.Context(), tenantID, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":           balance.UserID,
		"active_debts":      balance.ActiveDebts,
		"owed_minutes":      balance.OwedMinutes,
		"remaining_minutes": balance.RemainingMinutes,
	})
}

type deductionResponse struct {
	ID              int64      `json:"id"`
	DebtID          int64      `json:"debt_id"`
	WorkRecordID    int64      `json:"work_record_id"`
	MinutesDeducted int        `json:"minutes_deducted"`
	DeductedAt      time.Time  `json:"deducted_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	DeleteReason    *string    `json:"delete_reason,omitempty"`
}

// GET /v1/debts/{id}/deductions?include_deleted=
func (s *Server) handleGetDeductions(w http.ResponseWriter, r *http.Request) {
	tenantID, debtID, ok := s.debtScope(w, r)
	if !ok {
		return
	}

	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	deductions, err := s.debts.GetDeductions(r.Context(), tenantID, debtID, includeDeleted)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]deductionResponse, 0, len(deductions))
	for _, d := range deductions {
		out = append(out, deductionResponse{
			ID:              d.ID,
			DebtID:          d.DebtID,
			WorkRecordID:    d.WorkRecordID,
			MinutesDeducted: d.MinutesDeducted,
			DeductedAt:      d.DeductedAt,
			DeletedAt:       d.DeletedAt,
			DeleteReason:    d.DeleteReason,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"deductions": out})
}

type auditEntryResponse struct {
	ID            int64                `json:"id"`
	Action        models.AuditAction   `json:"action"`
	BeforeState   *models.DebtSnapshot `json:"before_state,omitempty"`
	AfterState    *models.DebtSnapshot `json:"after_state,omitempty"`
	ChangedFields []string             `json:"changed_fields,omitempty"`
	Reason        *string              `json:"reason,omitempty"`
	PerformedBy   int64                `json:"performed_by"`
	CreatedAt     time.Time            `json:"created_at"`
}

// GET /v1/debts/{id}/audit-log?limit=
func (s *Server) handleGetAuditLog(w http.ResponseWriter, r *http.Request) {
	tenantID, debtID, ok := s.debtScope(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		var err error
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	entries, err := s.debts.GetAuditLog(r.Context(), tenantID, debtID, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:            e.ID,
			Action:        e.Action,
			BeforeState:   e.BeforeState,
			AfterState:    e.AfterState,
			ChangedFields: e.ChangedFields,
			Reason:        e.Reason,
			PerformedBy:   e.PerformedBy,
			CreatedAt:     e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"audit_log": out})
}

// debtScope resolves the tenant header and debt id shared by /v1/debts/{id}
// routes, writing the error response itself on failure.
func (s *Server) debtScope(w http.ResponseWriter, r *http.Request) (tenantID, debtID int64, ok bool) {
	tenantID, err := tenantFromHeader(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	debtID, err = pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return tenantID, debtID, true
}
