package api

import (
	"encoding/json"
	"net/http"

	"hourledger/models"
)

func settingsPayload(settings *models.TenantSettings) map[string]any {
	return map[string]any{
		"tenant_id":               settings.TenantID,
		"daily_threshold_minutes": settings.DailyThresholdMinutes,
		"timezone":                settings.Timezone,
		"updated_at":              settings.UpdatedAt,
	}
}

// GET /v1/tenants/{tenantID}/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := s.settings.GetSettings(r.Context(), tenantID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsPayload(settings))
}

type updateSettingsRequest struct {
	DailyThresholdMinutes int    `json:"daily_threshold_minutes"`
	Timezone              string `json:"timezone"`
}

// PUT /v1/tenants/{tenantID}/settings
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := actorFrom(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := s.settings.UpdateSettings(r.Context(), tenantID, req.DailyThresholdMinutes, req.Timezone)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsPayload(settings))
}
