package handler

import (
	"encoding/json"
	"net/http"

	"repricer-api/internal/middleware"
	"repricer-api/internal/repository"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/response"
)

// SettingsHandler handles per-user settings, currently the vacation gate.
type SettingsHandler struct {
	settings repository.SettingsRepository
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settings repository.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get handles GET /api/v1/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	s, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, s)
}

// vacationRequest flips the vacation gate.
type vacationRequest struct {
	VacationMode bool `json:"vacation_mode"`
}

// SetVacation handles PUT /api/v1/settings/vacation. Turning vacation on
// pauses all scheduled reductions for the user without touching any listing
// configuration; turning it off resumes them on the next cycle.
func (h *SettingsHandler) SetVacation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var in vacationRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	if err := h.settings.SetVacation(r.Context(), userID, in.VacationMode); err != nil {
		response.Error(w, err)
		return
	}

	s, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, s)
}
