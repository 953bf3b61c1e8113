package handler

import (
	"fmt"
	"net/http"
	"time"

	"repricer-api/internal/middleware"
	"repricer-api/internal/repository"
	"repricer-api/internal/service"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/response"
)

// SyncHandler triggers marketplace reconciliation.
type SyncHandler struct {
	sync      *service.Synchronizer
	settings  repository.SettingsRepository
	freshness time.Duration
}

// NewSyncHandler creates a new sync handler. freshness is the window inside
// which repeat reconciliations are refused unless forced.
func NewSyncHandler(sync *service.Synchronizer, settings repository.SettingsRepository, freshness time.Duration) *SyncHandler {
	return &SyncHandler{sync: sync, settings: settings, freshness: freshness}
}

// Reconcile handles POST /api/v1/sync. A reconcile inside the freshness
// window returns 429 with the remaining wait; ?force=true overrides.
func (h *SyncHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	force := r.URL.Query().Get("force") == "true"

	if !force {
		settings, err := h.settings.Get(r.Context(), userID)
		if err != nil {
			response.Error(w, err)
			return
		}
		if settings.LastReconciled != nil {
			elapsed := time.Since(*settings.LastReconciled)
			if elapsed < h.freshness {
				remaining := (h.freshness - elapsed).Round(time.Second)
				response.Error(w, apierror.TooFrequent(
					fmt.Sprintf("inventory was reconciled %s ago; retry in %s or pass force=true",
						elapsed.Round(time.Second), remaining)))
				return
			}
		}
	}

	stats, err := h.sync.Reconcile(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}
