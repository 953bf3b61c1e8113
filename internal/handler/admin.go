package handler

import (
	"net/http"
	"time"

	"repricer-api/internal/repository"
	"repricer-api/pkg/response"
)

// AdminHandler exposes operational statistics.
type AdminHandler struct {
	listings repository.ListingRepository
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(listings repository.ListingRepository) *AdminHandler {
	return &AdminHandler{listings: listings}
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.listings.Stats(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}

	stats["uptime"] = time.Since(StartTime).Round(time.Second).String()
	response.OK(w, stats)
}
