package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"repricer-api/internal/middleware"
	"repricer-api/internal/service"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/response"
)

// ListingHandler handles listing-related HTTP requests.
type ListingHandler struct {
	listings  *service.ListingService
	sync      *service.Synchronizer
	scheduler *service.ReductionScheduler
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(listings *service.ListingService, sync *service.Synchronizer, scheduler *service.ReductionScheduler) *ListingHandler {
	return &ListingHandler{
		listings:  listings,
		sync:      sync,
		scheduler: scheduler,
	}
}

// List handles GET /api/v1/listings
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	out, err := h.listings.List(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, out)
}

// Get handles GET /api/v1/listings/{listing_id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listing_id")

	l, err := h.listings.Get(r.Context(), userID, listingID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, l)
}

// UpdateMonitoringConfig handles PUT /api/v1/listings/{listing_id}/monitoring
func (h *ListingHandler) UpdateMonitoringConfig(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listing_id")

	var in service.MonitoringConfigInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	l, err := h.listings.UpdateMonitoringConfig(r.Context(), userID, listingID, in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, l)
}

// History handles GET /api/v1/listings/{listing_id}/history
func (h *ListingHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listing_id")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	events, total, err := h.listings.History(r.Context(), userID, listingID, limit, offset)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, events, limit, offset, total)
}

// CreateFromCatalog handles POST /api/v1/listings/from-catalog
func (h *ListingHandler) CreateFromCatalog(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var in service.CreateFromCatalogInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	l, err := h.sync.CreateFromCatalog(r.Context(), userID, in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, l)
}

// ReduceNow handles POST /api/v1/listings/{listing_id}/reduce
func (h *ListingHandler) ReduceNow(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listing_id")

	event, result, err := h.scheduler.ReduceNow(r.Context(), userID, listingID)
	if err != nil {
		response.Error(w, err)
		return
	}

	if event == nil {
		response.OK(w, map[string]interface{}{
			"applied": false,
			"reason":  result.Reason,
		})
		return
	}
	response.OK(w, map[string]interface{}{
		"applied": true,
		"event":   event,
	})
}

// Preview handles GET /api/v1/listings/{listing_id}/preview
func (h *ListingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	listingID := chi.URLParam(r, "listing_id")

	result, err := h.scheduler.Preview(r.Context(), userID, listingID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}
