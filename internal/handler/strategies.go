package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"repricer-api/internal/middleware"
	"repricer-api/internal/service"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/response"
)

// StrategyHandler handles strategy CRUD HTTP requests.
type StrategyHandler struct {
	strategies *service.StrategyService
}

// NewStrategyHandler creates a new strategy handler.
func NewStrategyHandler(strategies *service.StrategyService) *StrategyHandler {
	return &StrategyHandler{strategies: strategies}
}

// Create handles POST /api/v1/strategies
func (h *StrategyHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var in service.StrategyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	strategy, err := h.strategies.Create(r.Context(), userID, in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, strategy)
}

// List handles GET /api/v1/strategies
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	out, err := h.strategies.List(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, out)
}

// Get handles GET /api/v1/strategies/{strategy_id}
func (h *StrategyHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	strategyID := chi.URLParam(r, "strategy_id")

	strategy, err := h.strategies.Get(r.Context(), userID, strategyID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, strategy)
}

// Update handles PUT /api/v1/strategies/{strategy_id}
func (h *StrategyHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	strategyID := chi.URLParam(r, "strategy_id")

	var in service.StrategyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	strategy, err := h.strategies.Update(r.Context(), userID, strategyID, in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, strategy)
}

// Delete handles DELETE /api/v1/strategies/{strategy_id}
func (h *StrategyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	strategyID := chi.URLParam(r, "strategy_id")

	if err := h.strategies.Delete(r.Context(), userID, strategyID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
