package handler

import (
	"net/http"
	"time"

	"repricer-api/internal/service"
	"repricer-api/pkg/response"
)

// ReductionHandler triggers reduction cycles over HTTP. The same cycle also
// runs from the in-process cron trigger when one is configured.
type ReductionHandler struct {
	scheduler *service.ReductionScheduler
}

// NewReductionHandler creates a new reduction handler.
func NewReductionHandler(scheduler *service.ReductionScheduler) *ReductionHandler {
	return &ReductionHandler{scheduler: scheduler}
}

// Run handles POST /api/v1/reductions/run
func (h *ReductionHandler) Run(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scheduler.RunCycle(r.Context(), time.Now().UTC())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}
