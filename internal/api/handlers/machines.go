// Package handlers contains the HTTP handler implementations for the
// prediction service API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maxdesanta/ac02-be-cron-job/internal/condition"
	"github.com/maxdesanta/ac02-be-cron-job/internal/core"
)

// ConditionService is the subset of the condition orchestrator the machine
// handlers need.
type ConditionService interface {
	MachinesCondition(ctx context.Context, page, limit int) (*condition.View, error)
	PredictMachine(ctx context.Context, machineID string) (*condition.PredictView, error)
}

// MachinesHandler serves the dashboard condition view and single-machine
// on-demand predictions.
type MachinesHandler struct {
	conditions ConditionService
	logger     *slog.Logger
}

// NewMachinesHandler creates a MachinesHandler.
func NewMachinesHandler(conditions ConditionService, logger *slog.Logger) *MachinesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MachinesHandler{conditions: conditions, logger: logger}
}

// RegisterRoutes mounts the machine endpoints on the v1 group.
func (h *MachinesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/machines/condition", h.HandleMachinesCondition)
	r.Get("/machines/{id}/predict", h.HandlePredictMachine)
}

// HandleMachinesCondition serves GET /v1/machines/condition. Accepts
// page and limit query parameters; the response carries the scored page,
// pagination metadata, and the fleet-wide summary.
func (h *MachinesHandler) HandleMachinesCondition(w http.ResponseWriter, r *http.Request) {
	page := core.QueryInt(r, "page", 1)
	limit := core.QueryInt(r, "limit", condition.DefaultPageLimit)

	view, err := h.conditions.MachinesCondition(r.Context(), page, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*condition.View
	}{
		Success: true,
		Message: "machines retrieved with prediction results",
		View:    view,
	})
}

// HandlePredictMachine serves GET /v1/machines/{id}/predict: a synchronous
// prediction for one machine's latest reading. Upstream failures surface
// with their mapped status (504 timeout, 503 unreachable, remote status on
// rejection) instead of a blanket 500.
func (h *MachinesHandler) HandlePredictMachine(w http.ResponseWriter, r *http.Request) {
	machineID := chi.URLParam(r, "id")

	view, err := h.conditions.PredictMachine(r.Context(), machineID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, r, "prediction completed", view)
}
