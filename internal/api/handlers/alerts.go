package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maxdesanta/ac02-be-cron-job/internal/core"
	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// AlertReader is the read side of the alert store used by the handlers.
type AlertReader interface {
	FindAll(ctx context.Context) ([]types.Alert, error)
	FindUnresolved(ctx context.Context) ([]types.Alert, error)
	FindByID(ctx context.Context, id int64) (*types.Alert, error)
	FindBySeverity(ctx context.Context, severity types.AlertSeverity) ([]types.Alert, error)
	FindSummaries(ctx context.Context) ([]types.AlertSummary, error)
}

// AlertResolver marks alerts handled.
type AlertResolver interface {
	MarkResolved(ctx context.Context, id int64, resolvedBy string) (*types.Alert, error)
}

// AlertStore combines the repository capabilities the alert handlers need.
type AlertStore interface {
	AlertReader
	AlertResolver
}

// AlertsHandler serves the alert read model and resolution endpoint.
type AlertsHandler struct {
	alerts AlertStore
	logger *slog.Logger
}

// NewAlertsHandler creates an AlertsHandler.
func NewAlertsHandler(alerts AlertStore, logger *slog.Logger) *AlertsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertsHandler{alerts: alerts, logger: logger}
}

// RegisterRoutes mounts the alert endpoints on the v1 group. The static
// segments (stats, severity) are registered before the {id} routes so chi
// does not swallow them as ids.
func (h *AlertsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/alerts", h.HandleListSummaries)
	r.Get("/alerts/stats", h.HandleStats)
	r.Get("/alerts/severity/{severity}", h.HandleListBySeverity)
	r.Get("/alerts/{id}", h.HandleGetByID)
	r.Patch("/alerts/{id}/resolve", h.HandleResolve)
}

// HandleListSummaries serves GET /v1/alerts: the summary view with message
// previews, newest first.
func (h *AlertsHandler) HandleListSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.alerts.FindSummaries(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, "alerts summary retrieved", summaries)
}

// alertStats aggregates counts over all alerts, overall and unresolved.
type alertStats struct {
	Total                int            `json:"total"`
	Unresolved           int            `json:"unresolved"`
	Resolved             int            `json:"resolved"`
	BySeverity           map[string]int `json:"by_severity"`
	UnresolvedBySeverity map[string]int `json:"unresolved_by_severity"`
}

// HandleStats serves GET /v1/alerts/stats.
func (h *AlertsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	all, err := h.alerts.FindAll(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	unresolved, err := h.alerts.FindUnresolved(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	stats := alertStats{
		Total:                len(all),
		Unresolved:           len(unresolved),
		Resolved:             len(all) - len(unresolved),
		BySeverity:           severityCounts(all),
		UnresolvedBySeverity: severityCounts(unresolved),
	}
	core.OK(w, r, "alert statistics retrieved", stats)
}

func severityCounts(alerts []types.Alert) map[string]int {
	counts := map[string]int{"low": 0, "medium": 0, "high": 0, "critical": 0}
	for _, a := range alerts {
		counts[string(a.Severity)]++
	}
	return counts
}

// HandleListBySeverity serves GET /v1/alerts/severity/{severity}.
func (h *AlertsHandler) HandleListBySeverity(w http.ResponseWriter, r *http.Request) {
	severity := strings.ToLower(chi.URLParam(r, "severity"))
	switch types.AlertSeverity(severity) {
	case types.AlertSeverityLow, types.AlertSeverityMedium, types.AlertSeverityHigh, types.AlertSeverityCritical:
	default:
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidParam,
			"valid severity level is required (low, medium, high, critical)",
			nil,
		))
		return
	}

	alerts, err := h.alerts.FindBySeverity(r.Context(), types.AlertSeverity(severity))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, severity+" severity alerts retrieved", alerts)
}

// HandleGetByID serves GET /v1/alerts/{id}.
func (h *AlertsHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseAlertID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	alert, err := h.alerts.FindByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, "alert retrieved", alert)
}

// resolveRequest is the optional body of the resolve endpoint.
type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// HandleResolve serves PATCH /v1/alerts/{id}/resolve. Resolving an already
// resolved alert is rejected so the original resolution audit trail is
// never overwritten.
func (h *AlertsHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := parseAlertID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	existing, err := h.alerts.FindByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if existing.Resolved {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeConflictAlreadyResolved,
			"alert is already resolved",
			nil,
		))
		return
	}

	var req resolveRequest
	if err := core.DecodeJSONOptional(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = "unknown"
	}

	alert, err := h.alerts.MarkResolved(r.Context(), id, resolvedBy)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.OK(w, r, "alert resolved", alert)
}

func parseAlertID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewAppError(
			types.ErrCodeValidationInvalidParam,
			"valid alert ID is required",
			err,
		)
	}
	return id, nil
}
