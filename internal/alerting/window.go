package alerting

import (
	"context"
	"log/slog"
	"time"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// DefaultDuplicateWindow is the cooldown applied to ML-derived alerts.
const DefaultDuplicateWindow = 60 * time.Minute

// AlertReader is the read contract the duplicate window needs from the
// alert store.
type AlertReader interface {
	// FindByMachineID returns all alerts for a machine, most recent first.
	FindByMachineID(ctx context.Context, machineID string) ([]types.Alert, error)
}

// Window suppresses re-raising the same condition within a cooldown period
// by inspecting recently-created, unresolved alerts. It reads on every call
// without caching: alert volume per machine is low, and correctness beats
// latency here.
type Window struct {
	alerts AlertReader
	clock  types.Clock
	logger *slog.Logger
}

// NewWindow creates a Window over the given alert reader.
func NewWindow(alerts AlertReader, clock types.Clock, logger *slog.Logger) *Window {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{alerts: alerts, clock: clock, logger: logger}
}

// IsDuplicate reports whether an unresolved alert of the same type was
// created for the machine within the window. A failed store read is logged
// and answered with false: alerting on a degraded store beats silently
// dropping a real condition.
func (w *Window) IsDuplicate(ctx context.Context, machineID string, alertType types.AlertType, window time.Duration) bool {
	alerts, err := w.alerts.FindByMachineID(ctx, machineID)
	if err != nil {
		w.logger.ErrorContext(ctx, "duplicate check failed, treating as not duplicate",
			"machine_id", machineID,
			"alert_type", string(alertType),
			"error", err,
		)
		return false
	}

	cutoff := w.clock.Now().Add(-window)
	for _, a := range alerts {
		if a.Type == alertType && !a.Resolved && a.CreatedAt.After(cutoff) {
			return true
		}
	}
	return false
}
