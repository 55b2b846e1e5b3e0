package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// GenerationOutcome classifies the result of one alert-generation attempt.
// Suppressed duplicates and non-alert-worthy conditions are business
// outcomes, not errors.
type GenerationOutcome string

const (
	// OutcomeCreated means a new alert was persisted.
	OutcomeCreated GenerationOutcome = "created"
	// OutcomeNoAlertNeeded means the condition was judged non-alert-worthy.
	OutcomeNoAlertNeeded GenerationOutcome = "no_alert_needed"
	// OutcomeDuplicate means an unresolved alert of the same type exists
	// within the cooldown window (or the storage-level uniqueness check
	// rejected the insert).
	OutcomeDuplicate GenerationOutcome = "duplicate"
	// OutcomeSkippedBusy means another generation attempt holds the
	// processing guard for this machine.
	OutcomeSkippedBusy GenerationOutcome = "skipped_busy"
	// OutcomeFailed means the attempt hit a validation or persistence error.
	OutcomeFailed GenerationOutcome = "failed"
)

// GenerationResult is the outcome of Generator.Generate.
type GenerationResult struct {
	Outcome GenerationOutcome
	Alert   *types.Alert // Set only when Outcome is OutcomeCreated.
	Err     error        // Set only when Outcome is OutcomeFailed.
}

// AlertStore is the write contract the generator needs from the alert store.
type AlertStore interface {
	// Create persists a new alert; created=false signals the
	// storage-level uniqueness check suppressed it.
	Create(ctx context.Context, a *types.Alert) (created bool, err error)
}

// AlertEventPublisher fans out created alerts to downstream consumers.
// Delivery is best-effort; failures must not affect generation outcomes.
type AlertEventPublisher interface {
	PublishAlertCreated(ctx context.Context, a *types.Alert) error
}

// GeneratorMetrics records alert pipeline telemetry.
type GeneratorMetrics interface {
	RecordAlertOutcome(ctx context.Context, outcome GenerationOutcome)
}

// Generator orchestrates alert generation for one scored machine:
// decide (pure engine) -> duplicate window -> persist, the whole sequence
// wrapped in the per-machine processing guard so two concurrent invocations
// for the same machine cannot both pass the duplicate check before either
// has written.
type Generator struct {
	guard     *Guard
	window    *Window
	store     AlertStore
	publisher AlertEventPublisher // Optional.
	metrics   GeneratorMetrics    // Optional.

	windowSize time.Duration
	clock      types.Clock
	logger     *slog.Logger

	// detached tracks in-flight background generations so tests (and
	// shutdown) can await them deterministically via Flush.
	detached sync.WaitGroup
}

// GeneratorConfig holds the configuration for creating a Generator.
type GeneratorConfig struct {
	Guard      *Guard
	Window     *Window
	Store      AlertStore
	Publisher  AlertEventPublisher // Optional.
	Metrics    GeneratorMetrics    // Optional.
	WindowSize time.Duration       // Defaults to DefaultDuplicateWindow.
	Clock      types.Clock         // Defaults to the real clock.
	Logger     *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = DefaultDuplicateWindow
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		guard:      cfg.Guard,
		window:     cfg.Window,
		store:      cfg.Store,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		windowSize: windowSize,
		clock:      clock,
		logger:     logger,
	}
}

// Generate runs one alert-generation attempt for a scored reading. The
// guard is always released before return, on every path.
func (g *Generator) Generate(ctx context.Context, reading types.MachineReading, outcome types.PredictionOutcome) GenerationResult {
	machineID := reading.MachineID
	if machineID == "" {
		return g.record(ctx, GenerationResult{
			Outcome: OutcomeFailed,
			Err:     types.NewAppError(types.ErrCodeValidationMissingField, "reading has no machine identifier", nil),
		})
	}

	if !outcome.Success || outcome.Data == nil {
		return g.record(ctx, GenerationResult{
			Outcome: OutcomeFailed,
			Err: types.NewAppError(types.ErrCodeValidationMissingField,
				"prediction outcome carries no data to alert on", nil),
		})
	}

	if !g.guard.TryAcquire(machineID) {
		g.logger.InfoContext(ctx, "alert generation already in flight, skipping",
			"machine_id", machineID,
		)
		return g.record(ctx, GenerationResult{Outcome: OutcomeSkippedBusy})
	}
	defer g.guard.Release(machineID)

	return g.record(ctx, g.generateLocked(ctx, reading, outcome.Data))
}

// generateLocked runs the decide -> window -> persist sequence. The caller
// holds the processing guard.
func (g *Generator) generateLocked(ctx context.Context, reading types.MachineReading, pred *types.PredictionResult) GenerationResult {
	if !ShouldAlert(pred) {
		return GenerationResult{Outcome: OutcomeNoAlertNeeded}
	}

	alertType := ClassifyType(pred)

	if g.window.IsDuplicate(ctx, reading.MachineID, alertType, g.windowSize) {
		g.logger.InfoContext(ctx, "duplicate alert suppressed",
			"machine_id", reading.MachineID,
			"alert_type", string(alertType),
		)
		return GenerationResult{Outcome: OutcomeDuplicate}
	}

	alert := &types.Alert{
		MachineID: reading.MachineID,
		Type:      alertType,
		Severity:  MapSeverity(pred.Diagnostics.Severity),
		Message:   ComposeMessage(reading, pred),
		Data:      types.NewAlertPayload(reading, pred, g.clock.Now()),
	}

	created, err := g.store.Create(ctx, alert)
	if err != nil {
		return GenerationResult{
			Outcome: OutcomeFailed,
			Err:     fmt.Errorf("persisting alert for %s: %w", reading.MachineID, err),
		}
	}
	if !created {
		// Another writer (possibly another process) won the race; the
		// storage-level uniqueness check suppressed this insert.
		g.logger.InfoContext(ctx, "alert insert suppressed by uniqueness check",
			"machine_id", reading.MachineID,
			"alert_type", string(alertType),
		)
		return GenerationResult{Outcome: OutcomeDuplicate}
	}

	g.logger.InfoContext(ctx, "alert created",
		"alert_id", alert.ID,
		"machine_id", alert.MachineID,
		"alert_type", string(alert.Type),
		"severity", string(alert.Severity),
	)

	if g.publisher != nil {
		if err := g.publisher.PublishAlertCreated(ctx, alert); err != nil {
			// Best-effort fan-out only.
			g.logger.ErrorContext(ctx, "failed to publish alert event",
				"alert_id", alert.ID,
				"error", err,
			)
		}
	}

	return GenerationResult{Outcome: OutcomeCreated, Alert: alert}
}

// GenerateDetached submits a generation attempt to run in the background
// with its own error boundary: panics and failures are logged, never
// surfaced to the caller, and never delay the caller's response. The
// submitted work survives cancellation of the caller's request context.
// Tests and shutdown paths can await all in-flight submissions via Flush.
func (g *Generator) GenerateDetached(ctx context.Context, reading types.MachineReading, outcome types.PredictionOutcome) {
	bgCtx := context.WithoutCancel(ctx)

	g.detached.Add(1)
	go func() {
		defer g.detached.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("panic in detached alert generation",
					"machine_id", reading.MachineID,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()

		result := g.Generate(bgCtx, reading, outcome)
		if result.Outcome == OutcomeFailed {
			g.logger.Error("detached alert generation failed",
				"machine_id", reading.MachineID,
				"error", result.Err,
			)
		}
	}()
}

// Flush blocks until every detached generation submitted so far has
// completed.
func (g *Generator) Flush() {
	g.detached.Wait()
}

// record emits outcome metrics and returns the result unchanged.
func (g *Generator) record(ctx context.Context, res GenerationResult) GenerationResult {
	if g.metrics != nil {
		g.metrics.RecordAlertOutcome(ctx, res.Outcome)
	}
	return res
}
