// Package condition serves on-demand machine condition views for the
// dashboard: a paginated page of scored machines plus a fleet-wide summary.
// Scoring a machine on either pass also submits a detached alert-generation
// attempt, so browsing the dashboard keeps the alert table fresh without
// waiting for the interval batch.
package condition

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// DefaultPageLimit is the page size when the caller does not specify one.
const DefaultPageLimit = 10

// DefaultConcurrency caps simultaneous scoring calls per request.
const DefaultConcurrency = 10

// MachineSource is the read contract the service needs from the machine
// store.
type MachineSource interface {
	LatestPerMachine(ctx context.Context) ([]types.MachineReading, error)
	FindByID(ctx context.Context, id string) (*types.MachineReading, error)
}

// Predictor scores one reading against the ML service.
type Predictor interface {
	Predict(ctx context.Context, reading types.MachineReading) types.PredictionOutcome
}

// AlertSubmitter accepts fire-and-forget alert-generation work. Outcomes
// never gate or delay the condition response.
type AlertSubmitter interface {
	GenerateDetached(ctx context.Context, reading types.MachineReading, outcome types.PredictionOutcome)
}

// View is the full response of a condition query: one scored page, the
// pagination envelope, and the fleet summary computed over every machine.
type View struct {
	Machines   []types.MachineCondition `json:"machines"`
	Pagination types.Pagination         `json:"pagination"`
	Summary    types.FleetSummary       `json:"summary"`
}

// PredictView is the response of a single-machine on-demand prediction.
type PredictView struct {
	Machine    types.MachineReading    `json:"machine_data"`
	Prediction *types.PredictionResult `json:"prediction"`
}

// Service is the on-demand condition orchestrator.
type Service struct {
	machines    MachineSource
	predictor   Predictor
	alerts      AlertSubmitter
	maxInFlight int
	logger      *slog.Logger
}

// ServiceConfig holds the configuration for creating a Service.
type ServiceConfig struct {
	Machines    MachineSource
	Predictor   Predictor
	Alerts      AlertSubmitter
	Concurrency int // Defaults to DefaultConcurrency.
	Logger      *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		machines:    cfg.Machines,
		predictor:   cfg.Predictor,
		alerts:      cfg.Alerts,
		maxInFlight: concurrency,
		logger:      logger,
	}
}

// MachinesCondition scores the requested page of machines and, separately,
// every machine in the fleet for the summary block. Both passes run under
// the concurrency cap and both submit detached alert generation per scored
// machine; the processing guard absorbs the overlap between them. A machine
// whose scoring fails degrades to an ERROR/UNKNOWN condition instead of
// failing the response.
func (s *Service) MachinesCondition(ctx context.Context, page, limit int) (*View, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}

	readings, err := s.machines.LatestPerMachine(ctx)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, types.NewAppError(types.ErrCodeNotFoundMachine, "no machine data found", nil)
	}

	pagination := types.NewPagination(page, limit, len(readings))

	start := (page - 1) * limit
	if start > len(readings) {
		start = len(readings)
	}
	end := start + limit
	if end > len(readings) {
		end = len(readings)
	}
	pageReadings := readings[start:end]

	machines := s.scorePage(ctx, pageReadings)
	summary := s.scoreFleet(ctx, readings)

	return &View{
		Machines:   machines,
		Pagination: pagination,
		Summary:    summary,
	}, nil
}

// scorePage scores one page of readings concurrently, preserving input
// order in the result slice.
func (s *Service) scorePage(ctx context.Context, readings []types.MachineReading) []types.MachineCondition {
	machines := make([]types.MachineCondition, len(readings))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxInFlight)

	for i, reading := range readings {
		i, reading := i, reading
		g.Go(func() error {
			outcome := s.predictor.Predict(gCtx, reading)
			machines[i] = toMachineCondition(reading, outcome)
			if outcome.Success {
				s.alerts.GenerateDetached(gCtx, reading, outcome)
			} else {
				s.logger.WarnContext(gCtx, "prediction failed for condition page",
					"machine_id", reading.MachineID,
					"status", outcome.StatusCode,
					"error", outcome.Error,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return machines
}

// scoreFleet scores every reading to build the summary counts. Failures
// count as ERROR and contribute zero confidence.
func (s *Service) scoreFleet(ctx context.Context, readings []types.MachineReading) types.FleetSummary {
	summary := types.FleetSummary{TotalMachines: len(readings)}

	var mu sync.Mutex
	var confidenceSum float64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxInFlight)

	for _, reading := range readings {
		reading := reading
		g.Go(func() error {
			outcome := s.predictor.Predict(gCtx, reading)

			status := types.ConditionError
			severity := ""
			confidence := 0.0
			if outcome.Success {
				s.alerts.GenerateDetached(gCtx, reading, outcome)
				status = types.ConditionStatus(outcome.Data.Prediction)
				severity = string(outcome.Data.Diagnostics.Severity)
				confidence = outcome.Data.Confidence
			}

			mu.Lock()
			defer mu.Unlock()
			confidenceSum += confidence
			switch status {
			case types.ConditionHealthy:
				summary.ByStatus.Healthy++
			case types.ConditionFailure:
				summary.ByStatus.Failure++
			default:
				summary.ByStatus.Error++
			}
			switch types.MLSeverity(severity) {
			case types.MLSeverityCritical:
				summary.BySeverity.Critical++
			case types.MLSeverityHigh:
				summary.BySeverity.High++
			case types.MLSeverityMedium:
				summary.BySeverity.Medium++
			case types.MLSeverityLow:
				summary.BySeverity.Low++
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(readings) > 0 {
		summary.AverageConfidence = confidenceSum / float64(len(readings))
	}
	return summary
}

// PredictMachine scores a single machine synchronously and returns the raw
// prediction alongside the reading it was scored from. A scoring failure is
// surfaced to the caller rather than degraded, since the caller asked for
// this machine specifically.
func (s *Service) PredictMachine(ctx context.Context, machineID string) (*PredictView, error) {
	reading, err := s.machines.FindByID(ctx, machineID)
	if err != nil {
		return nil, err
	}

	outcome := s.predictor.Predict(ctx, *reading)
	if !outcome.Success {
		code := types.ErrCodeUpstreamML
		if outcome.IsTimeout() {
			code = types.ErrCodeUpstreamMLTimeout
		}
		return nil, types.NewAppError(code, outcome.Error, nil)
	}

	s.alerts.GenerateDetached(ctx, *reading, outcome)

	return &PredictView{
		Machine:    *reading,
		Prediction: outcome.Data,
	}, nil
}

// toMachineCondition flattens a reading plus its scoring outcome into the
// dashboard item shape.
func toMachineCondition(reading types.MachineReading, outcome types.PredictionOutcome) types.MachineCondition {
	cond := types.Condition{
		Status:     types.ConditionUnknown,
		Color:      "gray",
		Severity:   "UNKNOWN",
		Confidence: 0,
	}
	if outcome.Success {
		pred := outcome.Data
		color := "red"
		if pred.Prediction == types.PredictionHealthy {
			color = "green"
		}
		cond = types.Condition{
			Status:        types.ConditionStatus(pred.Prediction),
			Color:         color,
			Severity:      string(pred.Diagnostics.Severity),
			Confidence:    pred.Confidence,
			OverallHealth: pred.OverallHealth,
		}
	} else {
		cond.Status = types.ConditionError
		cond.Color = "orange"
		cond.Error = outcome.Error
	}

	return types.MachineCondition{
		ID:                 reading.ID,
		MachineID:          reading.MachineID,
		Type:               reading.Type,
		AirTemperature:     reading.AirTemperature,
		ProcessTemperature: reading.ProcessTemperature,
		RotationalSpeed:    reading.RotationalSpeed,
		Torque:             reading.Torque,
		ToolWear:           reading.ToolWear,
		Timestamp:          reading.ObservedAt,
		Condition:          cond,
		Target:             reading.Target,
		FailureType:        reading.FailureType,
	}
}
