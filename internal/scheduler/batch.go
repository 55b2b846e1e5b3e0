// Package scheduler implements the timer-driven batch prediction job: every
// tick it loads the latest reading per machine, fans out scoring calls to
// the ML service under a concurrency cap, upserts the stored predictions,
// and feeds the alert generator. Per-machine failures are logged and never
// abort the batch.
package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maxdesanta/ac02-be-cron-job/internal/alerting"
	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// DefaultInterval is the tick period of the batch scheduler.
const DefaultInterval = 5 * time.Minute

// DefaultConcurrency caps the simultaneous prediction calls per tick so a
// large fleet cannot overwhelm the ML service.
const DefaultConcurrency = 10

// MachineSource is the read contract the batch needs from the machine store.
type MachineSource interface {
	// LatestPerMachine returns the most recent reading for every machine,
	// one per machine identifier.
	LatestPerMachine(ctx context.Context) ([]types.MachineReading, error)
}

// Predictor scores one reading against the ML service.
type Predictor interface {
	Predict(ctx context.Context, reading types.MachineReading) types.PredictionOutcome
}

// PredictionStore upserts the latest prediction per machine.
type PredictionStore interface {
	Upsert(ctx context.Context, rec *types.PredictionRecord) (*types.PredictionRecord, error)
}

// AlertGenerator runs one alert-generation attempt for a scored reading.
type AlertGenerator interface {
	Generate(ctx context.Context, reading types.MachineReading, outcome types.PredictionOutcome) alerting.GenerationResult
}

// BatchMetrics records batch telemetry.
type BatchMetrics interface {
	RecordPrediction(ctx context.Context, success bool)
	RecordBatchDuration(ctx context.Context, d time.Duration)
}

// Results aggregates the per-machine outcomes of one batch tick.
type Results struct {
	Processed     int `json:"processed"`
	AlertsCreated int `json:"alerts_created"`
	Duplicates    int `json:"duplicates"`
	Skipped       int `json:"skipped"`
	Errors        int `json:"errors"`
}

// Batch is the prediction batch job. A single instance owns the interval
// timer; ticks that would overlap a still-running tick are skipped.
type Batch struct {
	machines    MachineSource
	predictor   Predictor
	store       PredictionStore
	generator   AlertGenerator
	metrics     BatchMetrics // Optional.
	interval    time.Duration
	maxInFlight int
	logger      *slog.Logger

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	startMu sync.Mutex
}

// BatchConfig holds the configuration for creating a Batch.
type BatchConfig struct {
	Machines    MachineSource
	Predictor   Predictor
	Store       PredictionStore
	Generator   AlertGenerator
	Metrics     BatchMetrics  // Optional.
	Interval    time.Duration // Defaults to DefaultInterval.
	Concurrency int           // Defaults to DefaultConcurrency.
	Logger      *slog.Logger
}

// NewBatch creates a Batch.
func NewBatch(cfg BatchConfig) *Batch {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{
		machines:    cfg.Machines,
		predictor:   cfg.Predictor,
		store:       cfg.Store,
		generator:   cfg.Generator,
		metrics:     cfg.Metrics,
		interval:    interval,
		maxInFlight: concurrency,
		logger:      logger,
	}
}

// Run executes one batch tick: load the latest reading per machine, then
// score every machine concurrently under the configured cap. Each
// per-machine pipeline settles independently; one failure never aborts the
// others. Run returns after all pipelines have settled.
//
// Run refuses to overlap itself: a call that arrives while a previous tick
// is still in flight returns immediately with skipped=true.
func (b *Batch) Run(ctx context.Context) (Results, bool) {
	if !b.running.CompareAndSwap(false, true) {
		b.logger.WarnContext(ctx, "previous batch tick still running, skipping")
		return Results{}, true
	}
	defer b.running.Store(false)

	batchID := uuid.New().String()
	started := time.Now()
	logger := b.logger.With("batch_id", batchID)

	logger.InfoContext(ctx, "prediction batch starting")

	readings, err := b.machines.LatestPerMachine(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load machine readings", "error", err)
		return Results{Errors: 1}, false
	}
	if len(readings) == 0 {
		logger.InfoContext(ctx, "no machines to process")
		return Results{}, false
	}

	var mu sync.Mutex
	var results Results

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxInFlight)

	for _, reading := range readings {
		reading := reading
		g.Go(func() error {
			outcome := b.processMachine(gCtx, logger, reading)
			mu.Lock()
			results.Processed++
			switch outcome {
			case machineAlertCreated:
				results.AlertsCreated++
			case machineDuplicate:
				results.Duplicates++
			case machineSkipped:
				results.Skipped++
			case machineErrored:
				results.Errors++
			}
			mu.Unlock()
			// Errors are isolated per machine; never propagate into the
			// group, so sibling pipelines keep running.
			return nil
		})
	}

	_ = g.Wait()

	duration := time.Since(started)
	if b.metrics != nil {
		b.metrics.RecordBatchDuration(ctx, duration)
	}

	logger.InfoContext(ctx, "prediction batch finished",
		"duration", duration,
		"processed", results.Processed,
		"alerts_created", results.AlertsCreated,
		"duplicates", results.Duplicates,
		"skipped", results.Skipped,
		"errors", results.Errors,
	)

	return results, false
}

// machineOutcome classifies one per-machine pipeline result inside a tick.
type machineOutcome int

const (
	machineOK machineOutcome = iota
	machineAlertCreated
	machineDuplicate
	machineSkipped
	machineErrored
)

// processMachine runs the score -> upsert -> generate pipeline for one
// machine. Steps within the pipeline are strictly sequential.
func (b *Batch) processMachine(ctx context.Context, logger *slog.Logger, reading types.MachineReading) machineOutcome {
	outcome := b.predictor.Predict(ctx, reading)
	if b.metrics != nil {
		b.metrics.RecordPrediction(ctx, outcome.Success)
	}
	if !outcome.Success {
		logger.ErrorContext(ctx, "prediction failed",
			"machine_id", reading.MachineID,
			"status", outcome.StatusCode,
			"error", outcome.Error,
		)
		return machineErrored
	}

	pred := outcome.Data
	record := &types.PredictionRecord{
		MachineID:     reading.MachineID,
		Timestamp:     pred.Timestamp,
		Prediction:    types.PredictionLabel(strings.ToUpper(string(pred.Prediction))),
		Confidence:    pred.Confidence,
		Severity:      types.MLSeverity(strings.ToUpper(string(pred.Diagnostics.Severity))),
		OverallHealth: pred.OverallHealth,
		Diagnostics:   pred.Diagnostics,
		Anomalies:     types.AnomalyList(pred.Anomalies),
		Features:      types.JSONMap(pred.Features),
	}

	if _, err := b.store.Upsert(ctx, record); err != nil {
		logger.ErrorContext(ctx, "failed to upsert prediction",
			"machine_id", reading.MachineID,
			"error", err,
		)
		return machineErrored
	}

	res := b.generator.Generate(ctx, reading, outcome)
	switch res.Outcome {
	case alerting.OutcomeCreated:
		return machineAlertCreated
	case alerting.OutcomeDuplicate:
		return machineDuplicate
	case alerting.OutcomeNoAlertNeeded, alerting.OutcomeSkippedBusy:
		return machineSkipped
	case alerting.OutcomeFailed:
		logger.ErrorContext(ctx, "alert generation failed",
			"machine_id", reading.MachineID,
			"error", res.Err,
		)
		return machineErrored
	default:
		return machineOK
	}
}

// Start launches the scheduler loop: one immediate run, then one run per
// interval tick. Calling Start twice without Stop is a no-op.
func (b *Batch) Start(ctx context.Context) {
	b.startMu.Lock()
	defer b.startMu.Unlock()
	if b.stop != nil {
		return
	}
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.loop(ctx, b.stop, b.done)
}

// Stop halts the scheduler loop and waits for it to exit. A tick already
// in flight finishes; no new tick starts.
func (b *Batch) Stop() {
	b.startMu.Lock()
	stop, done := b.stop, b.done
	b.stop, b.done = nil, nil
	b.startMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (b *Batch) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// Immediate run at startup, then steady ticks.
	b.Run(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Run(ctx)
		}
	}
}
