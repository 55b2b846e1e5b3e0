package condition

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

type mockMachineSource struct {
	readings []types.MachineReading
	byID     map[string]*types.MachineReading
	err      error
}

func (m *mockMachineSource) LatestPerMachine(context.Context) ([]types.MachineReading, error) {
	return m.readings, m.err
}

func (m *mockMachineSource) FindByID(_ context.Context, id string) (*types.MachineReading, error) {
	if r, ok := m.byID[id]; ok {
		return r, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundMachine, "machine not found", nil)
}

type mockPredictor struct {
	mu       sync.Mutex
	outcomes map[string]types.PredictionOutcome
	calls    map[string]int
}

func (m *mockPredictor) Predict(_ context.Context, reading types.MachineReading) types.PredictionOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[reading.MachineID]++
	if outcome, ok := m.outcomes[reading.MachineID]; ok {
		return outcome
	}
	return healthyOutcome(0.9)
}

type mockSubmitter struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockSubmitter) GenerateDetached(_ context.Context, reading types.MachineReading, _ types.PredictionOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, reading.MachineID)
}

func (m *mockSubmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func healthyOutcome(confidence float64) types.PredictionOutcome {
	return types.PredictionSucceeded(&types.PredictionResult{
		Prediction:    types.PredictionHealthy,
		Confidence:    confidence,
		Diagnostics:   types.Diagnostics{Severity: types.MLSeverityLow},
		OverallHealth: "good",
	})
}

func failureOutcome(confidence float64) types.PredictionOutcome {
	return types.PredictionSucceeded(&types.PredictionResult{
		Prediction:  types.PredictionFailure,
		Confidence:  confidence,
		Diagnostics: types.Diagnostics{Severity: types.MLSeverityCritical},
	})
}

func fleet(ids ...string) []types.MachineReading {
	out := make([]types.MachineReading, len(ids))
	for i, id := range ids {
		out[i] = types.MachineReading{ID: int64(i + 1), MachineID: id}
	}
	return out
}

func newTestService(machines *mockMachineSource, predictor *mockPredictor, alerts *mockSubmitter) *Service {
	return NewService(ServiceConfig{
		Machines:  machines,
		Predictor: predictor,
		Alerts:    alerts,
	})
}

func TestMachinesCondition_PageAndSummary(t *testing.T) {
	machines := &mockMachineSource{readings: fleet("M-1", "M-2", "M-3", "M-4", "M-5")}
	predictor := &mockPredictor{outcomes: map[string]types.PredictionOutcome{
		"M-2": failureOutcome(0.9),
		"M-4": types.PredictionFailed("prediction service is unreachable", 503),
	}}
	alerts := &mockSubmitter{}
	svc := newTestService(machines, predictor, alerts)

	view, err := svc.MachinesCondition(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("MachinesCondition returned error: %v", err)
	}

	if len(view.Machines) != 2 {
		t.Fatalf("page size = %d, want 2", len(view.Machines))
	}
	if view.Machines[0].MachineID != "M-1" || view.Machines[1].MachineID != "M-2" {
		t.Errorf("page order wrong: %q, %q", view.Machines[0].MachineID, view.Machines[1].MachineID)
	}
	if view.Machines[0].Condition.Status != types.ConditionHealthy || view.Machines[0].Condition.Color != "green" {
		t.Errorf("M-1 condition = %+v", view.Machines[0].Condition)
	}
	if view.Machines[1].Condition.Status != types.ConditionFailure || view.Machines[1].Condition.Color != "red" {
		t.Errorf("M-2 condition = %+v", view.Machines[1].Condition)
	}

	if view.Pagination.CurrentPage != 1 || view.Pagination.TotalPages != 3 || view.Pagination.TotalRecords != 5 {
		t.Errorf("pagination = %+v", view.Pagination)
	}
	if !view.Pagination.HasNext || view.Pagination.HasPrev {
		t.Errorf("pagination flags = %+v", view.Pagination)
	}

	// Summary scores the whole fleet, not just the page.
	if view.Summary.TotalMachines != 5 {
		t.Errorf("summary total = %d, want 5", view.Summary.TotalMachines)
	}
	if view.Summary.ByStatus.Healthy != 3 || view.Summary.ByStatus.Failure != 1 || view.Summary.ByStatus.Error != 1 {
		t.Errorf("summary by status = %+v", view.Summary.ByStatus)
	}
	if view.Summary.BySeverity.Critical != 1 || view.Summary.BySeverity.Low != 3 {
		t.Errorf("summary by severity = %+v", view.Summary.BySeverity)
	}

	// Every successful scoring submits detached generation: 2 from the
	// page pass plus 4 from the fleet pass, where M-4's scoring fails.
	if got := alerts.count(); got != 6 {
		t.Errorf("detached submissions = %d, want 6", got)
	}
}

func TestMachinesCondition_FailedScoringDegrades(t *testing.T) {
	machines := &mockMachineSource{readings: fleet("M-1")}
	predictor := &mockPredictor{outcomes: map[string]types.PredictionOutcome{
		"M-1": types.PredictionFailed("request timeout - prediction service took too long to respond", 408),
	}}
	svc := newTestService(machines, predictor, &mockSubmitter{})

	view, err := svc.MachinesCondition(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("MachinesCondition returned error: %v", err)
	}

	cond := view.Machines[0].Condition
	if cond.Status != types.ConditionError || cond.Color != "orange" {
		t.Errorf("degraded condition = %+v", cond)
	}
	if cond.Error == "" {
		t.Error("degraded condition should carry the error text")
	}
	if cond.Confidence != 0 {
		t.Errorf("degraded confidence = %v, want 0", cond.Confidence)
	}
}

func TestMachinesCondition_NoMachines(t *testing.T) {
	svc := newTestService(&mockMachineSource{}, &mockPredictor{}, &mockSubmitter{})

	_, err := svc.MachinesCondition(context.Background(), 1, 10)
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundMachine {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestMachinesCondition_PageBeyondEnd(t *testing.T) {
	machines := &mockMachineSource{readings: fleet("M-1", "M-2")}
	svc := newTestService(machines, &mockPredictor{}, &mockSubmitter{})

	view, err := svc.MachinesCondition(context.Background(), 9, 10)
	if err != nil {
		t.Fatalf("MachinesCondition returned error: %v", err)
	}
	if len(view.Machines) != 0 {
		t.Errorf("expected empty page, got %d items", len(view.Machines))
	}
	if view.Summary.TotalMachines != 2 {
		t.Errorf("summary still covers the fleet, got %d", view.Summary.TotalMachines)
	}
}

func TestMachinesCondition_AverageConfidence(t *testing.T) {
	machines := &mockMachineSource{readings: fleet("M-1", "M-2")}
	predictor := &mockPredictor{outcomes: map[string]types.PredictionOutcome{
		"M-1": healthyOutcome(0.8),
		"M-2": healthyOutcome(0.6),
	}}
	svc := newTestService(machines, predictor, &mockSubmitter{})

	view, err := svc.MachinesCondition(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("MachinesCondition returned error: %v", err)
	}
	if got := view.Summary.AverageConfidence; got < 0.699 || got > 0.701 {
		t.Errorf("average confidence = %v, want 0.7", got)
	}
}

func TestPredictMachine(t *testing.T) {
	reading := types.MachineReading{ID: 1, MachineID: "M-1"}
	machines := &mockMachineSource{byID: map[string]*types.MachineReading{"M-1": &reading}}
	predictor := &mockPredictor{outcomes: map[string]types.PredictionOutcome{
		"M-1": failureOutcome(0.9),
	}}
	alerts := &mockSubmitter{}
	svc := newTestService(machines, predictor, alerts)

	view, err := svc.PredictMachine(context.Background(), "M-1")
	if err != nil {
		t.Fatalf("PredictMachine returned error: %v", err)
	}
	if view.Prediction.Prediction != types.PredictionFailure {
		t.Errorf("prediction = %q", view.Prediction.Prediction)
	}
	if alerts.count() != 1 {
		t.Errorf("detached submissions = %d, want 1", alerts.count())
	}
}

func TestPredictMachine_NotFound(t *testing.T) {
	svc := newTestService(&mockMachineSource{}, &mockPredictor{}, &mockSubmitter{})

	_, err := svc.PredictMachine(context.Background(), "NOPE")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundMachine {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestPredictMachine_TimeoutSurfacesGatewayTimeout(t *testing.T) {
	reading := types.MachineReading{ID: 1, MachineID: "M-1"}
	machines := &mockMachineSource{byID: map[string]*types.MachineReading{"M-1": &reading}}
	predictor := &mockPredictor{outcomes: map[string]types.PredictionOutcome{
		"M-1": types.PredictionFailed("request timeout - prediction service took too long to respond", 408),
	}}
	svc := newTestService(machines, predictor, &mockSubmitter{})

	_, err := svc.PredictMachine(context.Background(), "M-1")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamMLTimeout {
		t.Fatalf("expected ML timeout error, got %v", err)
	}
}
