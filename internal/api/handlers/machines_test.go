package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxdesanta/ac02-be-cron-job/internal/condition"
	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

type mockConditionService struct {
	view        *condition.View
	predictView *condition.PredictView
	err         error

	gotPage  int
	gotLimit int
	gotID    string
}

func (m *mockConditionService) MachinesCondition(_ context.Context, page, limit int) (*condition.View, error) {
	m.gotPage = page
	m.gotLimit = limit
	return m.view, m.err
}

func (m *mockConditionService) PredictMachine(_ context.Context, machineID string) (*condition.PredictView, error) {
	m.gotID = machineID
	return m.predictView, m.err
}

func newMachinesRouter(svc *mockConditionService) *chi.Mux {
	h := NewMachinesHandler(svc, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestMachinesCondition(t *testing.T) {
	svc := &mockConditionService{view: &condition.View{
		Machines: []types.MachineCondition{
			{MachineID: "M-1", Condition: types.Condition{Status: types.ConditionHealthy, Color: "green"}},
		},
		Pagination: types.NewPagination(2, 5, 12),
		Summary:    types.FleetSummary{TotalMachines: 12, ByStatus: types.StatusCounts{Healthy: 11, Failure: 1}},
	}}
	router := newMachinesRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/machines/condition?page=2&limit=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.gotPage)
	assert.Equal(t, 5, svc.gotLimit)

	var resp struct {
		Success    bool                     `json:"success"`
		Machines   []types.MachineCondition `json:"machines"`
		Pagination types.Pagination         `json:"pagination"`
		Summary    types.FleetSummary       `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Machines, 1)
	assert.Equal(t, types.ConditionHealthy, resp.Machines[0].Condition.Status)
	assert.Equal(t, 2, resp.Pagination.CurrentPage)
	assert.Equal(t, 12, resp.Summary.TotalMachines)
}

func TestMachinesCondition_QueryDefaults(t *testing.T) {
	svc := &mockConditionService{view: &condition.View{}}
	router := newMachinesRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/machines/condition?page=abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.gotPage)
	assert.Equal(t, condition.DefaultPageLimit, svc.gotLimit)
}

func TestMachinesCondition_EmptyFleet(t *testing.T) {
	svc := &mockConditionService{err: types.NewAppError(types.ErrCodeNotFoundMachine, "no machine data found", nil)}
	router := newMachinesRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/machines/condition", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no machine data found")
}

func TestPredictMachine(t *testing.T) {
	svc := &mockConditionService{predictView: &condition.PredictView{
		Machine: types.MachineReading{MachineID: "M14860", Type: types.MachineTypeMedium},
		Prediction: &types.PredictionResult{
			MachineID:  "M14860",
			Prediction: types.PredictionFailure,
			Confidence: 0.87,
		},
	}}
	router := newMachinesRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/machines/M14860/predict", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "M14860", svc.gotID)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Machine    types.MachineReading    `json:"machine_data"`
			Prediction *types.PredictionResult `json:"prediction"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data.Prediction)
	assert.Equal(t, types.PredictionFailure, resp.Data.Prediction.Prediction)
	assert.InDelta(t, 0.87, resp.Data.Prediction.Confidence, 1e-9)
}

func TestPredictMachine_UpstreamTimeout(t *testing.T) {
	svc := &mockConditionService{err: types.NewAppError(
		types.ErrCodeUpstreamMLTimeout,
		"prediction request timed out after 30 seconds",
		nil,
	)}
	router := newMachinesRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/machines/M14860/predict", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}
