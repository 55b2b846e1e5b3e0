package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// predictTimeout is the hard budget for one scoring call. A call that
// exceeds it is abandoned, not retried.
const predictTimeout = 30 * time.Second

// MLClientConfig holds the configuration for creating an MLClient.
type MLClientConfig struct {
	BaseURL string
	Timeout time.Duration // Defaults to predictTimeout.
	Logger  *slog.Logger
}

// predictRequest is the JSON payload sent to the prediction service.
type predictRequest struct {
	MachineID          string  `json:"machine_id"`
	AirTemperature     float64 `json:"air_temperature"`
	ProcessTemperature float64 `json:"process_temperature"`
	RotationalSpeed    int     `json:"rotational_speed"`
	Torque             float64 `json:"torque"`
	ToolWear           int     `json:"tool_wear"`
	Type               string  `json:"type"`
}

// predictErrorBody is the structured error body returned by the service on
// non-2xx responses.
type predictErrorBody struct {
	Detail string `json:"detail"`
}

// MLClient scores machine readings against the external prediction service.
// Every failure mode is normalized into a PredictionOutcome value; Predict
// never returns an error to the caller. The client performs no retries --
// retry policy, if any, belongs to the caller.
type MLClient struct {
	base    *BaseClient
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMLClient creates an MLClient routed through a BaseClient with retries
// disabled. The http.Client transport is shared; per-call deadlines come
// from the context created inside Predict.
func NewMLClient(httpClient *http.Client, cfg MLClientConfig) *MLClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = predictTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"ml-prediction",
		RetryPolicy{MaxRetries: 0},
		"MachinePredictor/1.0",
	)

	return &MLClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// NewMLClientWithBase creates an MLClient with a pre-configured BaseClient.
// Used by tests that need to control breaker or retry behavior.
func NewMLClientWithBase(base *BaseClient, cfg MLClientConfig) *MLClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = predictTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MLClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Predict sends one machine's reading to the prediction service and
// normalizes the result. The outcome distinguishes:
//   - timeout (status 408) -- the call exceeded its budget,
//   - unreachable (status 503) -- connection, DNS, or open-breaker failure,
//   - remote rejection -- a non-2xx response with its status preserved,
//   - validation failure -- a reading with no machine identifier (no call
//     is made).
func (c *MLClient) Predict(ctx context.Context, reading types.MachineReading) types.PredictionOutcome {
	if reading.MachineID == "" {
		return types.PredictionFailed("missing machine_id in payload", http.StatusBadRequest)
	}

	payload := predictRequest{
		MachineID:          reading.MachineID,
		AirTemperature:     reading.AirTemperature,
		ProcessTemperature: reading.ProcessTemperature,
		RotationalSpeed:    reading.RotationalSpeed,
		Torque:             reading.Torque,
		ToolWear:           reading.ToolWear,
		Type:               string(reading.Type),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.PredictionFailed("failed to serialize prediction payload", http.StatusInternalServerError)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return types.PredictionFailed("failed to create prediction request", http.StatusInternalServerError)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return c.classifyFailure(ctx, reading.MachineID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.rejection(ctx, reading.MachineID, resp)
	}

	var result types.PredictionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode prediction response",
			"machine_id", reading.MachineID,
			"error", err,
		)
		return types.PredictionFailed("malformed prediction response", http.StatusBadGateway)
	}

	if result.MachineID == "" {
		result.MachineID = reading.MachineID
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	return types.PredictionSucceeded(&result)
}

// rejection converts a non-2xx response into a failure outcome, preferring
// the structured "detail" field of the error body when present.
func (c *MLClient) rejection(ctx context.Context, machineID string, resp *http.Response) types.PredictionOutcome {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := "HTTP Error: " + http.StatusText(resp.StatusCode)
	var errBody predictErrorBody
	if err := json.Unmarshal(raw, &errBody); err == nil && errBody.Detail != "" {
		msg = errBody.Detail
	}

	c.logger.ErrorContext(ctx, "prediction service rejected request",
		"machine_id", machineID,
		"status_code", resp.StatusCode,
		"detail", msg,
	)

	return types.PredictionFailed(msg, resp.StatusCode)
}

// classifyFailure maps a transport-level error into the timeout/unreachable
// taxonomy.
func (c *MLClient) classifyFailure(ctx context.Context, machineID string, err error) types.PredictionOutcome {
	c.logger.ErrorContext(ctx, "prediction call failed",
		"machine_id", machineID,
		"error", err,
	)

	if isTimeoutErr(err) {
		return types.PredictionFailed(
			"request timeout - prediction service took too long to respond",
			http.StatusRequestTimeout,
		)
	}

	// A mapped 5xx carries the upstream status in the error details.
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		if status, ok := appErr.Details["status"].(int); ok {
			return types.PredictionFailed(appErr.Message, status)
		}
	}

	return types.PredictionFailed("prediction service is unreachable", http.StatusServiceUnavailable)
}

// isTimeoutErr reports whether err (anywhere in its chain) represents an
// exceeded deadline rather than a connection failure.
func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
