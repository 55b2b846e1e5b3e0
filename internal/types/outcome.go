package types

import (
	"net/http"
)

// PredictionOutcome is the discriminated result of one scoring call. All
// failure modes of the prediction client -- timeout, unreachable service,
// remote rejection, malformed input -- are represented as data here and
// never escape the client as errors.
type PredictionOutcome struct {
	Success    bool              `json:"success"`
	Data       *PredictionResult `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
	StatusCode int               `json:"status,omitempty"`
}

// PredictionSucceeded wraps a successful scoring result.
func PredictionSucceeded(data *PredictionResult) PredictionOutcome {
	return PredictionOutcome{Success: true, Data: data}
}

// PredictionFailed builds a failure outcome with the given error text and
// status code.
func PredictionFailed(msg string, status int) PredictionOutcome {
	return PredictionOutcome{Success: false, Error: msg, StatusCode: status}
}

// IsTimeout reports whether the outcome represents a scoring call that
// exceeded its time budget, as distinct from an unreachable service or a
// remote rejection.
func (o PredictionOutcome) IsTimeout() bool {
	return !o.Success && o.StatusCode == http.StatusRequestTimeout
}
