// Package alerting converts ML prediction results into persisted,
// de-duplicated alerts. The decision rules live in a pure engine with no
// I/O; orchestration (duplicate window, processing guard, persistence) is
// layered on top by the Generator.
package alerting

import (
	"fmt"
	"math"
	"strings"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// lowConfidenceThreshold is the confidence below which a HEALTHY verdict is
// itself treated as anomalous and alert-worthy.
const lowConfidenceThreshold = 0.7

// ShouldAlert reports whether a prediction warrants an alert:
// a FAILURE verdict, a CRITICAL or HIGH diagnostic severity, or a HEALTHY
// verdict the model is not confident about.
func ShouldAlert(pred *types.PredictionResult) bool {
	if pred.Prediction == types.PredictionFailure {
		return true
	}

	switch pred.Diagnostics.Severity {
	case types.MLSeverityCritical, types.MLSeverityHigh:
		return true
	}

	if pred.Prediction == types.PredictionHealthy && pred.Confidence < lowConfidenceThreshold {
		return true
	}

	return false
}

// ClassifyType maps a prediction to an alert category. Rules are evaluated
// in a fixed order and the first match wins:
//
//  1. FAILURE verdict
//  2. primary cause mentions "tool"
//  3. primary cause mentions "power" or "overstrain"
//  4. primary cause mentions "heat" or "temperature"
//  5. any sensor anomaly present
//  6. generic maintenance warning
func ClassifyType(pred *types.PredictionResult) types.AlertType {
	if pred.Prediction == types.PredictionFailure {
		return types.AlertFailurePredicted
	}

	cause := strings.ToLower(pred.Diagnostics.PrimaryCause)

	if strings.Contains(cause, "tool") {
		return types.AlertToolWearWarning
	}
	if strings.Contains(cause, "power") || strings.Contains(cause, "overstrain") {
		return types.AlertPowerAnomaly
	}
	if strings.Contains(cause, "heat") || strings.Contains(cause, "temperature") {
		return types.AlertThermalWarning
	}

	if len(pred.Anomalies) > 0 {
		return types.AlertSensorAnomaly
	}

	return types.AlertMaintenanceWarning
}

// MapSeverity converts the ML diagnostic severity to the alert severity.
// Unknown values map to medium as a safe default.
func MapSeverity(s types.MLSeverity) types.AlertSeverity {
	switch s {
	case types.MLSeverityCritical:
		return types.AlertSeverityCritical
	case types.MLSeverityHigh:
		return types.AlertSeverityHigh
	case types.MLSeverityMedium:
		return types.AlertSeverityMedium
	case types.MLSeverityLow:
		return types.AlertSeverityLow
	default:
		return types.AlertSeverityMedium
	}
}

// ComposeMessage renders the deterministic alert text: machine id and
// primary cause, the verdict with a rounded confidence percentage, the
// diagnostic status and recommendation, and one line per sensor anomaly.
func ComposeMessage(reading types.MachineReading, pred *types.PredictionResult) string {
	confidence := int(math.Round(pred.Confidence * 100))
	d := pred.Diagnostics

	var b strings.Builder
	fmt.Fprintf(&b, "[ML ALERT] %s: %s\n", reading.MachineID, d.PrimaryCause)
	fmt.Fprintf(&b, "Prediction: %s (%d%% confidence)\n", pred.Prediction, confidence)
	fmt.Fprintf(&b, "Status: %s\n", d.Severity)
	fmt.Fprintf(&b, "Sensor Alert: %s\n", d.SensorAlert)
	fmt.Fprintf(&b, "Recommendation: %s", d.RecommendedAction)

	if len(pred.Anomalies) > 0 {
		b.WriteString("\n\nAnomalies detected:")
		for _, a := range pred.Anomalies {
			fmt.Fprintf(&b, "\n- %s: %v (%s) - %s", a.Parameter, a.Value, a.Status, a.Explanation)
		}
	}

	return b.String()
}
