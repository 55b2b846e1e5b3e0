package types

import (
	"time"
)

// AlertType is the enumerated category of an ML-derived alert.
type AlertType string

const (
	AlertFailurePredicted   AlertType = "ML_FAILURE_PREDICTED"
	AlertToolWearWarning    AlertType = "ML_TOOL_WEAR_WARNING"
	AlertPowerAnomaly       AlertType = "ML_POWER_ANOMALY"
	AlertThermalWarning     AlertType = "ML_THERMAL_WARNING"
	AlertSensorAnomaly      AlertType = "ML_SENSOR_ANOMALY"
	AlertMaintenanceWarning AlertType = "ML_MAINTENANCE_WARNING"
)

// AlertSeverity is the lower-cased alert severity, mirrored from the ML
// diagnostics severity at alert creation time.
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityLow      AlertSeverity = "low"
)

// Alert is a persisted, user-facing notification derived from a prediction
// judged alert-worthy. Alerts are append-mostly: the only mutation is
// resolution, which sets the resolved flag and resolver identity/time once
// and never reverts them.
type Alert struct {
	ID         int64         `json:"id"`
	MachineID  string        `json:"machine_id"`
	Type       AlertType     `json:"type"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	Data       AlertPayload  `json:"data"`
	Resolved   bool          `json:"resolved"`
	ResolvedAt time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy string        `json:"resolved_by,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AlertPayload is the structured JSONB snapshot stored alongside an alert:
// the prediction that triggered it, the sensor values at the time, and
// provenance flags marking it as auto-generated.
type AlertPayload struct {
	MLPrediction  AlertPredictionSnapshot `json:"ml_prediction"`
	Diagnostics   Diagnostics             `json:"diagnostics"`
	Anomalies     []SensorAnomaly         `json:"anomalies"`
	MachineData   AlertMachineSnapshot    `json:"machine_data"`
	Timestamp     time.Time               `json:"timestamp"`
	AlertSource   string                  `json:"alert_source"`
	AutoGenerated bool                    `json:"auto_generated"`
}

// AlertSourceMLPrediction marks alerts produced by the ML pipeline, as
// opposed to operator-raised ones.
const AlertSourceMLPrediction = "ML_PREDICTION"

// AlertPredictionSnapshot captures the prediction verdict inside an alert payload.
type AlertPredictionSnapshot struct {
	Prediction    PredictionLabel `json:"prediction"`
	Confidence    float64         `json:"confidence"`
	OverallHealth string          `json:"overall_health"`
}

// AlertMachineSnapshot captures the machine identity and sensor values at
// alert creation time.
type AlertMachineSnapshot struct {
	MachineID    string       `json:"machine_id"`
	Type         MachineType  `json:"type"`
	SensorValues SensorValues `json:"sensor_values"`
}

// SensorValues is the five-field sensor snapshot embedded in alert payloads.
type SensorValues struct {
	AirTemperature     float64 `json:"air_temperature"`
	ProcessTemperature float64 `json:"process_temperature"`
	RotationalSpeed    int     `json:"rotational_speed"`
	Torque             float64 `json:"torque"`
	ToolWear           int     `json:"tool_wear"`
}

// AlertSummary is the trimmed list item for dashboard alert feeds: the
// message is truncated to 150 characters by the repository query.
type AlertSummary struct {
	ID             int64         `json:"id"`
	MachineID      string        `json:"machine_id"`
	Type           AlertType     `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	MessagePreview string        `json:"message_preview"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewAlertPayload assembles the stored payload snapshot from a reading and
// its prediction result.
func NewAlertPayload(reading MachineReading, pred *PredictionResult, now time.Time) AlertPayload {
	return AlertPayload{
		MLPrediction: AlertPredictionSnapshot{
			Prediction:    pred.Prediction,
			Confidence:    pred.Confidence,
			OverallHealth: pred.OverallHealth,
		},
		Diagnostics: pred.Diagnostics,
		Anomalies:   pred.Anomalies,
		MachineData: AlertMachineSnapshot{
			MachineID: reading.MachineID,
			Type:      reading.Type,
			SensorValues: SensorValues{
				AirTemperature:     reading.AirTemperature,
				ProcessTemperature: reading.ProcessTemperature,
				RotationalSpeed:    reading.RotationalSpeed,
				Torque:             reading.Torque,
				ToolWear:           reading.ToolWear,
			},
		},
		Timestamp:     now,
		AlertSource:   AlertSourceMLPrediction,
		AutoGenerated: true,
	}
}
