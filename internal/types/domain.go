// Package types defines the canonical domain model for the predictive
// maintenance platform: machine sensor readings, ML prediction results,
// persisted prediction records, and alerts. It carries no dependencies
// beyond the standard library because every other package imports it.
package types

import (
	"time"
)

// MachineType is the categorical product quality class of a machine.
type MachineType string

const (
	MachineTypeLow    MachineType = "L"
	MachineTypeMedium MachineType = "M"
	MachineTypeHigh   MachineType = "H"
)

// MachineReading is one timestamped snapshot of a machine's sensor values.
// Readings are immutable once loaded from storage; the repository returns at
// most one "latest" reading per machine identifier (most recent wins).
type MachineReading struct {
	ID                 int64       `json:"id"`
	MachineID          string      `json:"machine_id"`
	Type               MachineType `json:"type"`
	AirTemperature     float64     `json:"air_temperature"`
	ProcessTemperature float64     `json:"process_temperature"`
	RotationalSpeed    int         `json:"rotational_speed"`
	Torque             float64     `json:"torque"`
	ToolWear           int         `json:"tool_wear"`
	Target             int         `json:"target"`
	FailureType        string      `json:"failure_type"`
	ObservedAt         time.Time   `json:"timestamp"`
}

// PredictionLabel is the binary classification returned by the ML service.
type PredictionLabel string

const (
	PredictionHealthy PredictionLabel = "HEALTHY"
	PredictionFailure PredictionLabel = "FAILURE"
)

// MLSeverity is the risk severity attached to a prediction's diagnostics.
type MLSeverity string

const (
	MLSeverityLow      MLSeverity = "LOW"
	MLSeverityMedium   MLSeverity = "MEDIUM"
	MLSeverityHigh     MLSeverity = "HIGH"
	MLSeverityCritical MLSeverity = "CRITICAL"
)

// Diagnostics is the structured explanation accompanying a prediction.
type Diagnostics struct {
	Severity          MLSeverity `json:"severity"`
	PrimaryCause      string     `json:"primary_cause"`
	SensorAlert       string     `json:"sensor_alert"`
	RecommendedAction string     `json:"recommended_action"`
}

// SensorAnomaly describes one out-of-range sensor parameter flagged by the
// ML service alongside a prediction.
type SensorAnomaly struct {
	Parameter   string  `json:"parameter"`
	Value       float64 `json:"value"`
	Status      string  `json:"status"`
	Explanation string  `json:"explanation"`
}

// PredictionResult is the outcome of scoring one reading against the ML
// service. Results are produced fresh on every call and never mutated; a new
// result may overwrite the stored latest prediction for its machine.
type PredictionResult struct {
	MachineID     string             `json:"machine_id"`
	Prediction    PredictionLabel    `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Diagnostics   Diagnostics        `json:"diagnostics"`
	Anomalies     []SensorAnomaly    `json:"anomalies"`
	OverallHealth string             `json:"overall_health"`
	Features      map[string]float64 `json:"features"`
	Timestamp     time.Time          `json:"timestamp"`
}

// PredictionRecord is the persisted latest prediction for one machine.
// At most one record exists per machine identifier: writes go through an
// upsert keyed on machine_id, so a new result atomically replaces the prior
// one from the caller's perspective.
type PredictionRecord struct {
	MachineID     string          `json:"machine_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Prediction    PredictionLabel `json:"prediction"`
	Confidence    float64         `json:"confidence"`
	Severity      MLSeverity      `json:"severity"`
	OverallHealth string          `json:"overall_health_summary"`
	Diagnostics   Diagnostics     `json:"diagnostics"`
	Anomalies     AnomalyList     `json:"anomalies"`
	Features      JSONMap         `json:"features"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ConditionStatus is the dashboard-facing state of one machine, derived from
// its most recent prediction (or the scoring failure).
type ConditionStatus string

const (
	ConditionHealthy ConditionStatus = "HEALTHY"
	ConditionFailure ConditionStatus = "FAILURE"
	ConditionError   ConditionStatus = "ERROR"
	ConditionUnknown ConditionStatus = "UNKNOWN"
)

// MachineCondition pairs a machine's latest reading with its scored state.
// When scoring fails the condition degrades to ERROR/UNKNOWN with the error
// text instead of failing the whole response.
type MachineCondition struct {
	ID                 int64       `json:"id"`
	MachineID          string      `json:"machine_id"`
	Type               MachineType `json:"type"`
	AirTemperature     float64     `json:"air_temperature"`
	ProcessTemperature float64     `json:"process_temperature"`
	RotationalSpeed    int         `json:"rotational_speed"`
	Torque             float64     `json:"torque"`
	ToolWear           int         `json:"tool_wear"`
	Timestamp          time.Time   `json:"timestamp"`
	Condition          Condition   `json:"condition"`
	Target             int         `json:"target"`
	FailureType        string      `json:"failure_type"`
}

// Condition is the scored state block inside a MachineCondition.
type Condition struct {
	Status        ConditionStatus `json:"status"`
	Color         string          `json:"color"`
	Severity      string          `json:"severity"`
	Confidence    float64         `json:"confidence"`
	OverallHealth string          `json:"overall_health,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// FleetSummary aggregates scored conditions across the whole fleet, not just
// the requested page, so dashboard totals stay accurate.
type FleetSummary struct {
	TotalMachines     int            `json:"total_machines"`
	ByStatus          StatusCounts   `json:"by_status"`
	BySeverity        SeverityCounts `json:"by_severity"`
	AverageConfidence float64        `json:"average_confidence"`
}

// StatusCounts breaks the fleet down by prediction status.
type StatusCounts struct {
	Healthy int `json:"healthy"`
	Failure int `json:"failure"`
	Error   int `json:"error"`
}

// SeverityCounts breaks the fleet down by diagnostic severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}
