package db

import (
	"context"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// PredictionRepository provides data access for the machine_predictions
// table, which holds at most one row per machine (the latest prediction).
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a PredictionRepository backed by the
// given database connection (pool or transaction).
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Upsert stores the latest prediction for a machine, replacing any prior
// row. The conflict key is machine_id, so the replace is atomic from the
// caller's perspective and repeated upserts for one machine always leave
// exactly one row.
func (r *PredictionRepository) Upsert(ctx context.Context, rec *types.PredictionRecord) (*types.PredictionRecord, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO machine_predictions
		 (machine_id, timestamp, prediction, confidence, severity,
		  overall_health_summary, diagnostics, anomalies, features_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (machine_id) DO UPDATE SET
			timestamp = EXCLUDED.timestamp,
			prediction = EXCLUDED.prediction,
			confidence = EXCLUDED.confidence,
			severity = EXCLUDED.severity,
			overall_health_summary = EXCLUDED.overall_health_summary,
			diagnostics = EXCLUDED.diagnostics,
			anomalies = EXCLUDED.anomalies,
			features_data = EXCLUDED.features_data
		 RETURNING machine_id, timestamp, prediction, confidence, severity,
			COALESCE(overall_health_summary, ''), diagnostics, anomalies, features_data`,
		rec.MachineID,
		rec.Timestamp,
		string(rec.Prediction),
		rec.Confidence,
		string(rec.Severity),
		rec.OverallHealth,
		rec.Diagnostics,
		rec.Anomalies,
		rec.Features,
	)

	var stored types.PredictionRecord
	if err := row.Scan(
		&stored.MachineID,
		&stored.Timestamp,
		&stored.Prediction,
		&stored.Confidence,
		&stored.Severity,
		&stored.OverallHealth,
		&stored.Diagnostics,
		&stored.Anomalies,
		&stored.Features,
	); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert prediction", err)
	}
	return &stored, nil
}

// FindByMachineID returns the stored latest prediction for one machine, or
// nil when the machine has never been scored.
func (r *PredictionRepository) FindByMachineID(ctx context.Context, machineID string) (*types.PredictionRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT machine_id, timestamp, prediction, confidence, severity,
			COALESCE(overall_health_summary, ''), diagnostics, anomalies, features_data
		 FROM machine_predictions
		 WHERE machine_id = $1`,
		machineID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query prediction", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read prediction", err)
		}
		return nil, nil
	}

	var rec types.PredictionRecord
	if err := rows.Scan(
		&rec.MachineID,
		&rec.Timestamp,
		&rec.Prediction,
		&rec.Confidence,
		&rec.Severity,
		&rec.OverallHealth,
		&rec.Diagnostics,
		&rec.Anomalies,
		&rec.Features,
	); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan prediction", err)
	}
	return &rec, nil
}
