package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// AlertRepository provides data access for the alert table.
//
// The table carries a partial unique index (migrations/003_alerts.sql):
//
//	CREATE UNIQUE INDEX alert_unresolved_machine_type
//	    ON alert (machine_id, type) WHERE resolved = false;
//
// Create relies on it via ON CONFLICT DO NOTHING so that two processes
// racing past the duplicate-window check cannot both insert an unresolved
// alert for the same (machine, type) pair. The in-memory processing guard
// only narrows that race within one process; the index closes it.
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates an AlertRepository backed by the given
// database connection (pool or transaction).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, machine_id, type, severity, message, data,
	resolved, COALESCE(resolved_at, 'epoch'::timestamp), COALESCE(resolved_by, ''), created_at`

// Create inserts a new alert. It returns created=false (and leaves the
// alert unmodified) when an unresolved alert of the same (machine, type)
// already exists, which is a business outcome rather than an error.
func (r *AlertRepository) Create(ctx context.Context, a *types.Alert) (bool, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO alert (machine_id, type, severity, message, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (machine_id, type) WHERE resolved = false DO NOTHING
		 RETURNING id, created_at`,
		a.MachineID,
		string(a.Type),
		string(a.Severity),
		a.Message,
		a.Data,
	)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to create alert", err)
	}
	return true, nil
}

// FindByMachineID returns all alerts for a machine, most recent first.
func (r *AlertRepository) FindByMachineID(ctx context.Context, machineID string) ([]types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+`
		 FROM alert
		 WHERE machine_id = $1
		 ORDER BY created_at DESC`,
		machineID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query alerts by machine", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// FindAll returns every alert, most recent first.
func (r *AlertRepository) FindAll(ctx context.Context) ([]types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+` FROM alert ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query alerts", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// FindUnresolved returns all unresolved alerts, most recent first.
func (r *AlertRepository) FindUnresolved(ctx context.Context) ([]types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+`
		 FROM alert
		 WHERE resolved = false
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query unresolved alerts", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// FindBySeverity returns all alerts of the given severity, most recent first.
func (r *AlertRepository) FindBySeverity(ctx context.Context, severity types.AlertSeverity) ([]types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+`
		 FROM alert
		 WHERE severity = $1
		 ORDER BY created_at DESC`,
		string(severity),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query alerts by severity", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// FindByID returns one alert by primary key.
func (r *AlertRepository) FindByID(ctx context.Context, id int64) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alert WHERE id = $1`,
		id,
	)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query alert", err)
	}
	return a, nil
}

// FindSummaries returns unresolved alerts with the message truncated to 150
// characters for dashboard feeds.
func (r *AlertRepository) FindSummaries(ctx context.Context) ([]types.AlertSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, machine_id, type, severity,
			CASE
				WHEN LENGTH(message) > 150 THEN SUBSTRING(message FROM 1 FOR 150) || '...'
				ELSE message
			END AS message_preview,
			created_at
		 FROM alert
		 WHERE resolved = false
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query alert summaries", err)
	}
	defer rows.Close()

	var out []types.AlertSummary
	for rows.Next() {
		var s types.AlertSummary
		if err := rows.Scan(&s.ID, &s.MachineID, &s.Type, &s.Severity, &s.MessagePreview, &s.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert summary", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read alert summaries", err)
	}
	return out, nil
}

// MarkResolved sets the resolved flag and resolver identity/time on an
// alert. Resolution is set once and never reverted; resolving an already
// resolved alert is a no-op that returns the current row.
func (r *AlertRepository) MarkResolved(ctx context.Context, id int64, resolvedBy string) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE alert
		 SET resolved = true,
		     resolved_at = COALESCE(resolved_at, NOW()),
		     resolved_by = COALESCE(resolved_by, $2)
		 WHERE id = $1
		 RETURNING `+alertColumns,
		id,
		nilIfEmpty(resolvedBy),
	)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve alert", err)
	}
	return a, nil
}

// scanAlert reads one alert row. resolved_at/resolved_by arrive COALESCEd
// to sentinel values so the struct fields stay non-pointer.
func scanAlert(row pgx.Row) (*types.Alert, error) {
	var a types.Alert
	if err := row.Scan(
		&a.ID,
		&a.MachineID,
		&a.Type,
		&a.Severity,
		&a.Message,
		&a.Data,
		&a.Resolved,
		&a.ResolvedAt,
		&a.ResolvedBy,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if a.ResolvedAt.Equal(time.Unix(0, 0).UTC()) {
		a.ResolvedAt = time.Time{}
	}
	return &a, nil
}

func scanAlerts(rows pgx.Rows) ([]types.Alert, error) {
	var out []types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read alerts", err)
	}
	return out, nil
}

// nilIfEmpty converts an empty string to nil so the column stays NULL.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
