package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// MachineRepository provides read access to the machines table, which holds
// the stream of sensor readings (one row per observation).
type MachineRepository struct {
	db DBTX
}

// NewMachineRepository creates a MachineRepository backed by the given
// database connection (pool or transaction).
func NewMachineRepository(db DBTX) *MachineRepository {
	return &MachineRepository{db: db}
}

const readingColumns = `id, machine_id, type, air_temperature, process_temperature,
	rotational_speed, torque, tool_wear, target, failure_type, timestamp`

// LatestPerMachine returns the most recent reading for every machine,
// deduplicated by machine identifier with the newest observation winning.
// Results are ordered by machine id for stable pagination.
func (r *MachineRepository) LatestPerMachine(ctx context.Context) ([]types.MachineReading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT ON (machine_id) `+readingColumns+`
		 FROM machines
		 ORDER BY machine_id, timestamp DESC, id DESC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query latest readings", err)
	}
	defer rows.Close()

	var out []types.MachineReading
	for rows.Next() {
		m, err := scanReading(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read readings", err)
	}
	return out, nil
}

// FindByID returns the latest reading for one machine identifier.
func (r *MachineRepository) FindByID(ctx context.Context, machineID string) (*types.MachineReading, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+readingColumns+`
		 FROM machines
		 WHERE machine_id = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT 1`,
		machineID,
	)
	m, err := scanReading(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundMachine, "machine not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query machine", err)
	}
	return m, nil
}

func scanReading(row pgx.Row) (*types.MachineReading, error) {
	var m types.MachineReading
	if err := row.Scan(
		&m.ID,
		&m.MachineID,
		&m.Type,
		&m.AirTemperature,
		&m.ProcessTemperature,
		&m.RotationalSpeed,
		&m.Torque,
		&m.ToolWear,
		&m.Target,
		&m.FailureType,
		&m.ObservedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
