package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// --- Mock DBTX ---
//
// mockDBTX and mockRow are shared by the other repository tests in this
// package.

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// sqlContaining matches the SQL argument of a DBTX expectation.
func sqlContaining(substr string) any {
	return mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, substr)
	})
}

// alertMockRows implements pgx.Rows for alert list queries, producing the
// column layout of alertColumns.
type alertMockRows struct {
	data    []types.Alert
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newAlertMockRows(data []types.Alert) *alertMockRows {
	return &alertMockRows{data: data, idx: -1}
}

func (r *alertMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *alertMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	*dest[0].(*int64) = row.ID
	*dest[1].(*string) = row.MachineID
	*dest[2].(*types.AlertType) = row.Type
	*dest[3].(*types.AlertSeverity) = row.Severity
	*dest[4].(*string) = row.Message
	*dest[5].(*types.AlertPayload) = row.Data
	*dest[6].(*bool) = row.Resolved
	*dest[7].(*time.Time) = row.ResolvedAt
	*dest[8].(*string) = row.ResolvedBy
	*dest[9].(*time.Time) = row.CreatedAt
	return nil
}

func (r *alertMockRows) Close()                                       { r.closed = true }
func (r *alertMockRows) Err() error                                   { return r.errVal }
func (r *alertMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *alertMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *alertMockRows) RawValues() [][]byte                          { return nil }
func (r *alertMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *alertMockRows) Conn() *pgx.Conn                              { return nil }

// ============================================================
// Create Tests
// ============================================================

func TestAlertRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	a := &types.Alert{
		MachineID: "M14860",
		Type:      types.AlertFailurePredicted,
		Severity:  types.AlertSeverityCritical,
		Message:   "[ML ALERT] M14860: Heat dissipation failure",
	}

	db.On("QueryRow", ctx,
		sqlContaining("ON CONFLICT (machine_id, type) WHERE resolved = false DO NOTHING"),
		mock.Anything,
	).Return(&mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int64) = 42
		*dest[1].(*time.Time) = now
		return nil
	}})

	created, err := repo.Create(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(42), a.ID)
	assert.Equal(t, now, a.CreatedAt)
	db.AssertExpectations(t)
}

func TestAlertRepository_Create_ConflictNotCreated(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	// ON CONFLICT DO NOTHING returns no row when an unresolved alert of the
	// same (machine, type) already exists.
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	a := &types.Alert{MachineID: "M14860", Type: types.AlertFailurePredicted}
	created, err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, a.ID)
}

func TestAlertRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection lost")})

	created, err := repo.Create(context.Background(), &types.Alert{MachineID: "M14860"})
	assert.False(t, created)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// ============================================================
// Find Tests
// ============================================================

func TestAlertRepository_FindByMachineID(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	epoch := time.Unix(0, 0).UTC()
	rows := newAlertMockRows([]types.Alert{
		{ID: 2, MachineID: "M14860", Type: types.AlertThermalWarning, Severity: types.AlertSeverityHigh, ResolvedAt: epoch},
		{ID: 1, MachineID: "M14860", Type: types.AlertFailurePredicted, Severity: types.AlertSeverityCritical, Resolved: true, ResolvedAt: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC), ResolvedBy: "ops"},
	})
	db.On("Query", mock.Anything, sqlContaining("ORDER BY created_at DESC"), mock.Anything).
		Return(rows, nil)

	alerts, err := repo.FindByMachineID(context.Background(), "M14860")
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	// The epoch sentinel from the COALESCE read maps back to a zero time.
	assert.True(t, alerts[0].ResolvedAt.IsZero())
	assert.Equal(t, "ops", alerts[1].ResolvedBy)
	assert.False(t, alerts[1].ResolvedAt.IsZero())
}

func TestAlertRepository_FindByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	alert, err := repo.FindByID(context.Background(), 99)
	assert.Nil(t, alert)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundAlert, appErr.Code)
}

// ============================================================
// MarkResolved Tests
// ============================================================

func TestAlertRepository_MarkResolved_SetsResolutionOnce(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	resolvedAt := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	// The update COALESCEs resolved_at/resolved_by so a second resolve can
	// never overwrite who resolved the alert first.
	db.On("QueryRow", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "resolved_at = COALESCE(resolved_at, NOW())") &&
			strings.Contains(sql, "resolved_by = COALESCE(resolved_by, $2)")
	}), mock.Anything).Return(&mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int64) = 7
		*dest[1].(*string) = "M14860"
		*dest[2].(*types.AlertType) = types.AlertFailurePredicted
		*dest[3].(*types.AlertSeverity) = types.AlertSeverityCritical
		*dest[4].(*string) = "msg"
		*dest[6].(*bool) = true
		*dest[7].(*time.Time) = resolvedAt
		*dest[8].(*string) = "ops"
		*dest[9].(*time.Time) = resolvedAt.Add(-time.Hour)
		return nil
	}})

	alert, err := repo.MarkResolved(ctx, 7, "ops")
	require.NoError(t, err)
	assert.True(t, alert.Resolved)
	assert.Equal(t, "ops", alert.ResolvedBy)
	assert.Equal(t, resolvedAt, alert.ResolvedAt)
	db.AssertExpectations(t)
}

func TestAlertRepository_MarkResolved_EmptyResolverStaysNull(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	var gotArgs []any
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		gotArgs = args
		return true
	})).Return(&mockRow{scanFn: func(dest ...any) error {
		*dest[6].(*bool) = true
		return nil
	}})

	_, err := repo.MarkResolved(context.Background(), 7, "")
	require.NoError(t, err)
	require.Len(t, gotArgs, 2)
	assert.Nil(t, gotArgs[1], "empty resolver must be stored as NULL, not empty string")
}

func TestAlertRepository_MarkResolved_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	alert, err := repo.MarkResolved(context.Background(), 99, "ops")
	assert.Nil(t, alert)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundAlert, appErr.Code)
}
