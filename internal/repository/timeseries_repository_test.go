package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquarius-catalog/internal/models"
	"aquarius-catalog/pkg/database"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

const testTSID = "L1.Aquarius.Stage.Day"

func newMockRepository(t *testing.T) (TimeSeriesRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.NewNopLogger()
	collector := metrics.NewCollectorWithRegisterer("test", prometheus.NewRegistry())
	pg := database.NewFromDB(sqlx.NewDb(db, "sqlmock"), &database.Config{Database: "test"}, logger, collector)
	return NewTimeSeriesRepository(pg, logger, collector), mock
}

func headerColumnNames() []string {
	return []string{"tsid", "unique_id", "description", "units", "data_api",
		"period_start", "period_end", "value_count", "properties", "exported_at"}
}

func TestSaveTimeSeries_ReplacesValues(t *testing.T) {
	repo, mock := newMockRepository(t)
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	header := &models.StoredTimeSeries{
		TSID:        testTSID,
		UniqueID:    "a1",
		DataAPI:     "Corrected",
		PeriodStart: t1,
		PeriodEnd:   t2,
		ExportedAt:  t2,
	}
	values := []models.StoredValue{
		{ObservedAt: t1, Value: sql.NullFloat64{Float64: 2.5, Valid: true}},
		{ObservedAt: t2, Value: sql.NullFloat64{}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO time_series (")).
		WithArgs(testTSID, "a1", "", "", "Corrected", t1, t2, 2, sqlmock.AnyArg(), t2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM time_series_values WHERE tsid = $1")).
		WithArgs(testTSID).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO time_series_values")).
		WithArgs(testTSID, `{"2024-01-01T00:00:00Z","2024-01-02T00:00:00Z"}`, `{2.5,NULL}`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.SaveTimeSeries(context.Background(), header, values)
	require.NoError(t, err)
	assert.Equal(t, 2, header.ValueCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTimeSeries_RollsBackOnError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO time_series (")).
		WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	err := repo.SaveTimeSeries(context.Background(), &models.StoredTimeSeries{TSID: testTSID}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert time series header")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTimeSeries(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM time_series WHERE tsid = $1")).
		WithArgs(testTSID).
		WillReturnRows(sqlmock.NewRows(headerColumnNames()).
			AddRow(testTSID, "a1", "River at Town - Stage", "ft", "Corrected",
				start, start.Add(time.Hour), 2, []byte(`{"dataapi":"Corrected"}`), start))

	header, err := repo.GetTimeSeries(context.Background(), testTSID)
	require.NoError(t, err)
	assert.Equal(t, "ft", header.Units)
	assert.Equal(t, 2, header.ValueCount)
	assert.JSONEq(t, `{"dataapi":"Corrected"}`, string(header.Properties))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTimeSeries_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM time_series WHERE tsid = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(headerColumnNames()))

	_, err := repo.GetTimeSeries(context.Background(), "missing")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ID)
	assert.False(t, notFound.IsTransient())
}

func TestListTimeSeries(t *testing.T) {
	repo, mock := newMockRepository(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM time_series")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY tsid LIMIT $1 OFFSET $2")).
		WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows(headerColumnNames()).
			AddRow("A.x.Stage.Day", "a", "", "", "Raw", start, start, 0, []byte(`{}`), start).
			AddRow("B.x.Stage.Day", "b", "", "", "Raw", start, start, 0, []byte(`{}`), start))

	headers, total, err := repo.ListTimeSeries(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, headers, 2)
	assert.Equal(t, "B.x.Stage.Day", headers[1].TSID)
}

func TestGetValues_PeriodFilter(t *testing.T) {
	repo, mock := newMockRepository(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(48 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("observed_at >= $2 AND observed_at <= $3 ORDER BY observed_at")).
		WithArgs(testTSID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"tsid", "observed_at", "value"}).
			AddRow(testTSID, from, 1.5).
			AddRow(testTSID, to, nil))

	values, err := repo.GetValues(context.Background(), testTSID, &from, &to)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.True(t, values[0].Value.Valid)
	assert.Equal(t, 1.5, values[0].Value.Float64)
	assert.False(t, values[1].Value.Valid)
}

func TestDeleteTimeSeries(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM time_series WHERE tsid = $1")).
		WithArgs(testTSID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM time_series WHERE tsid = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteTimeSeries(context.Background(), testTSID))

	err := repo.DeleteTimeSeries(context.Background(), "missing")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
