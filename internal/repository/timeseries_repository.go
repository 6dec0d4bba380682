package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"aquarius-catalog/internal/models"
	"aquarius-catalog/pkg/database"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

// TimeSeriesRepository persists exported time series
type TimeSeriesRepository interface {
	// SaveTimeSeries upserts the header and replaces all stored values
	SaveTimeSeries(ctx context.Context, header *models.StoredTimeSeries, values []models.StoredValue) error
	GetTimeSeries(ctx context.Context, tsid string) (*models.StoredTimeSeries, error)
	ListTimeSeries(ctx context.Context, limit, offset int) ([]*models.StoredTimeSeries, int, error)
	GetValues(ctx context.Context, tsid string, from, to *time.Time) ([]models.StoredValue, error)
	DeleteTimeSeries(ctx context.Context, tsid string) error

	HealthCheck(ctx context.Context) error
}

type timeSeriesRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewTimeSeriesRepository creates a repository backed by PostgreSQL
func NewTimeSeriesRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) TimeSeriesRepository {
	return &timeSeriesRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const headerColumns = `tsid, unique_id, description, units, data_api,
		       period_start, period_end, value_count, properties, exported_at`

func (r *timeSeriesRepository) SaveTimeSeries(ctx context.Context, header *models.StoredTimeSeries, values []models.StoredValue) error {
	timer := time.Now()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	properties := header.Properties
	if len(properties) == 0 {
		properties = []byte("{}")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO time_series (
			tsid, unique_id, description, units, data_api,
			period_start, period_end, value_count, properties, exported_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tsid) DO UPDATE SET
			unique_id = EXCLUDED.unique_id,
			description = EXCLUDED.description,
			units = EXCLUDED.units,
			data_api = EXCLUDED.data_api,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			value_count = EXCLUDED.value_count,
			properties = EXCLUDED.properties,
			exported_at = EXCLUDED.exported_at
	`,
		header.TSID,
		header.UniqueID,
		header.Description,
		header.Units,
		header.DataAPI,
		header.PeriodStart,
		header.PeriodEnd,
		len(values),
		properties,
		header.ExportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert time series header: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM time_series_values WHERE tsid = $1`, header.TSID); err != nil {
		return fmt.Errorf("failed to clear time series values: %w", err)
	}

	if len(values) > 0 {
		observedAt := make([]string, len(values))
		points := make([]sql.NullFloat64, len(values))
		for i, v := range values {
			observedAt[i] = v.ObservedAt.UTC().Format(time.RFC3339Nano)
			points[i] = v.Value
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO time_series_values (tsid, observed_at, value)
			SELECT $1, t.observed_at, t.value
			FROM UNNEST($2::timestamptz[], $3::double precision[]) AS t(observed_at, value)
		`, header.TSID, pq.Array(observedAt), pq.Array(points))
		if err != nil {
			return fmt.Errorf("failed to insert time series values: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	header.ValueCount = len(values)

	duration := time.Since(timer)
	if r.metrics != nil {
		r.metrics.DBQueryDuration.WithLabelValues("save_time_series").Observe(duration.Seconds())
	}
	r.logger.Debug(ctx, "[REPO_SAVE_TIMESERIES] Time series saved", logging.Fields{
		"tsid":        header.TSID,
		"values":      len(values),
		"duration_ms": duration.Milliseconds(),
	})
	return nil
}

func (r *timeSeriesRepository) GetTimeSeries(ctx context.Context, tsid string) (*models.StoredTimeSeries, error) {
	query := `SELECT ` + headerColumns + ` FROM time_series WHERE tsid = $1`

	var header models.StoredTimeSeries
	err := r.db.GetContext(ctx, "get_time_series", &header, query, tsid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "time_series", ID: tsid}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time series: %w", err)
	}
	return &header, nil
}

func (r *timeSeriesRepository) ListTimeSeries(ctx context.Context, limit, offset int) ([]*models.StoredTimeSeries, int, error) {
	var total int
	if err := r.db.GetContext(ctx, "count_time_series", &total, `SELECT COUNT(*) FROM time_series`); err != nil {
		return nil, 0, fmt.Errorf("failed to count time series: %w", err)
	}

	query := `SELECT ` + headerColumns + ` FROM time_series ORDER BY tsid LIMIT $1 OFFSET $2`

	var headers []*models.StoredTimeSeries
	if err := r.db.SelectContext(ctx, "list_time_series", &headers, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list time series: %w", err)
	}
	return headers, total, nil
}

func (r *timeSeriesRepository) GetValues(ctx context.Context, tsid string, from, to *time.Time) ([]models.StoredValue, error) {
	query := `SELECT tsid, observed_at, value FROM time_series_values WHERE tsid = $1`
	args := []interface{}{tsid}
	argNum := 2

	if from != nil {
		query += fmt.Sprintf(" AND observed_at >= $%d", argNum)
		args = append(args, *from)
		argNum++
	}
	if to != nil {
		query += fmt.Sprintf(" AND observed_at <= $%d", argNum)
		args = append(args, *to)
	}
	query += " ORDER BY observed_at"

	var values []models.StoredValue
	if err := r.db.SelectContext(ctx, "get_time_series_values", &values, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get time series values: %w", err)
	}
	return values, nil
}

func (r *timeSeriesRepository) DeleteTimeSeries(ctx context.Context, tsid string) error {
	result, err := r.db.ExecContext(ctx, "delete_time_series", `DELETE FROM time_series WHERE tsid = $1`, tsid)
	if err != nil {
		return fmt.Errorf("failed to delete time series: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Resource: "time_series", ID: tsid}
	}

	r.logger.Debug(ctx, "[REPO_DELETE_TIMESERIES] Time series deleted", logging.Fields{
		"tsid": tsid,
	})
	return nil
}

func (r *timeSeriesRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
