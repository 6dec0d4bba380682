package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"aquarius-catalog/internal/models"
	"aquarius-catalog/internal/repository"
	"aquarius-catalog/internal/ts"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

// ExportService writes materialized time series to the database
type ExportService struct {
	repo    repository.TimeSeriesRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewExportService creates a new export service
func NewExportService(repo repository.TimeSeriesRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ExportService {
	return &ExportService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// Export replaces any stored copy of series with its current values
func (s *ExportService) Export(ctx context.Context, series *ts.TimeSeries) (*models.ExportSummary, error) {
	if series == nil {
		return nil, fmt.Errorf("nothing to export")
	}
	startTime := time.Now()

	properties, err := json.Marshal(series.Properties())
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}

	header := &models.StoredTimeSeries{
		TSID:        series.Identifier.String(),
		UniqueID:    stringProperty(series, "timeseries.uniqueId"),
		Description: series.Description,
		Units:       series.Units,
		DataAPI:     stringProperty(series, "dataapi"),
		PeriodStart: series.Date1Original.UTC(),
		PeriodEnd:   series.Date2Original.UTC(),
		Properties:  properties,
		ExportedAt:  s.now().UTC(),
	}

	points := series.Points()
	values := make([]models.StoredValue, 0, len(points))
	missing := 0
	for _, p := range points {
		v := models.StoredValue{TSID: header.TSID, ObservedAt: p.Time.UTC()}
		if series.IsMissing(p.Value) || math.IsInf(p.Value, 0) {
			missing++
		} else {
			v.Value = sql.NullFloat64{Float64: p.Value, Valid: true}
		}
		values = append(values, v)
	}

	if err := s.repo.SaveTimeSeries(ctx, header, values); err != nil {
		s.logger.Error(ctx, "[EXPORT_ERROR] Failed to save time series", logging.Fields{
			"tsid":   header.TSID,
			"values": len(values),
		}, err)
		return nil, fmt.Errorf("failed to export %s: %w", header.TSID, err)
	}

	if s.metrics != nil {
		s.metrics.ExportValuesTotal.Add(float64(len(values)))
		s.metrics.ExportDuration.Observe(time.Since(startTime).Seconds())
	}

	s.logger.Info(ctx, "[EXPORT_COMPLETE] Time series exported", logging.Fields{
		"tsid":    header.TSID,
		"values":  len(values),
		"missing": missing,
	})

	return &models.ExportSummary{
		TSID:        header.TSID,
		Values:      len(values),
		Missing:     missing,
		PeriodStart: header.PeriodStart,
		PeriodEnd:   header.PeriodEnd,
		ExportedAt:  header.ExportedAt,
	}, nil
}

// GetExport returns a stored header with its values in time order
func (s *ExportService) GetExport(ctx context.Context, tsid string) (*models.StoredTimeSeries, []models.StoredValue, error) {
	header, err := s.repo.GetTimeSeries(ctx, tsid)
	if err != nil {
		return nil, nil, err
	}
	values, err := s.repo.GetValues(ctx, tsid, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	return header, values, nil
}

// ListExports pages through stored headers
func (s *ExportService) ListExports(ctx context.Context, limit, offset int) ([]*models.StoredTimeSeries, int, error) {
	return s.repo.ListTimeSeries(ctx, limit, offset)
}

// DeleteExport removes a stored series
func (s *ExportService) DeleteExport(ctx context.Context, tsid string) error {
	return s.repo.DeleteTimeSeries(ctx, tsid)
}

// HealthCheck reports whether the export database is reachable
func (s *ExportService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func stringProperty(series *ts.TimeSeries, name string) string {
	v, ok := series.Property(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
