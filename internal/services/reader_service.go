package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"aquarius-catalog/internal/aquarius"
	"aquarius-catalog/internal/catalog"
	"aquarius-catalog/internal/models"
	"aquarius-catalog/internal/timeutil"
	"aquarius-catalog/internal/ts"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

// DefaultReadDays is the length of the read period when no start is given
const DefaultReadDays = 30

// PointSource fetches point data for one vendor time series
type PointSource interface {
	GetTimeSeriesData(ctx context.Context, req aquarius.PointsRequest) (*models.TimeSeriesDataResponse, error)
}

// RecordFinder resolves a parsed identifier to catalog records
type RecordFinder interface {
	Find(id ts.Ident) []models.CatalogRecord
}

// ReadRequest describes a single time series read
type ReadRequest struct {
	TSID      string
	ReadStart timeutil.DateTime
	ReadEnd   timeutil.DateTime
	// DataAPI is Raw or Corrected; anything else reads Corrected
	DataAPI string
	// IrregularInterval replaces the interval of irregular series in the
	// output identifier, e.g. IrregHour
	IrregularInterval string
	// OutputTimeZone names the zone for naive bounds and point timestamps;
	// empty means the machine zone. A zoned ReadStart sets the timestamp zone.
	OutputTimeZone string
	ReadData       bool
	Debug          bool
}

// NotFoundError is returned when no catalog record matches a TSID
type NotFoundError struct {
	TSID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No time series catalog found matching TSID = %s", e.TSID)
}

// IsTransient returns false as a missing identifier will not appear on retry
func (e *NotFoundError) IsTransient() bool {
	return false
}

// AmbiguousError is returned when more than one catalog record matches a TSID
type AmbiguousError struct {
	TSID  string
	Count int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("Matched %d time series catalog for TSID = %s, expecting 1.", e.Count, e.TSID)
}

// IsTransient returns false
func (e *AmbiguousError) IsTransient() bool {
	return false
}

// ReaderService materializes catalog records into populated time series
type ReaderService struct {
	points  PointSource
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewReaderService creates a new reader service
func NewReaderService(points PointSource, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ReaderService {
	return &ReaderService{
		points:  points,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// ReadTimeSeries resolves req.TSID against finder and reads its points.
// Zero matching records and more than one are both failures.
func (s *ReaderService) ReadTimeSeries(ctx context.Context, finder RecordFinder, req ReadRequest) (*ts.TimeSeries, error) {
	startTime := time.Now()
	dataAPI := aquarius.NormalizeDataAPI(req.DataAPI)

	series, err := s.read(ctx, finder, req, dataAPI)
	if s.metrics != nil {
		s.metrics.ReadDuration.Observe(time.Since(startTime).Seconds())
		outcome, points := "success", 0
		switch {
		case err != nil:
			outcome = readOutcome(err)
		case series.Len() == 0:
			outcome = "empty"
		default:
			points = series.Len()
		}
		s.metrics.RecordRead(dataAPI, outcome, points)
	}
	return series, err
}

func (s *ReaderService) read(ctx context.Context, finder RecordFinder, req ReadRequest, dataAPI string) (*ts.TimeSeries, error) {
	requested, err := ts.ParseIdent(req.TSID)
	if err != nil {
		return nil, &models.ValidationError{Field: "tsid", Value: req.TSID, Message: err.Error()}
	}

	matches := finder.Find(requested)
	switch len(matches) {
	case 0:
		return nil, &NotFoundError{TSID: req.TSID}
	case 1:
	default:
		s.logger.Warn(ctx, "[READ_AMBIGUOUS] TSID matches more than one catalog record", logging.Fields{
			"tsid":    req.TSID,
			"matches": len(matches),
		})
		return nil, &AmbiguousError{TSID: req.TSID, Count: len(matches)}
	}
	record := matches[0]

	zoneName := strings.TrimSpace(req.OutputTimeZone)
	if zoneName == "" {
		zoneName = "Local"
	}
	loc, err := timeutil.ResolveLocation(zoneName)
	if err != nil {
		return nil, &models.ValidationError{Field: "tz", Value: req.OutputTimeZone, Message: err.Error()}
	}

	readStart, readEnd := s.readPeriod(req, loc)
	if readEnd.Before(readStart) {
		return nil, &models.ValidationError{
			Field:   "end",
			Value:   readEnd.Format(time.RFC3339),
			Message: fmt.Sprintf("read end %s is before read start %s", readEnd.Format(time.RFC3339), readStart.Format(time.RFC3339)),
		}
	}

	// The zone of the resolved read start decides the output zone, so a
	// zoned start overrides OutputTimeZone for point timestamps.
	outLoc := readStart.Location()
	readEnd = readEnd.In(outLoc)
	outZone := outLoc.String()
	if outZone == "" {
		outZone = zoneName
	}

	series := newSeries(record, requested, req.IrregularInterval)
	series.Date1, series.Date2 = readStart, readEnd
	series.Date1Original, series.Date2Original = readStart, readEnd
	setProperties(series, &record, dataAPI)

	if !req.ReadData {
		return series, nil
	}

	resp, err := s.points.GetTimeSeriesData(ctx, aquarius.PointsRequest{
		UniqueID: record.UniqueID,
		DataAPI:  dataAPI,
		From:     timeutil.Zoned(readStart),
		To:       timeutil.Zoned(readEnd),
		Zone:     outZone,
		Debug:    req.Debug,
	})
	if err != nil {
		s.logger.Error(ctx, "[READ_ERROR] Failed to read time series points", logging.Fields{
			"tsid":      req.TSID,
			"unique_id": record.UniqueID,
			"data_api":  dataAPI,
		}, err)
		return nil, fmt.Errorf("failed to read points for %s: %w", req.TSID, err)
	}

	if len(resp.Points) == 0 {
		if err := series.Allocate(); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "[READ_NO_POINTS] No data points returned for period", logging.Fields{
			"tsid":       req.TSID,
			"read_start": readStart.Format(time.RFC3339),
			"read_end":   readEnd.Format(time.RFC3339),
		})
		return series, nil
	}

	// Points arrive oldest first
	first := timeutil.ToLocation(resp.Points[0].Timestamp, outLoc)
	last := timeutil.ToLocation(resp.Points[len(resp.Points)-1].Timestamp, outLoc)
	series.Date1, series.Date2 = first, last
	if err := series.Allocate(); err != nil {
		return nil, err
	}

	for _, p := range resp.Points {
		at := timeutil.ToLocation(p.Timestamp, outLoc)
		value := math.NaN()
		if p.Value.Numeric != nil {
			value = *p.Value.Numeric
		}
		if _, err := series.SetValue(at, value); err != nil {
			return nil, err
		}
	}

	s.logger.Debug(ctx, "[READ_COMPLETE] Time series read", logging.Fields{
		"tsid":     req.TSID,
		"points":   series.Len(),
		"data_api": dataAPI,
	})
	return series, nil
}

// readPeriod fills in missing bounds: end defaults to now and start to
// DefaultReadDays before end, keeping the wall-clock time of day.
// With only an end given, start is DefaultReadDays before that end, not
// DefaultReadDays before now.
func (s *ReaderService) readPeriod(req ReadRequest, loc *time.Location) (time.Time, time.Time) {
	end := s.now().In(loc)
	if !req.ReadEnd.IsZero() {
		end = req.ReadEnd.In(loc)
	}
	start := end.AddDate(0, 0, -DefaultReadDays)
	if !req.ReadStart.IsZero() {
		start = req.ReadStart.In(loc)
	}
	return start, end
}

func newSeries(record models.CatalogRecord, requested ts.Ident, irregularInterval string) *ts.TimeSeries {
	dataType := ts.QuoteType(record.DataType)
	if record.Statistic != "" {
		dataType += "-" + record.Statistic
	}
	id := ts.Ident{
		Location:  record.LocationID,
		Source:    record.DataSource,
		Type:      dataType,
		Interval:  record.DataInterval,
		Scenario:  record.Scenario,
		InputType: requested.InputType,
		InputName: requested.InputName,
	}
	if irregularInterval != "" && record.DataInterval == catalog.IrregularInterval {
		id = id.WithInterval(irregularInterval)
	}

	series := ts.New(id)
	series.Units = record.DataUnits
	if record.Label != "" {
		series.Description = record.LocationName + " - " + record.Label
	} else {
		series.Description = record.LocationName + " - " + record.DataType
	}
	return series
}

func setProperties(series *ts.TimeSeries, r *models.CatalogRecord, dataAPI string) {
	series.SetProperty("timeseries.identifier", r.Identifier)
	series.SetProperty("timeseries.uniqueId", r.UniqueID)
	series.SetProperty("timeseries.parameter", r.Parameter)
	series.SetProperty("timeseries.parameterId", r.ParameterID)
	series.SetProperty("timeseries.utcOffset", optionalFloat(r.UtcOffset))
	series.SetProperty("timeseries.utcOffsetIsoDuration", r.UtcOffsetIsoDuration)
	series.SetProperty("timeseries.lastModified", optionalTime(r.LastModified))
	series.SetProperty("timeseries.rawStartTime", optionalTime(r.RawStartTime))
	series.SetProperty("timeseries.rawEndTime", optionalTime(r.RawEndTime))
	series.SetProperty("timeseries.correctedStartTime", optionalTime(r.CorrectedStartTime))
	series.SetProperty("timeseries.correctedEndTime", optionalTime(r.CorrectedEndTime))
	series.SetProperty("timeseries.type", r.TimeSeriesType)
	series.SetProperty("timeseries.label", r.Label)
	series.SetProperty("timeseries.comment", r.Comment)
	series.SetProperty("timeseries.description", r.Description)
	series.SetProperty("timeseries.computationIdentifier", r.ComputationIdentifier)
	series.SetProperty("timeseries.computationPeriodIdentifier", r.ComputationPeriodIdentifier)
	series.SetProperty("timeseries.subLocationIdentifier", r.SubLocationIdentifier)

	series.SetProperty("location.uniqueId", r.LocationUniqueID)
	series.SetProperty("location.utcOffset", optionalFloat(r.LocationUtcOffset))
	series.SetProperty("location.name", r.LocationName)
	series.SetProperty("location.elevation", optionalFloat(r.Elevation))
	series.SetProperty("location.elevationunits", r.ElevationUnits)
	series.SetProperty("location.latitude", optionalFloat(r.Latitude))
	series.SetProperty("location.longitude", optionalFloat(r.Longitude))

	series.SetProperty("parameter.displayName", r.ParameterDisplayName)
	series.SetProperty("parameter.identifier", r.ParameterIdentifier)

	series.SetProperty("dataapi", dataAPI)
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func readOutcome(err error) string {
	switch err.(type) {
	case *NotFoundError:
		return "not_found"
	case *AmbiguousError:
		return "ambiguous"
	case *models.ValidationError:
		return "invalid"
	default:
		return "error"
	}
}
