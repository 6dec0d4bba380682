package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquarius-catalog/internal/aquarius"
	"aquarius-catalog/internal/catalog"
	"aquarius-catalog/internal/models"
	"aquarius-catalog/internal/timeutil"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

type fakePoints struct {
	resp    *models.TimeSeriesDataResponse
	err     error
	calls   int
	lastReq aquarius.PointsRequest
}

func (f *fakePoints) GetTimeSeriesData(ctx context.Context, req aquarius.PointsRequest) (*models.TimeSeriesDataResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func num(v float64) *float64 { return &v }

func readerFixture(t *testing.T) *catalog.Catalog {
	t.Helper()
	in := catalog.Inputs{
		TimeSeriesDescriptions: []models.TimeSeriesDescription{
			{
				Identifier: "Discharge.Working@L1", UniqueID: "a1", LocationIdentifier: "L1",
				Parameter: "Discharge", ParameterID: "QR", Unit: "cfs", Label: "Working",
				ComputationIdentifier: "Mean", ComputationPeriodIdentifier: "Daily",
			},
			{
				Identifier: "Stage@L1", UniqueID: "b2", LocationIdentifier: "L1",
				Parameter: "Stage", Unit: "ft",
			},
			{Identifier: "Stage.A@L2", UniqueID: "c3", LocationIdentifier: "L2", Parameter: "Stage"},
			{Identifier: "Stage.B@L2", UniqueID: "d4", LocationIdentifier: "L2", Parameter: "Stage"},
		},
		LocationDescriptions: []models.LocationDescription{
			{Identifier: "L1", Name: "River at Town", UniqueID: "loc1"},
		},
		LocationData: []models.LocationData{
			{Identifier: "L1", Latitude: num(40.1), Longitude: num(-105.2)},
		},
		Parameters: []models.ParameterMetadata{
			{Identifier: "Discharge", DisplayName: "Discharge (river)"},
		},
	}
	records := catalog.NewBuilder(logging.NewNopLogger()).Build(context.Background(), in)
	return catalog.New(records, in.LocationDescriptions, time.Now())
}

func newTestReader(points PointSource) (*ReaderService, *metrics.Collector) {
	m := metrics.NewCollectorWithRegisterer("test", prometheus.NewRegistry())
	return NewReaderService(points, logging.NewNopLogger(), m), m
}

func TestReaderService_ReadThreePoints(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	points := &fakePoints{resp: &models.TimeSeriesDataResponse{
		UniqueID: "a1",
		Points: []models.TimeSeriesPoint{
			{Timestamp: t0, Value: models.PointValue{Numeric: num(1.5)}},
			{Timestamp: t0.Add(24 * time.Hour), Value: models.PointValue{Numeric: num(2.5)}},
			{Timestamp: t0.Add(48 * time.Hour), Value: models.PointValue{Numeric: num(3.5)}},
		},
	}}
	reader, m := newTestReader(points)

	start, err := timeutil.ParseDateTime("2024-03-01")
	require.NoError(t, err)
	end, err := timeutil.ParseDateTime("2024-03-05")
	require.NoError(t, err)

	series, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Discharge-Mean.Day",
		ReadStart:      start,
		ReadEnd:        end,
		OutputTimeZone: "UTC",
		ReadData:       true,
	})
	require.NoError(t, err)

	require.Equal(t, 3, series.Len())
	assert.True(t, series.Date1.Equal(t0))
	assert.True(t, series.Date2.Equal(t0.Add(48*time.Hour)))
	assert.Equal(t, time.UTC, series.Date1.Location())
	for _, p := range series.Points() {
		assert.False(t, math.IsNaN(p.Value))
	}

	// Requested period survives on the container
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), series.Date1Original)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), series.Date2Original)

	assert.Equal(t, "a1", points.lastReq.UniqueID)
	assert.Equal(t, aquarius.DataAPICorrected, points.lastReq.DataAPI)
	assert.Equal(t, "cfs", series.Units)
	assert.Equal(t, "River at Town - Working", series.Description)
	assert.Equal(t, "L1.Aquarius.Discharge-Mean.Day", series.Identifier.String())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReadsTotal.WithLabelValues(aquarius.DataAPICorrected, "success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ReadPointsTotal))
}

func TestReaderService_ZeroPoints(t *testing.T) {
	points := &fakePoints{resp: &models.TimeSeriesDataResponse{UniqueID: "b2"}}
	reader, m := newTestReader(points)

	start, _ := timeutil.ParseDateTime("2024-01-01")
	end, _ := timeutil.ParseDateTime("2024-01-31")

	series, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Stage.IrregSecond",
		ReadStart:      start,
		ReadEnd:        end,
		OutputTimeZone: "UTC",
		ReadData:       true,
	})
	require.NoError(t, err, "an empty read is not a failed read")
	assert.True(t, series.IsAllocated())
	assert.Equal(t, 0, series.Len())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), series.Date1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReadsTotal.WithLabelValues(aquarius.DataAPICorrected, "empty")))
}

func TestReaderService_DefaultPeriod(t *testing.T) {
	reader, _ := newTestReader(&fakePoints{})
	zone := time.FixedZone("-07:00", -7*3600)
	fixedNow := time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC)
	reader.now = func() time.Time { return fixedNow }

	series, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Stage.IrregSecond",
		OutputTimeZone: "-07:00",
	})
	require.NoError(t, err)

	end := series.Date2Original
	start := series.Date1Original
	assert.True(t, end.Equal(fixedNow))
	_, endOffset := end.Zone()
	_, wantOffset := fixedNow.In(zone).Zone()
	assert.Equal(t, wantOffset, endOffset)
	assert.Equal(t, end.AddDate(0, 0, -30), start)
	assert.Equal(t, end.Hour(), start.Hour())
	assert.Equal(t, end.Minute(), start.Minute())
}

func TestReaderService_NaiveBoundsGetOutputZone(t *testing.T) {
	points := &fakePoints{resp: &models.TimeSeriesDataResponse{}}
	reader, _ := newTestReader(points)

	start, _ := timeutil.ParseDateTime("2024-01-01 06:00")
	end, _ := timeutil.ParseDateTime("2024-01-02 06:00")

	_, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Stage.IrregSecond",
		ReadStart:      start,
		ReadEnd:        end,
		OutputTimeZone: "-07:00",
		ReadData:       true,
	})
	require.NoError(t, err)

	from := points.lastReq.From.In(nil)
	assert.Equal(t, 6, from.Hour(), "wall clock is preserved")
	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), from.UTC())
}

func TestReaderService_ZonedStartDecidesOutputZone(t *testing.T) {
	saved := time.Local
	time.Local = time.UTC
	t.Cleanup(func() { time.Local = saved })

	t0 := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	points := &fakePoints{resp: &models.TimeSeriesDataResponse{
		Points: []models.TimeSeriesPoint{
			{Timestamp: t0, Value: models.PointValue{Numeric: num(1)}},
			{Timestamp: t0.Add(time.Hour), Value: models.PointValue{Numeric: num(2)}},
		},
	}}
	reader, _ := newTestReader(points)

	start, err := timeutil.ParseDateTime("2024-03-01T00:00:00-07:00")
	require.NoError(t, err)
	end, err := timeutil.ParseDateTime("2024-03-02 00:00")
	require.NoError(t, err)

	series, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:      "L1.Aquarius.Stage.IrregSecond",
		ReadStart: start,
		ReadEnd:   end,
		ReadData:  true,
	})
	require.NoError(t, err)

	const mst = -7 * 3600
	for _, at := range []time.Time{series.Date1, series.Date2, series.Date1Original, series.Date2Original} {
		_, offset := at.Zone()
		assert.Equal(t, mst, offset)
	}
	assert.True(t, series.Date1.Equal(t0))
	assert.Equal(t, 0, series.Date1.Hour())
	for _, p := range series.Points() {
		_, offset := p.Time.Zone()
		assert.Equal(t, mst, offset)
	}
}

func TestReaderService_EndOnlyDefaultsStartFromEnd(t *testing.T) {
	reader, _ := newTestReader(&fakePoints{})
	reader.now = func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }

	end, err := timeutil.ParseDateTime("2023-01-31T12:00:00Z")
	require.NoError(t, err)

	series, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Stage.IrregSecond",
		ReadEnd:        end,
		OutputTimeZone: "UTC",
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC), series.Date1Original)
	assert.Equal(t, time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC), series.Date2Original)
}

func TestReaderService_ResolutionFailures(t *testing.T) {
	points := &fakePoints{resp: &models.TimeSeriesDataResponse{}}
	reader, m := newTestReader(points)
	cat := readerFixture(t)

	_, err := reader.ReadTimeSeries(context.Background(), cat, ReadRequest{TSID: "NOPE.Aquarius.Stage.Day", ReadData: true})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "No time series catalog found matching TSID = NOPE.Aquarius.Stage.Day", err.Error())

	_, err = reader.ReadTimeSeries(context.Background(), cat, ReadRequest{TSID: "L2.Aquarius.Stage.IrregSecond", ReadData: true})
	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, 2, ambiguous.Count)
	assert.Equal(t, "Matched 2 time series catalog for TSID = L2.Aquarius.Stage.IrregSecond, expecting 1.", err.Error())

	_, err = reader.ReadTimeSeries(context.Background(), cat, ReadRequest{TSID: "bad", ReadData: true})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, 0, points.calls, "no vendor call for unresolved identifiers")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReadsTotal.WithLabelValues(aquarius.DataAPICorrected, "ambiguous")))
}

func TestReaderService_TransportError(t *testing.T) {
	apiErr := &aquarius.APIError{Endpoint: "GetTimeSeriesCorrectedData", Status: 500}
	reader, _ := newTestReader(&fakePoints{err: apiErr})

	_, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Stage.IrregSecond",
		OutputTimeZone: "UTC",
		ReadData:       true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apiErr))
}

func TestReaderService_RawDataAPIAndProperties(t *testing.T) {
	points := &fakePoints{resp: &models.TimeSeriesDataResponse{
		Points: []models.TimeSeriesPoint{
			{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: models.PointValue{}},
			{Timestamp: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), Value: models.PointValue{Numeric: num(4)}},
		},
	}}
	reader, _ := newTestReader(points)

	series, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Discharge-Mean.Day",
		DataAPI:        "raw",
		OutputTimeZone: "UTC",
		ReadData:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, aquarius.DataAPIRaw, points.lastReq.DataAPI)

	pts := series.Points()
	require.Len(t, pts, 2)
	assert.True(t, math.IsNaN(pts[0].Value), "absent numeric value is missing")
	assert.Equal(t, 4.0, pts[1].Value)

	props := series.Properties()
	assert.Equal(t, aquarius.DataAPIRaw, props["dataapi"])
	assert.Equal(t, "a1", props["timeseries.uniqueId"])
	assert.Equal(t, "QR", props["timeseries.parameterId"])
	assert.Equal(t, "Mean", props["timeseries.computationIdentifier"])
	assert.Equal(t, "loc1", props["location.uniqueId"])
	assert.Equal(t, 40.1, props["location.latitude"])
	assert.Nil(t, props["location.elevation"])
	assert.Equal(t, "Discharge (river)", props["parameter.displayName"])
	assert.Contains(t, series.PropertyNames(), "timeseries.subLocationIdentifier")
}

func TestReaderService_IrregularIntervalOverride(t *testing.T) {
	reader, _ := newTestReader(&fakePoints{})
	cat := readerFixture(t)

	series, err := reader.ReadTimeSeries(context.Background(), cat, ReadRequest{
		TSID:              "L1.Aquarius.Stage.IrregSecond~Aquarius",
		IrregularInterval: "IrregHour",
		OutputTimeZone:    "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, "L1.Aquarius.Stage.IrregHour~Aquarius", series.Identifier.String())
	assert.Equal(t, "River at Town - Stage", series.Description, "data type used without a label")

	// Regular series keep their interval
	series, err = reader.ReadTimeSeries(context.Background(), cat, ReadRequest{
		TSID:              "L1.Aquarius.Discharge-Mean.Day",
		IrregularInterval: "IrregHour",
		OutputTimeZone:    "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, "Day", series.Identifier.Interval)
}

func TestReaderService_MetadataOnly(t *testing.T) {
	points := &fakePoints{}
	reader, _ := newTestReader(points)

	series, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Stage.IrregSecond",
		OutputTimeZone: "UTC",
		ReadData:       false,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, points.calls)
	assert.False(t, series.IsAllocated())
	assert.NotEmpty(t, series.Properties())
}

func TestReaderService_ReversedPeriod(t *testing.T) {
	reader, _ := newTestReader(&fakePoints{})
	start, _ := timeutil.ParseDateTime("2024-02-01")
	end, _ := timeutil.ParseDateTime("2024-01-01")

	_, err := reader.ReadTimeSeries(context.Background(), readerFixture(t), ReadRequest{
		TSID:           "L1.Aquarius.Stage.IrregSecond",
		ReadStart:      start,
		ReadEnd:        end,
		OutputTimeZone: "UTC",
	})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}
