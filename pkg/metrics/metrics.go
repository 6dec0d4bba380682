package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Vendor web service metrics
	VendorRequestsTotal   *prometheus.CounterVec
	VendorRequestDuration *prometheus.HistogramVec

	// Catalog Metrics
	CatalogBuildDuration prometheus.Histogram
	CatalogRecords       prometheus.Gauge
	CatalogDuplicates    prometheus.Gauge
	CatalogProblems      prometheus.Gauge
	CatalogFetchErrors   *prometheus.CounterVec
	CatalogLastBuild     prometheus.Gauge
	LocationDataFetched  prometheus.Counter
	DescriptionBatchSize prometheus.Histogram

	// Read Metrics
	ReadsTotal      *prometheus.CounterVec
	ReadDuration    prometheus.Histogram
	ReadPointsTotal prometheus.Counter

	// Export Metrics
	ExportValuesTotal prometheus.Counter
	ExportDuration    prometheus.Histogram

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
}

// NewCollector creates a new metrics collector on the default registerer
func NewCollector(namespace string) *Collector {
	return NewCollectorWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegisterer creates a collector registering into reg.
// Tests pass prometheus.NewRegistry() so collectors never collide.
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		VendorRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vendor_requests_total",
				Help:      "Total number of Aquarius web service requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		VendorRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vendor_request_duration_seconds",
				Help:      "Aquarius web service request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"endpoint"},
		),

		CatalogBuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "catalog_build_duration_seconds",
				Help:      "Duration of a full catalog read and build in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		CatalogRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_records",
				Help:      "Number of records in the current catalog",
			},
		),

		CatalogDuplicates: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_duplicate_records",
				Help:      "Number of catalog records sharing a time series identifier",
			},
		),

		CatalogProblems: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_records_with_problems",
				Help:      "Number of catalog records with at least one problem",
			},
		),

		CatalogFetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_fetch_errors_total",
				Help:      "Global data fetch failures by list",
			},
			[]string{"list"},
		),

		CatalogLastBuild: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_last_build_timestamp_seconds",
				Help:      "Unix time of the last completed catalog build",
			},
		),

		LocationDataFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_data_fetched_total",
				Help:      "Total number of per-location data responses read",
			},
		),

		DescriptionBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "description_batch_size",
				Help:      "Unique ids per time series description request",
				Buckets:   []float64{1, 5, 10, 20, 30, 40, 50},
			},
		),

		ReadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timeseries_reads_total",
				Help:      "Time series reads by data API and outcome",
			},
			[]string{"data_api", "outcome"},
		),

		ReadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "timeseries_read_duration_seconds",
				Help:      "Duration of a single time series read in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),

		ReadPointsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timeseries_read_points_total",
				Help:      "Total number of data points read",
			},
		),

		ExportValuesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_values_total",
				Help:      "Total number of time series values written to the database",
			},
		),

		ExportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "Duration of a time series export in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"},
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),
	}
}

// Timer helps measure operation duration
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordVendorRequest counts one vendor round trip and its latency
func (c *Collector) RecordVendorRequest(endpoint, status string, duration time.Duration) {
	c.VendorRequestsTotal.WithLabelValues(endpoint, status).Inc()
	c.VendorRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordFetchError increments the global data fetch failure counter
func (c *Collector) RecordFetchError(list string) {
	c.CatalogFetchErrors.WithLabelValues(list).Inc()
}

// UpdateCatalog sets the catalog gauges after a build
func (c *Collector) UpdateCatalog(records, duplicates, withProblems int, builtAt time.Time) {
	c.CatalogRecords.Set(float64(records))
	c.CatalogDuplicates.Set(float64(duplicates))
	c.CatalogProblems.Set(float64(withProblems))
	c.CatalogLastBuild.Set(float64(builtAt.Unix()))
}

// RecordRead counts one time series read
func (c *Collector) RecordRead(dataAPI, outcome string, points int) {
	c.ReadsTotal.WithLabelValues(dataAPI, outcome).Inc()
	c.ReadPointsTotal.Add(float64(points))
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
