package datastore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"aquarius-catalog/internal/aquarius"
	"aquarius-catalog/internal/catalog"
	"aquarius-catalog/internal/config"
	"aquarius-catalog/internal/models"
	"aquarius-catalog/internal/services"
	"aquarius-catalog/internal/ts"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

// PluginVersion is reported through PluginProperties
const PluginVersion = "1.0.0"

// ProgressInterval is how many location data responses pass between
// progress log entries
const ProgressInterval = 25

// Names of the global lists, used in fetch error metrics and status
const (
	ListLocationDescriptions   = "location_descriptions"
	ListLocationData           = "location_data"
	ListParameters             = "parameters"
	ListUniqueIDs              = "unique_ids"
	ListDescriptionsByUniqueID = "descriptions_by_unique_id"
	ListDescriptionsUnfiltered = "descriptions"
)

// ErrDegraded is returned by operations that need a connected session
var ErrDegraded = errors.New("datastore is not connected")

// VendorClient is the part of the Publish API client a datastore uses
type VendorClient interface {
	services.PointSource
	Authenticate(ctx context.Context) error
	Close(ctx context.Context) error
	GetLocationDescriptionList(ctx context.Context) ([]models.LocationDescription, error)
	GetLocationData(ctx context.Context, locationIdentifier string) (*models.LocationData, error)
	GetParameterList(ctx context.Context) ([]models.ParameterMetadata, error)
	GetTimeSeriesUniqueIDList(ctx context.Context) ([]string, error)
	GetTimeSeriesDescriptionList(ctx context.Context) ([]models.TimeSeriesDescription, error)
	GetTimeSeriesDescriptionListByUniqueID(ctx context.Context, ids []string) ([]models.TimeSeriesDescription, error)
	GetVersion(ctx context.Context) (string, error)
}

// PluginProperties describes the plugin to hosts
type PluginProperties struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Version     string `json:"version"`
}

// Status reports session health and the current catalog
type Status struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	ServiceRoot string    `json:"serviceRootUrl"`
	Connected   bool      `json:"connected"`
	Degraded    bool      `json:"degraded"`
	Message     string    `json:"message,omitempty"`
	FetchErrors []string  `json:"fetchErrors,omitempty"`
	Records     int       `json:"records"`
	Duplicates  int       `json:"duplicates"`
	Problems    int       `json:"recordsWithProblems"`
	BuiltAt     time.Time `json:"builtAt,omitempty"`
}

// AquariusDataStore is one session against an Aquarius system. The catalog
// snapshot is replaced wholesale on refresh and never mutated in place.
type AquariusDataStore struct {
	cfg     config.DataStoreConfig
	client  VendorClient
	builder *catalog.Builder
	reader  *services.ReaderService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	snapshot  atomic.Pointer[catalog.Catalog]
	refreshMu sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

// NewAquariusDataStore creates a session around client without contacting the
// service. Call Open to connect and build the first catalog.
func NewAquariusDataStore(cfg config.DataStoreConfig, client VendorClient, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AquariusDataStore {
	d := &AquariusDataStore{
		cfg:     cfg,
		client:  client,
		builder: catalog.NewBuilder(logger),
		reader:  services.NewReaderService(client, logger, metricsCollector),
		logger:  logger,
		metrics: metricsCollector,
		status: Status{
			Name:        cfg.Name,
			Description: cfg.Description,
			Type:        config.DataStoreType,
			ServiceRoot: cfg.ServiceRootUrl,
		},
	}
	d.snapshot.Store(catalog.Empty())
	return d
}

// NewAquariusFactory returns the registry factory for AquariusDataStore
func NewAquariusFactory() Factory {
	return func(ctx context.Context, cfg config.DataStoreConfig, deps Dependencies) (DataStore, error) {
		client := aquarius.NewClient(aquarius.ClientConfig{
			ServiceRootURL: cfg.ServiceRootUrl,
			UserName:       cfg.UserName,
			Password:       cfg.Password,
			Timeout:        cfg.Timeout(),
			Debug:          cfg.Debug,
		}, deps.Logger, deps.Metrics)

		d := NewAquariusDataStore(cfg, client, deps.Logger, deps.Metrics)
		d.Open(ctx)
		return d, nil
	}
}

// Open validates the configuration, authenticates, and builds the catalog.
// Failures leave the session degraded with an empty catalog.
func (d *AquariusDataStore) Open(ctx context.Context) {
	if !d.cfg.Enabled {
		d.setDegraded("Datastore is disabled in its configuration")
		return
	}
	if problems := d.cfg.Problems(); len(problems) > 0 {
		msg := fmt.Sprintf("Datastore configuration is incomplete: %v", problems)
		d.logger.Error(ctx, "[DATASTORE_CONFIG_ERROR] Datastore cannot connect", logging.Fields{
			"datastore": d.cfg.Name,
			"problems":  problems,
		}, errors.New(msg))
		d.setDegraded(msg)
		return
	}

	if err := d.client.Authenticate(ctx); err != nil {
		d.logger.Error(ctx, "[DATASTORE_AUTH_ERROR] Failed to authenticate with Aquarius", logging.Fields{
			"datastore":    d.cfg.Name,
			"service_root": d.cfg.ServiceRootUrl,
		}, err)
		d.setDegraded(fmt.Sprintf("Error authenticating with Aquarius: %v", err))
		return
	}

	d.statusMu.Lock()
	d.status.Connected = true
	d.status.Degraded = false
	d.status.Message = ""
	d.statusMu.Unlock()

	d.logger.Info(ctx, "[DATASTORE_OPEN] Connected to Aquarius", logging.Fields{
		"datastore":    d.cfg.Name,
		"service_root": d.cfg.ServiceRootUrl,
	})

	if err := d.RefreshCatalog(ctx); err != nil {
		d.logger.Error(ctx, "[DATASTORE_OPEN_ERROR] Initial catalog read failed", logging.Fields{
			"datastore": d.cfg.Name,
		}, err)
	}
}

// Name returns the configured datastore name
func (d *AquariusDataStore) Name() string {
	return d.cfg.Name
}

// CurrentCatalog returns the cached snapshot without contacting the service
func (d *AquariusDataStore) CurrentCatalog() *catalog.Catalog {
	return d.snapshot.Load()
}

// RefreshCatalog re-reads the global lists, rebuilds the catalog, and swaps it
// in. Concurrent refreshes are serialized; readers keep the old snapshot until
// the swap.
func (d *AquariusDataStore) RefreshCatalog(ctx context.Context) error {
	if !d.Status().Connected {
		return ErrDegraded
	}

	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	var timer *metrics.Timer
	if d.metrics != nil {
		timer = d.metrics.NewTimer(d.metrics.CatalogBuildDuration)
	}
	start := time.Now()

	d.logger.Info(ctx, "[CATALOG_REFRESH_START] Reading global data", logging.Fields{
		"datastore": d.cfg.Name,
	})

	inputs, fetchErrors := d.readGlobalData(ctx)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("catalog refresh canceled: %w", err)
	}

	records := d.builder.Build(ctx, inputs)
	cat := catalog.New(records, inputs.LocationDescriptions, time.Now())
	d.snapshot.Store(cat)

	if timer != nil {
		timer.ObserveDuration()
		d.metrics.UpdateCatalog(cat.Len(), cat.DuplicateCount(), cat.ProblemCount(), cat.BuiltAt())
	}

	d.statusMu.Lock()
	d.status.FetchErrors = fetchErrors
	d.status.Records = cat.Len()
	d.status.Duplicates = cat.DuplicateCount()
	d.status.Problems = cat.ProblemCount()
	d.status.BuiltAt = cat.BuiltAt()
	d.statusMu.Unlock()

	d.logger.Info(ctx, "[CATALOG_REFRESH_COMPLETE] Catalog rebuilt", logging.Fields{
		"datastore":        d.cfg.Name,
		"records":          cat.Len(),
		"duplicates":       cat.DuplicateCount(),
		"fetch_errors":     len(fetchErrors),
		"duration_seconds": time.Since(start).Seconds(),
	})
	return nil
}

// readGlobalData fetches every list the catalog needs. Each fetch fails on
// its own; a failed list is left empty and named in the returned errors.
func (d *AquariusDataStore) readGlobalData(ctx context.Context) (catalog.Inputs, []string) {
	var in catalog.Inputs
	var fetchErrors []string

	fail := func(list string, err error) {
		fetchErrors = append(fetchErrors, fmt.Sprintf("%s: %v", list, err))
		if d.metrics != nil {
			d.metrics.RecordFetchError(list)
		}
		d.logger.Error(ctx, "[GLOBAL_DATA_ERROR] Failed to read global data list", logging.Fields{
			"datastore": d.cfg.Name,
			"list":      list,
		}, err)
	}

	locations, err := d.client.GetLocationDescriptionList(ctx)
	if err != nil {
		fail(ListLocationDescriptions, err)
	}
	catalog.SortLocationDescriptions(locations)
	in.LocationDescriptions = locations

	in.LocationData = d.readLocationData(ctx, locations, fail)

	if in.Parameters, err = d.client.GetParameterList(ctx); err != nil {
		fail(ListParameters, err)
	}

	ids, err := d.client.GetTimeSeriesUniqueIDList(ctx)
	if err != nil {
		fail(ListUniqueIDs, err)
	}

	var descriptions []models.TimeSeriesDescription
	filtered := false
	if len(ids) > 0 {
		if descriptions, err = d.client.GetTimeSeriesDescriptionListByUniqueID(ctx, ids); err != nil {
			fail(ListDescriptionsByUniqueID, err)
		} else {
			filtered = true
		}
	}
	if !filtered && ctx.Err() == nil {
		d.logger.Warn(ctx, "[GLOBAL_DATA_FALLBACK] Reading unfiltered time series description list", logging.Fields{
			"datastore":  d.cfg.Name,
			"unique_ids": len(ids),
		})
		if descriptions, err = d.client.GetTimeSeriesDescriptionList(ctx); err != nil {
			fail(ListDescriptionsUnfiltered, err)
		}
	}
	catalog.SortTimeSeriesDescriptions(descriptions)
	in.TimeSeriesDescriptions = descriptions

	return in, fetchErrors
}

// readLocationData makes one round trip per location, serially. A failed
// location is logged and skipped.
func (d *AquariusDataStore) readLocationData(ctx context.Context, locations []models.LocationDescription, fail func(string, error)) []models.LocationData {
	data := make([]models.LocationData, 0, len(locations))
	failures := 0

	for i, loc := range locations {
		if ctx.Err() != nil {
			break
		}

		ld, err := d.client.GetLocationData(ctx, loc.Identifier)
		if err != nil {
			failures++
			d.logger.Warn(ctx, "[LOCATION_DATA_ERROR] Failed to read location data", logging.Fields{
				"location": loc.Identifier,
				"error":    err.Error(),
			})
		} else if ld != nil {
			data = append(data, *ld)
			if d.metrics != nil {
				d.metrics.LocationDataFetched.Inc()
			}
		}

		if (i+1)%ProgressInterval == 0 || i+1 == len(locations) {
			d.logger.Info(ctx, "[LOCATION_DATA_PROGRESS] Reading location data", logging.Fields{
				"datastore": d.cfg.Name,
				"read":      i + 1,
				"total":     len(locations),
				"failed":    failures,
			})
		}
	}

	if failures > 0 {
		fail(ListLocationData, fmt.Errorf("%d of %d locations failed", failures, len(locations)))
	}
	return data
}

// ReadTimeSeries reads one time series resolved against the current catalog
func (d *AquariusDataStore) ReadTimeSeries(ctx context.Context, req services.ReadRequest) (*ts.TimeSeries, error) {
	if req.ReadData && !d.Status().Connected {
		return nil, ErrDegraded
	}
	if req.Debug || d.cfg.Debug {
		req.Debug = true
	}
	return d.reader.ReadTimeSeries(ctx, d.CurrentCatalog(), req)
}

// Status returns a copy of the session status
func (d *AquariusDataStore) Status() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()

	s := d.status
	s.FetchErrors = append([]string(nil), d.status.FetchErrors...)
	return s
}

// PluginProperties describes this plugin
func (d *AquariusDataStore) PluginProperties() PluginProperties {
	return PluginProperties{
		Name:        "Open Water Foundation Aquarius web services plugin",
		Description: "Plugin to integrate TSTool with Aquarius web services.",
		Author:      "Open Water Foundation, https://openwaterfoundation.org",
		Version:     PluginVersion,
	}
}

// Close ends the vendor session
func (d *AquariusDataStore) Close(ctx context.Context) error {
	d.statusMu.Lock()
	connected := d.status.Connected
	d.status.Connected = false
	d.statusMu.Unlock()

	if !connected {
		return nil
	}
	return d.client.Close(ctx)
}

func (d *AquariusDataStore) version(ctx context.Context) (string, error) {
	if !d.Status().Connected {
		return "", ErrDegraded
	}
	return d.client.GetVersion(ctx)
}

func (d *AquariusDataStore) setDegraded(msg string) {
	d.statusMu.Lock()
	d.status.Connected = false
	d.status.Degraded = true
	d.status.Message = msg
	d.statusMu.Unlock()
}
